package catalog

import (
	"fmt"
	"sort"
)

// Kind describes how a scalar field is parsed and stored.
type Kind int

const (
	KindInt Kind = iota
	KindText
	// KindInterval accepts whole seconds or HH:MM:SS and is stored as a
	// postgres interval.
	KindInterval
	// KindClock accepts whole seconds or HH:MM[:SS] and is stored as a time
	// of day.
	KindClock
	// KindStamp is never read from input; the server sets it on write.
	KindStamp
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindText:
		return "text"
	case KindInterval:
		return "interval"
	case KindClock:
		return "clock"
	case KindStamp:
		return "stamp"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Ref points at a column of another table.
type Ref struct {
	Table  string
	Column string
}

// Field is one scalar column a resource accepts.
type Field struct {
	Column   string
	Kind     Kind
	Required bool
	// Default is applied on create when the field is absent.
	Default any
	// Fixed fields always take Default and ignore client input.
	Fixed bool
	// Parent is checked for existence before any upload starts.
	Parent *Ref
}

// AssetField is a column holding the public URL of an uploaded object.
type AssetField struct {
	Column    string
	FormField string
	MaxBytes  int64
	Required  bool
}

// Op is a bit set of generic operations a resource exposes.
type Op uint8

const (
	OpAdd Op = 1 << iota
	OpList
	OpGet
	OpUpdate
	OpDelete

	OpsAll = OpAdd | OpList | OpGet | OpUpdate | OpDelete
)

// Has reports whether all bits of o are present.
func (op Op) Has(o Op) bool { return op&o == o }

// Resource declares the accepted shape of one table exposed over HTTP.
type Resource struct {
	Route  string
	Table  string
	Key    string
	Fields []Field
	Assets []AssetField
	// Filters maps a sub-route (e.g. getByTrivia) to the column it filters on.
	Filters map[string]string
	// DeleteKey overrides the column /delete matches on.
	DeleteKey string
	// UpsertKey makes /add update the row sharing this natural key.
	UpsertKey   string
	NewestFirst bool
	Ops         Op
	Batch       *BatchSpec
	// Tree marks resources served through the joined question view.
	Tree bool
	// Joins are read-only sub-routes listing rows with their linked rows.
	Joins []JoinView
}

// JoinView lists every row of a resource paired with each row of Table whose
// LinkColumn references it. Rows without a linked row appear once, with the
// joined columns set to null.
type JoinView struct {
	Route      string
	Table      string
	Key        string
	LinkColumn string
	// Own are the columns copied from the resource row, Columns those copied
	// from the linked row.
	Own     []string
	Columns []string
}

// Field returns the scalar field for column.
func (r *Resource) Field(column string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Column == column {
			return f, true
		}
	}
	return Field{}, false
}

// Asset returns the asset column bound to a multipart form field.
func (r *Resource) Asset(formField string) (AssetField, bool) {
	for _, a := range r.Assets {
		if a.FormField == formField {
			return a, true
		}
	}
	return AssetField{}, false
}

// IsAssetColumn reports whether column stores an object URL.
func (r *Resource) IsAssetColumn(column string) bool {
	for _, a := range r.Assets {
		if a.Column == column {
			return true
		}
	}
	if r.Batch != nil {
		for _, role := range r.Batch.Roles() {
			if role.Table == r.Table && role.Column == column {
				return true
			}
		}
	}
	return false
}

// Parents lists fields that reference another table.
func (r *Resource) Parents() []Field {
	var out []Field
	for _, f := range r.Fields {
		if f.Parent != nil {
			out = append(out, f)
		}
	}
	return out
}

// DeleteColumn returns the column /delete filters on.
func (r *Resource) DeleteColumn() string {
	if r.DeleteKey != "" {
		return r.DeleteKey
	}
	return r.Key
}

// MaxUploadBytes is the largest per-file ceiling the resource accepts.
func (r *Resource) MaxUploadBytes() int64 {
	var max int64
	for _, a := range r.Assets {
		if a.MaxBytes > max {
			max = a.MaxBytes
		}
	}
	if r.Batch != nil && r.Batch.MaxBytes > max {
		max = r.Batch.MaxBytes
	}
	return max
}

// Role is one file slot of a question tuple.
type Role struct {
	Name string
	// FormField carries the parallel file array on add-batch.
	FormField string
	// UpdateField carries a single replacement file on update.
	UpdateField string
	// Prefix names uploaded objects: {Prefix}_{NNN}{ext}.
	Prefix string
	Table  string
	Column string
	// LinkColumn references the question row's key. Empty means the URL is
	// stored on the question row itself.
	LinkColumn string
}

// SameRow reports whether the role's URL lives on the question row.
func (r Role) SameRow() bool { return r.LinkColumn == "" }

// BatchSpec describes a batch of question tuples sharing one parent.
type BatchSpec struct {
	Question  Role
	Followers []Role
	// ParentField is the column on the question table holding the parent id.
	ParentField string
	Parent      Ref
	MaxBytes    int64
}

// Roles returns the question role followed by its followers, in upload order.
func (b *BatchSpec) Roles() []Role {
	out := make([]Role, 0, 1+len(b.Followers))
	out = append(out, b.Question)
	return append(out, b.Followers...)
}

// Catalog indexes resources by route.
type Catalog struct {
	byRoute map[string]*Resource
}

// New builds a catalog, rejecting duplicate routes.
func New(resources ...*Resource) (*Catalog, error) {
	c := &Catalog{byRoute: make(map[string]*Resource, len(resources))}
	for _, r := range resources {
		if _, dup := c.byRoute[r.Route]; dup {
			return nil, fmt.Errorf("catalog: duplicate route %q", r.Route)
		}
		if r.Table == "" || r.Key == "" {
			return nil, fmt.Errorf("catalog: route %q needs a table and key", r.Route)
		}
		c.byRoute[r.Route] = r
	}
	return c, nil
}

// Lookup returns the resource mounted at route.
func (c *Catalog) Lookup(route string) (*Resource, bool) {
	r, ok := c.byRoute[route]
	return r, ok
}

// Table returns the resource owning table.
func (c *Catalog) Table(table string) (*Resource, bool) {
	for _, r := range c.byRoute {
		if r.Table == table {
			return r, true
		}
	}
	return nil, false
}

// Resources returns every resource sorted by route.
func (c *Catalog) Resources() []*Resource {
	out := make([]*Resource, 0, len(c.byRoute))
	for _, r := range c.byRoute {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}
