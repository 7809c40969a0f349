package upload

import (
	"context"
	"sort"
	"strings"

	"trivia-backend/internal/catalog"
	"trivia-backend/internal/domain"
	"trivia-backend/internal/objectstore"
	"trivia-backend/internal/store"
)

type pendingAsset struct {
	column string
	asset  *domain.Asset
}

// Create validates req, checks parent references, uploads every supplied
// asset and inserts one row. For resources with an upsert key an existing row
// with the same natural key is updated instead; created reports which path ran.
func (s *Service) Create(ctx context.Context, res *catalog.Resource, req Request) (row domain.Row, created bool, err error) {
	values, err := res.BindCreate(req.Fields, s.now())
	if err != nil {
		return nil, false, bindError(err)
	}

	var assets []pendingAsset
	for _, a := range res.Assets {
		file := req.File(a.FormField)
		if file == nil {
			if a.Required {
				return nil, false, newError(KindMissingAsset, nil, "missing file %s", a.FormField)
			}
			continue
		}
		if err := checkSize(file, a.FormField, a.MaxBytes); err != nil {
			return nil, false, err
		}
		assets = append(assets, pendingAsset{column: a.Column, asset: file})
	}

	if err := s.assertParents(ctx, res, values); err != nil {
		return nil, false, err
	}

	var existing domain.Row
	if res.UpsertKey != "" {
		rows, err := s.gateway.Read(ctx, res.Table, store.Filter{res.UpsertKey: values[res.UpsertKey]}, store.Order{Column: res.Key})
		if err != nil {
			return nil, false, persistenceError(err, "could not read %s", res.Table)
		}
		if len(rows) > 0 {
			existing = rows[0]
		}
	}

	uploaded, err := s.uploadAll(ctx, res, assets)
	if err != nil {
		return nil, false, err
	}
	for i, p := range assets {
		values[p.column] = uploaded[i].URL
	}

	if existing != nil {
		rows, err := s.gateway.Update(ctx, res.Table, values, store.Filter{res.Key: existing[res.Key]})
		if err != nil {
			return nil, false, persistenceError(err, "could not update %s", res.Table)
		}
		if len(rows) == 0 {
			return nil, false, newError(KindNotFound, nil, "%s %v not found", res.Key, existing[res.Key])
		}
		s.link(ctx, uploaded)
		s.orphan(ctx, replacedURLs(existing, assets))
		return rows[0], false, nil
	}

	columns, args := splitColumns(values)
	row, err = s.gateway.Write(ctx, res.Table, columns, args)
	if err != nil {
		return nil, false, persistenceError(err, "could not insert into %s", res.Table)
	}
	s.link(ctx, uploaded)
	return row, true, nil
}

// Update applies the supplied fields and files to the row identified by id.
// Columns not supplied keep their stored values; in particular an asset URL
// is only replaced when a new file is sent.
func (s *Service) Update(ctx context.Context, res *catalog.Resource, id string, req Request) (domain.Row, error) {
	key, err := parseKey(res.Key, id)
	if err != nil {
		return nil, err
	}
	values, err := res.BindUpdate(req.Fields)
	if err != nil {
		return nil, bindError(err)
	}

	var assets []pendingAsset
	for _, a := range res.Assets {
		file := req.File(a.FormField)
		if file == nil {
			continue
		}
		if err := checkSize(file, a.FormField, a.MaxBytes); err != nil {
			return nil, err
		}
		assets = append(assets, pendingAsset{column: a.Column, asset: file})
	}
	if len(values) == 0 && len(assets) == 0 {
		return nil, newError(KindMissingField, nil, "no fields to update")
	}

	current, err := s.Get(ctx, res, id)
	if err != nil {
		return nil, err
	}
	if err := s.assertParents(ctx, res, values); err != nil {
		return nil, err
	}

	uploaded, err := s.uploadAll(ctx, res, assets)
	if err != nil {
		return nil, err
	}
	for i, p := range assets {
		values[p.column] = uploaded[i].URL
	}

	rows, err := s.gateway.Update(ctx, res.Table, values, store.Filter{res.Key: key})
	if err != nil {
		return nil, persistenceError(err, "could not update %s", res.Table)
	}
	if len(rows) == 0 {
		return nil, newError(KindNotFound, nil, "%s %d not found", res.Key, key)
	}
	s.link(ctx, uploaded)
	s.orphan(ctx, replacedURLs(current, assets))
	return rows[0], nil
}

// Get returns the row whose key equals id.
func (s *Service) Get(ctx context.Context, res *catalog.Resource, id string) (domain.Row, error) {
	key, err := parseKey(res.Key, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.gateway.Read(ctx, res.Table, store.Filter{res.Key: key})
	if err != nil {
		return nil, persistenceError(err, "could not read %s", res.Table)
	}
	if len(rows) == 0 {
		return nil, newError(KindNotFound, nil, "%s %d not found", res.Key, key)
	}
	return rows[0], nil
}

// List returns every row ordered by key.
func (s *Service) List(ctx context.Context, res *catalog.Resource) ([]domain.Row, error) {
	rows, err := s.gateway.Read(ctx, res.Table, nil, store.Order{Column: res.Key, Desc: res.NewestFirst})
	if err != nil {
		return nil, persistenceError(err, "could not read %s", res.Table)
	}
	if rows == nil {
		rows = []domain.Row{}
	}
	return rows, nil
}

// ListBy returns rows whose column equals value, failing with NotFound when
// none match.
func (s *Service) ListBy(ctx context.Context, res *catalog.Resource, column, value string) ([]domain.Row, error) {
	key, err := parseKey(column, value)
	if err != nil {
		return nil, err
	}
	rows, err := s.gateway.Read(ctx, res.Table, store.Filter{column: key}, store.Order{Column: res.Key})
	if err != nil {
		return nil, persistenceError(err, "could not read %s", res.Table)
	}
	if len(rows) == 0 {
		return nil, newError(KindNotFound, nil, "no %s rows with %s %d", res.Table, column, key)
	}
	return rows, nil
}

// Delete removes the rows matching the resource's delete column and marks
// their asset URLs as orphaned.
func (s *Service) Delete(ctx context.Context, res *catalog.Resource, value string) (domain.DeleteResult, error) {
	column := res.DeleteColumn()
	key, err := parseKey(column, value)
	if err != nil {
		return domain.DeleteResult{}, err
	}
	rows, err := s.gateway.Delete(ctx, res.Table, store.Filter{column: key})
	if err != nil {
		return domain.DeleteResult{}, persistenceError(err, "could not delete from %s", res.Table)
	}
	if len(rows) == 0 {
		return domain.DeleteResult{}, newError(KindNotFound, nil, "%s %d not found", column, key)
	}
	s.orphan(ctx, assetURLs(res, rows))
	return domain.DeleteResult{Message: res.Table + " deleted", Deleted: rows}, nil
}

// uploadAll uploads assets in declaration order and stops at the first
// failure.
func (s *Service) uploadAll(ctx context.Context, res *catalog.Resource, assets []pendingAsset) ([]objectstore.Object, error) {
	out := make([]objectstore.Object, 0, len(assets))
	for _, p := range assets {
		obj, err := s.putAsset(ctx, res.Route, p.asset, p.asset.Filename)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func checkSize(asset *domain.Asset, field string, max int64) error {
	if max > 0 && asset.Size() > max {
		return newError(KindAssetTooLarge, nil, "file %s exceeds %d bytes", field, max)
	}
	return nil
}

func parseKey(column, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, newError(KindMissingField, nil, "missing required field %s", column)
	}
	key, err := catalog.ParseInt(raw)
	if err != nil {
		return 0, newError(KindInvalidField, nil, "invalid value for %s", column)
	}
	return key, nil
}

// splitColumns returns columns in a stable order with their values.
func splitColumns(values map[string]any) ([]string, []any) {
	columns := make([]string, 0, len(values))
	for c := range values {
		columns = append(columns, c)
	}
	sort.Strings(columns)
	args := make([]any, len(columns))
	for i, c := range columns {
		args[i] = values[c]
	}
	return columns, args
}

func replacedURLs(previous domain.Row, assets []pendingAsset) []string {
	var urls []string
	for _, p := range assets {
		if old, ok := previous[p.column].(string); ok && old != "" {
			urls = append(urls, old)
		}
	}
	return urls
}

func assetURLs(res *catalog.Resource, rows []domain.Row) []string {
	var urls []string
	for _, row := range rows {
		for column, v := range row {
			if !res.IsAssetColumn(column) {
				continue
			}
			if u, ok := v.(string); ok && u != "" {
				urls = append(urls, u)
			}
		}
	}
	sort.Strings(urls)
	return urls
}
