package domain

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Row is one persisted record as returned by the relational gateway, keyed by
// column name.
type Row map[string]any

// Asset is an uploaded file held in memory for the lifetime of a request.
type Asset struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Size returns the asset length in bytes.
func (a *Asset) Size() int64 {
	if a == nil {
		return 0
	}
	return int64(len(a.Data))
}

// Ext returns the original extension including the dot, lower-cased.
func (a *Asset) Ext() string {
	if a == nil {
		return ""
	}
	return strings.ToLower(filepath.Ext(a.Filename))
}

// LedgerStatus captures the lifecycle of an object tracked by the asset ledger.
type LedgerStatus string

const (
	LedgerPending  LedgerStatus = "pending"
	LedgerLinked   LedgerStatus = "linked"
	LedgerOrphaned LedgerStatus = "orphaned"
	LedgerDeleted  LedgerStatus = "deleted"
)

// LedgerEntry records one object key written to the object store.
type LedgerEntry struct {
	ID        uuid.UUID
	ObjectKey string
	PublicURL string
	Status    LedgerStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BatchResult is returned after a batch of question tuples is persisted.
type BatchResult struct {
	Message     string  `json:"message"`
	QuestionIDs []int64 `json:"preguntasIds"`
}

// DeleteResult is returned after rows are removed.
type DeleteResult struct {
	Message string `json:"message"`
	Deleted []Row  `json:"deleted"`
}
