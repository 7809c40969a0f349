package store

import "errors"

var (
	// ErrNotFound indicates no row matched the filter.
	ErrNotFound = errors.New("row not found")

	// ErrInvalidIdentifier indicates a table or column name outside the allowed vocabulary.
	ErrInvalidIdentifier = errors.New("invalid sql identifier")

	// ErrKeyTaken indicates an object key is already recorded in the asset ledger.
	ErrKeyTaken = errors.New("object key already reserved")

	// ErrEmptyWrite indicates a write or update without any column.
	ErrEmptyWrite = errors.New("no columns to write")
)
