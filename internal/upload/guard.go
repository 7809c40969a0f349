package upload

import (
	"context"

	"trivia-backend/internal/catalog"
)

// AssertExists fails with ReferenceNotFound unless table has a row whose
// column equals id. It runs before any upload so rejected requests never
// leave objects behind.
func (s *Service) AssertExists(ctx context.Context, table, column string, id any) error {
	ok, err := s.gateway.Exists(ctx, table, column, id)
	if err != nil {
		return newError(KindPersistenceFailed, err, "could not verify %s %v", column, id)
	}
	if !ok {
		return newError(KindReferenceNotFound, nil, "%s %v does not exist in %s", column, id, table)
	}
	return nil
}

// assertParents checks every bound parent reference of res.
func (s *Service) assertParents(ctx context.Context, res *catalog.Resource, values map[string]any) error {
	for _, f := range res.Parents() {
		v, ok := values[f.Column]
		if !ok {
			continue
		}
		if err := s.AssertExists(ctx, f.Parent.Table, f.Parent.Column, v); err != nil {
			return err
		}
	}
	return nil
}
