package upload

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"trivia-backend/internal/catalog"
	"trivia-backend/internal/domain"
	"trivia-backend/internal/objectstore"
	"trivia-backend/internal/store"
)

// LinkBatch uploads N question tuples and persists them under one parent.
//
// Arity, ceilings and the parent reference are validated before any upload.
// Uploads run on a bounded pool but every result is stored by its input
// index, so object names and the returned identifiers follow input order.
// All rows are inserted in a single transaction: either every tuple is
// persisted or none is.
func (s *Service) LinkBatch(ctx context.Context, res *catalog.Resource, req Request) (domain.BatchResult, error) {
	result, err := s.linkBatch(ctx, res, req)
	if err != nil {
		s.metrics.IncBatchFailure(res.Route, string(KindOf(err)))
		return domain.BatchResult{}, err
	}
	s.metrics.AddBatchTuples(res.Route, len(result.QuestionIDs))
	return result, nil
}

func (s *Service) linkBatch(ctx context.Context, res *catalog.Resource, req Request) (domain.BatchResult, error) {
	spec := res.Batch
	if spec == nil {
		return domain.BatchResult{}, newError(KindInvalidField, nil, "%s does not accept batches", res.Route)
	}

	parentID, err := parseKey(spec.ParentField, req.Fields[spec.ParentField])
	if err != nil {
		return domain.BatchResult{}, err
	}

	roles := spec.Roles()
	files := make([][]*domain.Asset, len(roles))
	for r, role := range roles {
		files[r] = req.Files[role.FormField]
	}
	n := len(files[0])
	if n == 0 {
		return domain.BatchResult{}, newError(KindBatchArityMismatch, nil, "no %s files supplied", roles[0].FormField)
	}
	for r, role := range roles {
		if len(files[r]) != n {
			return domain.BatchResult{}, newError(KindBatchArityMismatch, nil,
				"%s has %d files but %s has %d", role.FormField, len(files[r]), roles[0].FormField, n)
		}
	}
	if n > s.maxTuples() {
		return domain.BatchResult{}, newError(KindBatchArityMismatch, nil, "batch of %d exceeds the limit of %d", n, s.maxTuples())
	}
	for r, role := range roles {
		for i, f := range files[r] {
			if f == nil {
				return domain.BatchResult{}, newError(KindMissingAsset, nil, "missing %s file at position %d", role.FormField, i+1)
			}
			if err := checkSize(f, role.FormField, spec.MaxBytes); err != nil {
				return domain.BatchResult{}, err
			}
		}
	}

	if err := s.AssertExists(ctx, spec.Parent.Table, spec.Parent.Column, parentID); err != nil {
		return domain.BatchResult{}, err
	}

	objects, err := s.uploadTuples(ctx, res.Route, roles, files)
	if err != nil {
		return domain.BatchResult{}, err
	}

	ids := make([]int64, n)
	err = s.gateway.WithinTx(ctx, func(tx store.Gateway) error {
		for i := 0; i < n; i++ {
			id, err := insertTuple(ctx, tx, res, spec, parentID, objects[i])
			if err != nil {
				return fmt.Errorf("tuple %d: %w", i+1, err)
			}
			ids[i] = id
		}
		return nil
	})
	if err != nil {
		s.logger.Error("batch persistence failed", "resource", res.Route, "tuples", n, "error", err)
		return domain.BatchResult{}, persistenceError(err, "could not persist batch")
	}

	all := make([]objectstore.Object, 0, n*len(roles))
	for _, tuple := range objects {
		all = append(all, tuple...)
	}
	s.link(ctx, all)
	s.logger.Info("batch persisted", "resource", res.Route, "parent", parentID, "tuples", n)
	return domain.BatchResult{Message: "batch uploaded", QuestionIDs: ids}, nil
}

// uploadTuples returns objects[i][r] for tuple i and role r.
func (s *Service) uploadTuples(ctx context.Context, resource string, roles []catalog.Role, files [][]*domain.Asset) ([][]objectstore.Object, error) {
	n := len(files[0])
	objects := make([][]objectstore.Object, n)
	for i := range objects {
		objects[i] = make([]objectstore.Object, len(roles))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i := 0; i < n; i++ {
		for r, role := range roles {
			i, r := i, r
			file := files[r][i]
			name := OrdinalName(role.Prefix, i, file.Ext())
			g.Go(func() error {
				obj, err := s.putAsset(gctx, resource, file, name)
				if err != nil {
					return err
				}
				objects[i][r] = obj
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return objects, nil
}

// insertTuple writes the question row, including any same-row follower
// URLs, then one linked row per remaining follower.
func insertTuple(ctx context.Context, tx store.Gateway, res *catalog.Resource, spec *catalog.BatchSpec, parentID int64, objs []objectstore.Object) (int64, error) {
	columns := []string{spec.ParentField, spec.Question.Column}
	values := []any{parentID, objs[0].URL}
	for f, role := range spec.Followers {
		if role.SameRow() {
			columns = append(columns, role.Column)
			values = append(values, objs[f+1].URL)
		}
	}
	row, err := tx.Write(ctx, res.Table, columns, values)
	if err != nil {
		return 0, err
	}
	id, err := toInt64(row[res.Key])
	if err != nil {
		return 0, err
	}

	for f, role := range spec.Followers {
		if role.SameRow() {
			continue
		}
		if _, err := tx.Write(ctx, role.Table, []string{role.LinkColumn, role.Column}, []any{id, objs[f+1].URL}); err != nil {
			return 0, err
		}
	}
	return id, nil
}
