package upload

import (
	"context"

	"trivia-backend/internal/catalog"
	"trivia-backend/internal/domain"
	"trivia-backend/internal/objectstore"
	"trivia-backend/internal/store"
)

// ListQuestionTrees returns one view row per question with the URL of every
// role keyed by role name. Roles without a stored row are null.
func (s *Service) ListQuestionTrees(ctx context.Context, res *catalog.Resource) ([]domain.Row, error) {
	questions, err := s.gateway.Read(ctx, res.Table, nil, store.Order{Column: res.Key})
	if err != nil {
		return nil, persistenceError(err, "could not read %s", res.Table)
	}
	return s.assembleTrees(ctx, res, questions)
}

// QuestionTree returns the view row of one question.
func (s *Service) QuestionTree(ctx context.Context, res *catalog.Resource, id string) (domain.Row, error) {
	q, err := s.Get(ctx, res, id)
	if err != nil {
		return nil, err
	}
	views, err := s.assembleTrees(ctx, res, []domain.Row{q})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (s *Service) assembleTrees(ctx context.Context, res *catalog.Resource, questions []domain.Row) ([]domain.Row, error) {
	spec := res.Batch
	followers := make([]map[int64]any, len(spec.Followers))
	for f, role := range spec.Followers {
		if role.SameRow() {
			continue
		}
		var filter store.Filter
		if len(questions) == 1 {
			filter = store.Filter{role.LinkColumn: questions[0][res.Key]}
		}
		rows, err := s.gateway.Read(ctx, role.Table, filter)
		if err != nil {
			return nil, persistenceError(err, "could not read %s", role.Table)
		}
		byQuestion := make(map[int64]any, len(rows))
		for _, r := range rows {
			qid, err := toInt64(r[role.LinkColumn])
			if err != nil {
				continue
			}
			if _, seen := byQuestion[qid]; !seen {
				byQuestion[qid] = r[role.Column]
			}
		}
		followers[f] = byQuestion
	}

	views := make([]domain.Row, 0, len(questions))
	for _, q := range questions {
		qid, err := toInt64(q[res.Key])
		if err != nil {
			return nil, persistenceError(err, "unexpected %s value", res.Key)
		}
		view := domain.Row{
			res.Key:            q[res.Key],
			spec.Question.Name: q[spec.Question.Column],
		}
		for f, role := range spec.Followers {
			if role.SameRow() {
				view[role.Name] = q[role.Column]
				continue
			}
			view[role.Name] = followers[f][qid]
		}
		views = append(views, view)
	}
	return views, nil
}

// ListJoined returns every row of res paired with each linked row of
// view.Table, ordered by the resource key and then the linked key.
func (s *Service) ListJoined(ctx context.Context, res *catalog.Resource, view catalog.JoinView) ([]domain.Row, error) {
	rows, err := s.gateway.Read(ctx, res.Table, nil, store.Order{Column: res.Key})
	if err != nil {
		return nil, persistenceError(err, "could not read %s", res.Table)
	}
	linked, err := s.gateway.Read(ctx, view.Table, nil, store.Order{Column: view.Key})
	if err != nil {
		return nil, persistenceError(err, "could not read %s", view.Table)
	}

	byParent := make(map[int64][]domain.Row, len(rows))
	for _, l := range linked {
		pid, err := toInt64(l[view.LinkColumn])
		if err != nil {
			continue
		}
		byParent[pid] = append(byParent[pid], l)
	}

	out := make([]domain.Row, 0, len(rows))
	for _, r := range rows {
		pid, err := toInt64(r[res.Key])
		if err != nil {
			return nil, persistenceError(err, "unexpected %s value", res.Key)
		}
		children := byParent[pid]
		if len(children) == 0 {
			out = append(out, joinRow(r, nil, view))
			continue
		}
		for _, c := range children {
			out = append(out, joinRow(r, c, view))
		}
	}
	return out, nil
}

func joinRow(own, linked domain.Row, view catalog.JoinView) domain.Row {
	row := make(domain.Row, len(view.Own)+len(view.Columns))
	for _, col := range view.Own {
		row[col] = own[col]
	}
	for _, col := range view.Columns {
		row[col] = linked[col]
	}
	return row
}

// UpdateQuestionTree replaces the URL of every role whose update field
// carries a file. Roles without a file keep their stored URL.
func (s *Service) UpdateQuestionTree(ctx context.Context, res *catalog.Resource, id string, req Request) (domain.Row, error) {
	spec := res.Batch
	key, err := parseKey(res.Key, id)
	if err != nil {
		return nil, err
	}

	type replacement struct {
		role  catalog.Role
		asset *domain.Asset
	}
	var replacements []replacement
	for _, role := range spec.Roles() {
		file := req.File(role.UpdateField)
		if file == nil {
			continue
		}
		if err := checkSize(file, role.UpdateField, spec.MaxBytes); err != nil {
			return nil, err
		}
		replacements = append(replacements, replacement{role: role, asset: file})
	}
	if len(replacements) == 0 {
		return nil, newError(KindMissingAsset, nil, "no files to update")
	}

	if _, err := s.Get(ctx, res, id); err != nil {
		return nil, err
	}

	uploaded := make([]objectstore.Object, len(replacements))
	for i, rp := range replacements {
		obj, err := s.putAsset(ctx, res.Route, rp.asset, rp.asset.Filename)
		if err != nil {
			return nil, err
		}
		uploaded[i] = obj
	}

	var replaced []string
	err = s.gateway.WithinTx(ctx, func(tx store.Gateway) error {
		for i, rp := range replacements {
			table, filter := res.Table, store.Filter{res.Key: key}
			if !rp.role.SameRow() {
				table, filter = rp.role.Table, store.Filter{rp.role.LinkColumn: key}
			}
			previous, err := tx.Read(ctx, table, filter)
			if err != nil {
				return err
			}
			if len(previous) == 0 {
				if rp.role.SameRow() {
					return newError(KindNotFound, nil, "%s %d not found", res.Key, key)
				}
				if _, err := tx.Write(ctx, table, []string{rp.role.LinkColumn, rp.role.Column}, []any{key, uploaded[i].URL}); err != nil {
					return err
				}
				continue
			}
			if _, err := tx.Update(ctx, table, map[string]any{rp.role.Column: uploaded[i].URL}, filter); err != nil {
				return err
			}
			for _, p := range previous {
				if u, ok := p[rp.role.Column].(string); ok && u != "" {
					replaced = append(replaced, u)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, persistenceError(err, "could not update question %d", key)
	}
	s.link(ctx, uploaded)
	s.orphan(ctx, replaced)
	return s.QuestionTree(ctx, res, id)
}

// DeleteQuestionTree deletes the linked follower rows and the question row in
// one transaction.
func (s *Service) DeleteQuestionTree(ctx context.Context, res *catalog.Resource, id string) (domain.DeleteResult, error) {
	spec := res.Batch
	key, err := parseKey(res.Key, id)
	if err != nil {
		return domain.DeleteResult{}, err
	}

	var deleted []domain.Row
	var urls []string
	err = s.gateway.WithinTx(ctx, func(tx store.Gateway) error {
		for _, role := range spec.Followers {
			if role.SameRow() {
				continue
			}
			rows, err := tx.Delete(ctx, role.Table, store.Filter{role.LinkColumn: key})
			if err != nil {
				return err
			}
			urls = append(urls, columnURLs(rows, role.Column)...)
		}
		rows, err := tx.Delete(ctx, res.Table, store.Filter{res.Key: key})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return newError(KindNotFound, nil, "%s %d not found", res.Key, key)
		}
		for _, role := range spec.Roles() {
			if role.SameRow() {
				urls = append(urls, columnURLs(rows, role.Column)...)
			}
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return domain.DeleteResult{}, persistenceError(err, "could not delete question %d", key)
	}
	s.orphan(ctx, urls)
	return domain.DeleteResult{Message: "question and its content deleted", Deleted: deleted}, nil
}

func columnURLs(rows []domain.Row, column string) []string {
	var urls []string
	for _, r := range rows {
		if u, ok := r[column].(string); ok && u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
