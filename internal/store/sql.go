package store

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func quoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

// sortedKeys keeps generated SQL stable for identical inputs.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func whereClause(filter Filter, args []any) (string, []any, error) {
	if len(filter) == 0 {
		return "", args, nil
	}
	conds := make([]string, 0, len(filter))
	for _, col := range sortedKeys(filter) {
		quoted, err := quoteIdent(col)
		if err != nil {
			return "", nil, err
		}
		args = append(args, filter[col])
		conds = append(conds, fmt.Sprintf("%s = $%d", quoted, len(args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func buildSelect(table string, filter Filter, orders []Order) (string, []any, error) {
	quotedTable, err := quoteIdent(table)
	if err != nil {
		return "", nil, err
	}
	where, args, err := whereClause(filter, nil)
	if err != nil {
		return "", nil, err
	}
	query := "SELECT * FROM " + quotedTable + where
	if len(orders) > 0 {
		parts := make([]string, 0, len(orders))
		for _, o := range orders {
			col, err := quoteIdent(o.Column)
			if err != nil {
				return "", nil, err
			}
			if o.Desc {
				col += " DESC"
			}
			parts = append(parts, col)
		}
		query += " ORDER BY " + strings.Join(parts, ", ")
	}
	return query, args, nil
}

func buildInsert(table string, columns []string, values []any) (string, error) {
	if len(columns) == 0 {
		return "", ErrEmptyWrite
	}
	if len(columns) != len(values) {
		return "", fmt.Errorf("insert into %s: %d columns but %d values", table, len(columns), len(values))
	}
	quotedTable, err := quoteIdent(table)
	if err != nil {
		return "", err
	}
	cols := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		quoted, err := quoteIdent(c)
		if err != nil {
			return "", err
		}
		cols[i] = quoted
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		quotedTable, strings.Join(cols, ", "), strings.Join(params, ", ")), nil
}

func buildUpdate(table string, assignments map[string]any, filter Filter) (string, []any, error) {
	if len(assignments) == 0 {
		return "", nil, ErrEmptyWrite
	}
	quotedTable, err := quoteIdent(table)
	if err != nil {
		return "", nil, err
	}
	var args []any
	sets := make([]string, 0, len(assignments))
	for _, col := range sortedKeys(assignments) {
		quoted, err := quoteIdent(col)
		if err != nil {
			return "", nil, err
		}
		args = append(args, assignments[col])
		sets = append(sets, fmt.Sprintf("%s = $%d", quoted, len(args)))
	}
	where, args, err := whereClause(filter, args)
	if err != nil {
		return "", nil, err
	}
	return "UPDATE " + quotedTable + " SET " + strings.Join(sets, ", ") + where + " RETURNING *", args, nil
}

func buildDelete(table string, filter Filter) (string, []any, error) {
	quotedTable, err := quoteIdent(table)
	if err != nil {
		return "", nil, err
	}
	where, args, err := whereClause(filter, nil)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + quotedTable + where + " RETURNING *", args, nil
}

func buildExists(table, column string) (string, error) {
	quotedTable, err := quoteIdent(table)
	if err != nil {
		return "", err
	}
	quotedCol, err := quoteIdent(column)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)", quotedTable, quotedCol), nil
}
