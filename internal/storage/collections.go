package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Tiliavir/worklog/internal/logging"
)

// Collection names one of the three record collections.
type Collection string

const (
	DailyTasks Collection = "daily_tasks"
	Projects   Collection = "projects"
	Tasks      Collection = "tasks"
)

// Record is anything that can be stored in a collection.
type Record interface {
	Key() string
	IndexValue(index string) string
}

// Handle is either a *Store or a *Tx.
type Handle interface {
	conn() (sqlx.ExtContext, *Store, error)
}

type index struct {
	name   string
	column string
}

// schema lists the secondary indexes of each collection in column order.
var schema = map[Collection][]index{
	DailyTasks: {{name: "date", column: "date"}},
	Projects:   {{name: "name", column: "name"}},
	Tasks:      {{name: "date", column: "date"}, {name: "projectId", column: "project_id"}},
}

func indexColumn(c Collection, name string) (string, error) {
	indexes, ok := schema[c]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownCollection, c)
	}
	for _, ix := range indexes {
		if ix.name == name {
			return ix.column, nil
		}
	}
	return "", fmt.Errorf("%w %q on %s", ErrUnknownIndex, name, c)
}

// begin resolves the handle and checks the collection. The returned finish
// func records metrics and wraps any error in a StorageError.
func begin(h Handle, op string, c Collection) (sqlx.ExtContext, func(error) error, error) {
	start := time.Now()
	q, s, err := h.conn()
	finish := func(err error) error {
		s.metrics.Observe(op, string(c), start, err)
		if err == nil {
			return nil
		}
		logging.OrNop(s.log).Debug("store operation failed", zap.String("op", op), zap.String("collection", string(c)), zap.Error(err))
		return &StorageError{Op: op, Collection: c, Err: err}
	}
	if err != nil {
		return nil, finish, finish(err)
	}
	if _, ok := schema[c]; !ok {
		return nil, finish, finish(fmt.Errorf("%w %q", ErrUnknownCollection, c))
	}
	return q, finish, nil
}

// Put inserts r or replaces the record with the same primary key.
func Put(ctx context.Context, h Handle, c Collection, r Record) error {
	q, finish, err := begin(h, "put", c)
	if err != nil {
		return err
	}
	if r.Key() == "" {
		return finish(ErrEmptyKey)
	}
	doc, err := json.Marshal(r)
	if err != nil {
		return finish(fmt.Errorf("marshalling record: %w", err))
	}

	cols := []string{"id"}
	args := []any{r.Key()}
	updates := make([]string, 0, len(schema[c])+1)
	for _, ix := range schema[c] {
		cols = append(cols, ix.column)
		args = append(args, r.IndexValue(ix.name))
		updates = append(updates, ix.column+" = excluded."+ix.column)
	}
	cols = append(cols, "doc")
	args = append(args, string(doc))
	updates = append(updates, "doc = excluded.doc")

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		c, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
		strings.Join(updates, ", "))
	_, err = q.ExecContext(ctx, query, args...)
	return finish(err)
}

// Get loads the record with primary key id into a T. found is false when no
// such record exists.
func Get[T any](ctx context.Context, h Handle, c Collection, id string) (rec T, found bool, err error) {
	q, finish, err := begin(h, "get", c)
	if err != nil {
		return rec, false, err
	}
	var doc string
	err = sqlx.GetContext(ctx, q, &doc, fmt.Sprintf("SELECT doc FROM %s WHERE id = ?", c), id)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, false, finish(nil)
	}
	if err != nil {
		return rec, false, finish(err)
	}
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return rec, false, finish(fmt.Errorf("corrupt record %s: %w", id, err))
	}
	return rec, true, finish(nil)
}

// GetAll returns every record of the collection in insertion order.
func GetAll[T any](ctx context.Context, h Handle, c Collection) ([]T, error) {
	q, finish, err := begin(h, "get_all", c)
	if err != nil {
		return nil, err
	}
	recs, err := selectDocs[T](ctx, q, fmt.Sprintf("SELECT doc FROM %s ORDER BY rowid", c))
	return recs, finish(err)
}

// GetByIndex returns the records whose secondary index equals value, in
// insertion order. An empty result is not an error.
func GetByIndex[T any](ctx context.Context, h Handle, c Collection, indexName, value string) ([]T, error) {
	q, finish, err := begin(h, "get_by_index", c)
	if err != nil {
		return nil, err
	}
	col, err := indexColumn(c, indexName)
	if err != nil {
		return nil, finish(err)
	}
	recs, err := selectDocs[T](ctx, q, fmt.Sprintf("SELECT doc FROM %s WHERE %s = ? ORDER BY rowid", c, col), value)
	return recs, finish(err)
}

func selectDocs[T any](ctx context.Context, q sqlx.QueryerContext, query string, args ...any) ([]T, error) {
	var docs []string
	if err := sqlx.SelectContext(ctx, q, &docs, query, args...); err != nil {
		return nil, err
	}
	recs := make([]T, 0, len(docs))
	for _, doc := range docs {
		var rec T
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return nil, fmt.Errorf("corrupt record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Delete removes the record with primary key id. A missing key is not an error.
func Delete(ctx context.Context, h Handle, c Collection, id string) error {
	q, finish, err := begin(h, "delete", c)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", c), id)
	return finish(err)
}

// DeleteByIndex removes every record whose secondary index equals value and
// reports how many were removed.
func DeleteByIndex(ctx context.Context, h Handle, c Collection, indexName, value string) (int64, error) {
	q, finish, err := begin(h, "delete_by_index", c)
	if err != nil {
		return 0, err
	}
	col, err := indexColumn(c, indexName)
	if err != nil {
		return 0, finish(err)
	}
	res, err := q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", c, col), value)
	if err != nil {
		return 0, finish(err)
	}
	n, err := res.RowsAffected()
	return n, finish(err)
}

// Clear removes every record of the collection.
func Clear(ctx context.Context, h Handle, c Collection) error {
	q, finish, err := begin(h, "clear", c)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", c))
	return finish(err)
}

// Count returns the number of records in the collection.
func Count(ctx context.Context, h Handle, c Collection) (int, error) {
	q, finish, err := begin(h, "count", c)
	if err != nil {
		return 0, err
	}
	var n int
	err = sqlx.GetContext(ctx, q, &n, fmt.Sprintf("SELECT COUNT(*) FROM %s", c))
	return n, finish(err)
}
