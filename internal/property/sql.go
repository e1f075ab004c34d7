package property

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jbweber/homelab/cinv/internal/datastore"
)

const (
	queryEntityExists = `SELECT COUNT(*) FROM entities WHERE path = ?`
	queryInsertEntity = `INSERT OR IGNORE INTO entities (path, parent, name) VALUES (?, ?, ?)`
	queryChildren     = `SELECT name FROM entities WHERE parent = ? ORDER BY name`
	queryGetScalar    = `SELECT value FROM scalars WHERE path = ? AND field = ?`
	querySetScalar    = `INSERT INTO scalars (path, field, value) VALUES (?, ?, ?)
		ON CONFLICT (path, field) DO UPDATE SET value = excluded.value`
	queryUnsetScalar = `DELETE FROM scalars WHERE path = ? AND field = ?`
	queryListItems   = `SELECT value FROM list_items WHERE path = ? AND field = ? ORDER BY id`
	queryListAppend  = `INSERT INTO list_items (path, field, value) VALUES (?, ?, ?)`
	queryListLast    = `SELECT id, value FROM list_items WHERE path = ? AND field = ? ORDER BY id DESC LIMIT 1`
	queryListDelete  = `DELETE FROM list_items WHERE id = ?`
	queryMapKeys     = `SELECT key FROM map_entries WHERE path = ? AND field = ? ORDER BY key`
	queryMapGet      = `SELECT value FROM map_entries WHERE path = ? AND field = ? AND key = ?`
	queryMapSet      = `INSERT INTO map_entries (path, field, key, value) VALUES (?, ?, ?, ?)
		ON CONFLICT (path, field, key) DO UPDATE SET value = excluded.value`
	queryMapDelete = `DELETE FROM map_entries WHERE path = ? AND field = ? AND key = ?`
	queryRemove    = `DELETE FROM entities WHERE path = ? OR substr(path, 1, length(?)) = ?`
)

// SQLStore keeps entities and fields in SQLite tables. Entity rows carry
// their parent path so children can be listed without pattern matching.
type SQLStore struct {
	ds    *datastore.Datastore
	stmts *statementCache
}

// OpenSQLStore opens the SQLite database at path and returns a store on it.
func OpenSQLStore(path string, logger *slog.Logger) (*SQLStore, error) {
	ds, err := datastore.Open(path, logger)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w: %v", ErrIO, err)
	}
	return NewSQLStore(ds), nil
}

// NewSQLStore wraps an already migrated datastore.
func NewSQLStore(ds *datastore.Datastore) *SQLStore {
	return &SQLStore{ds: ds, stmts: newStatementCache(ds.DB)}
}

func (s *SQLStore) key(p Path) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p.String(), nil
}

func (s *SQLStore) fieldKey(p Path, field string) (string, error) {
	k, err := s.key(p)
	if err != nil {
		return "", err
	}
	if err := validateName(field); err != nil {
		return "", err
	}
	return k, nil
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	stmt, err := s.stmts.get(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.ExecContext(ctx, args...)
}

func (s *SQLStore) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	stmt, err := s.stmts.get(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLStore) queryValue(ctx context.Context, query string, args ...any) (string, bool, error) {
	stmt, err := s.stmts.get(ctx, query)
	if err != nil {
		return "", false, err
	}
	var v string
	if err := stmt.QueryRowContext(ctx, args...).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

// insertLineage inserts p and every ancestor that is still missing.
func insertLineage(ctx context.Context, tx *sql.Tx, p Path) error {
	for i := 1; i <= len(p); i++ {
		sub := p[:i]
		parent := ""
		if i > 1 {
			parent = sub[:i-1].String()
		}
		if _, err := tx.ExecContext(ctx, queryInsertEntity, sub.String(), parent, sub[i-1]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.ds.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) Create(ctx context.Context, entity Path) error {
	k, err := s.key(entity)
	if err != nil {
		return err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, queryEntityExists, k).Scan(&count); err != nil {
			return wrapIO("create", entity, err)
		}
		if count > 0 {
			return fmt.Errorf("%s: %w", entity, ErrExists)
		}
		if err := insertLineage(ctx, tx, entity); err != nil {
			return wrapIO("create", entity, err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrExists) && !errors.Is(err, ErrIO) {
		return wrapIO("create", entity, err)
	}
	return err
}

func (s *SQLStore) Ensure(ctx context.Context, entity Path) error {
	if _, err := s.key(entity); err != nil {
		return err
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return insertLineage(ctx, tx, entity)
	})
	if err != nil {
		return wrapIO("ensure", entity, err)
	}
	return nil
}

func (s *SQLStore) Exists(ctx context.Context, entity Path) (bool, error) {
	k, err := s.key(entity)
	if err != nil {
		return false, err
	}
	v, _, err := s.queryValue(ctx, queryEntityExists, k)
	if err != nil {
		return false, wrapIO("stat", entity, err)
	}
	return v != "0", nil
}

func (s *SQLStore) Remove(ctx context.Context, entity Path) error {
	k, err := s.key(entity)
	if err != nil {
		return err
	}
	prefix := k + "/"
	if _, err := s.exec(ctx, queryRemove, k, prefix, prefix); err != nil {
		return wrapIO("remove", entity, err)
	}
	return nil
}

func (s *SQLStore) Children(ctx context.Context, entity Path) ([]string, error) {
	k, err := s.key(entity)
	if err != nil {
		return nil, err
	}
	names, err := s.queryStrings(ctx, queryChildren, k)
	if err != nil {
		return nil, wrapIO("list", entity, err)
	}
	return names, nil
}

func (s *SQLStore) GetScalar(ctx context.Context, entity Path, field string) (string, bool, error) {
	k, err := s.fieldKey(entity, field)
	if err != nil {
		return "", false, err
	}
	v, ok, err := s.queryValue(ctx, queryGetScalar, k, field)
	if err != nil {
		return "", false, wrapIO("read "+field, entity, err)
	}
	return v, ok, nil
}

func (s *SQLStore) SetScalar(ctx context.Context, entity Path, field, value string) error {
	k, err := s.fieldKey(entity, field)
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, querySetScalar, k, field, strings.TrimSpace(value)); err != nil {
		return wrapIO("write "+field, entity, err)
	}
	return nil
}

func (s *SQLStore) UnsetScalar(ctx context.Context, entity Path, field string) error {
	k, err := s.fieldKey(entity, field)
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, queryUnsetScalar, k, field); err != nil {
		return wrapIO("unset "+field, entity, err)
	}
	return nil
}

func (s *SQLStore) ListItems(ctx context.Context, entity Path, field string) ([]string, error) {
	k, err := s.fieldKey(entity, field)
	if err != nil {
		return nil, err
	}
	items, err := s.queryStrings(ctx, queryListItems, k, field)
	if err != nil {
		return nil, wrapIO("read "+field, entity, err)
	}
	return items, nil
}

func (s *SQLStore) ListAppend(ctx context.Context, entity Path, field, value string) error {
	if value == "" || strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("list %s item %q: %w", field, value, ErrInvalidValue)
	}
	k, err := s.fieldKey(entity, field)
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, queryListAppend, k, field, value); err != nil {
		return wrapIO("append "+field, entity, err)
	}
	return nil
}

func (s *SQLStore) ListPop(ctx context.Context, entity Path, field string) (string, bool, error) {
	k, err := s.fieldKey(entity, field)
	if err != nil {
		return "", false, err
	}
	var (
		value string
		found bool
	)
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx, queryListLast, k, field).Scan(&id, &value)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, queryListDelete, id); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return "", false, wrapIO("pop "+field, entity, err)
	}
	return value, found, nil
}

func (s *SQLStore) MapKeys(ctx context.Context, entity Path, field string) ([]string, error) {
	k, err := s.fieldKey(entity, field)
	if err != nil {
		return nil, err
	}
	keys, err := s.queryStrings(ctx, queryMapKeys, k, field)
	if err != nil {
		return nil, wrapIO("list "+field, entity, err)
	}
	return keys, nil
}

func (s *SQLStore) MapGet(ctx context.Context, entity Path, field, key string) (string, bool, error) {
	k, err := s.fieldKey(entity, field)
	if err != nil {
		return "", false, err
	}
	if err := validateName(key); err != nil {
		return "", false, err
	}
	v, ok, err := s.queryValue(ctx, queryMapGet, k, field, key)
	if err != nil {
		return "", false, wrapIO("read "+field+"/"+key, entity, err)
	}
	return v, ok, nil
}

func (s *SQLStore) MapSet(ctx context.Context, entity Path, field, key, value string) error {
	k, err := s.fieldKey(entity, field)
	if err != nil {
		return err
	}
	if err := validateName(key); err != nil {
		return err
	}
	if _, err := s.exec(ctx, queryMapSet, k, field, key, strings.TrimSpace(value)); err != nil {
		return wrapIO("write "+field+"/"+key, entity, err)
	}
	return nil
}

func (s *SQLStore) MapDelete(ctx context.Context, entity Path, field, key string) (bool, error) {
	k, err := s.fieldKey(entity, field)
	if err != nil {
		return false, err
	}
	if err := validateName(key); err != nil {
		return false, err
	}
	res, err := s.exec(ctx, queryMapDelete, k, field, key)
	if err != nil {
		return false, wrapIO("delete "+field+"/"+key, entity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapIO("delete "+field+"/"+key, entity, err)
	}
	return n > 0, nil
}

func (s *SQLStore) Close() error {
	stmtErr := s.stmts.close()
	if err := s.ds.Close(); err != nil {
		return err
	}
	return stmtErr
}
