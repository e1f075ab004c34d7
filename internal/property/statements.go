package property

import (
	"context"
	"database/sql"
	"sync"
)

// statementCache caches prepared statements by query text
type statementCache struct {
	mu         sync.RWMutex
	statements map[string]*sql.Stmt
	db         *sql.DB
}

func newStatementCache(db *sql.DB) *statementCache {
	return &statementCache{
		statements: make(map[string]*sql.Stmt),
		db:         db,
	}
}

// get retrieves or prepares a statement
func (c *statementCache) get(ctx context.Context, query string) (*sql.Stmt, error) {
	c.mu.RLock()
	if stmt, ok := c.statements[query]; ok {
		c.mu.RUnlock()
		return stmt, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if stmt, ok := c.statements[query]; ok {
		return stmt, nil
	}

	stmt, err := c.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}

	c.statements[query] = stmt
	return stmt, nil
}

// close closes all prepared statements and clears the cache
func (c *statementCache) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for _, stmt := range c.statements {
		if err := stmt.Close(); err != nil {
			lastErr = err
		}
	}

	c.statements = make(map[string]*sql.Stmt)
	return lastErr
}

func (c *statementCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.statements)
}
