package migrations

import (
	"database/sql"
)

// GetPropertyMigrations returns the schema backing the SQLite property store
func GetPropertyMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_property_tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE entities (
						path TEXT PRIMARY KEY,
						parent TEXT NOT NULL,
						name TEXT NOT NULL
					)`,
					`CREATE TABLE scalars (
						path TEXT NOT NULL,
						field TEXT NOT NULL,
						value TEXT NOT NULL,
						PRIMARY KEY (path, field),
						FOREIGN KEY (path) REFERENCES entities(path) ON DELETE CASCADE
					)`,
					`CREATE TABLE list_items (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						path TEXT NOT NULL,
						field TEXT NOT NULL,
						value TEXT NOT NULL,
						FOREIGN KEY (path) REFERENCES entities(path) ON DELETE CASCADE
					)`,
					`CREATE TABLE map_entries (
						path TEXT NOT NULL,
						field TEXT NOT NULL,
						key TEXT NOT NULL,
						value TEXT NOT NULL,
						PRIMARY KEY (path, field, key),
						FOREIGN KEY (path) REFERENCES entities(path) ON DELETE CASCADE
					)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
			Down: func(tx *sql.Tx) error {
				for _, table := range []string{"map_entries", "list_items", "scalars", "entities"} {
					if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Version: 2,
			Name:    "add_property_indices",
			Up: func(tx *sql.Tx) error {
				indices := []string{
					"CREATE INDEX IF NOT EXISTS idx_entities_parent ON entities(parent)",
					"CREATE INDEX IF NOT EXISTS idx_list_items_path_field ON list_items(path, field, id)",
				}
				for _, indexSQL := range indices {
					if _, err := tx.Exec(indexSQL); err != nil {
						return err
					}
				}
				return nil
			},
			Down: func(tx *sql.Tx) error {
				for _, dropSQL := range []string{
					"DROP INDEX IF EXISTS idx_entities_parent",
					"DROP INDEX IF EXISTS idx_list_items_path_field",
				} {
					if _, err := tx.Exec(dropSQL); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
