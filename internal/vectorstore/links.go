package vectorstore

import (
	"context"
)

// ReplaceLinks rebuilds the cached forward links of source. The cache is
// derived from note content and is rewritten on every content write.
func (db *DB) ReplaceLinks(ctx context.Context, source string, targets []string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", source, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE source = ?`, source); err != nil {
		return storageErr("clear links", source, err)
	}
	if len(targets) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return storageErr("prepare link insert", source, err)
		}
		defer stmt.Close()
		for _, target := range targets {
			if _, err := stmt.ExecContext(ctx, source, target); err != nil {
				return storageErr("insert link", source, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit", source, err)
	}
	return nil
}

// Backlinks returns the sources that link to target, sorted by path.
func (db *DB) Backlinks(ctx context.Context, target string) ([]string, error) {
	return db.queryPaths(ctx, "backlinks", target,
		`SELECT source FROM links WHERE target = ? ORDER BY source`)
}

// Outlinks returns the targets source links to, sorted by path.
func (db *DB) Outlinks(ctx context.Context, source string) ([]string, error) {
	return db.queryPaths(ctx, "outlinks", source,
		`SELECT target FROM links WHERE source = ? ORDER BY target`)
}

// LinkSources returns every note path that has cached forward links.
func (db *DB) LinkSources(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT source FROM links ORDER BY source`)
	if err != nil {
		return nil, storageErr("link sources", "", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, storageErr("link sources", "", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("link sources", "", err)
	}
	return out, nil
}

func (db *DB) queryPaths(ctx context.Context, op, arg, query string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, storageErr(op, arg, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, storageErr(op, arg, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, arg, err)
	}
	return out, nil
}
