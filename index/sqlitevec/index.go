// Copyright 2026 Meridian Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlitevec implements the search index on SQLite with the
// sqlite-vec extension. Vectors live in a vec0 virtual table keyed by
// document ID; a companion table carries the tenant scope and text so
// that searches and counts can be filtered per (tenant, platform).
package sqlitevec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/meridianhq/syncline/index"
)

func init() {
	sqlite_vec.Auto()
}

var _ index.SearchIndex = (*Index)(nil)

// Index is a SearchIndex backed by SQLite with sqlite-vec.
type Index struct {
	db         *sql.DB
	dimensions int
}

// Open opens (or creates) a SQLite database at dbPath and initialises
// the vec0 virtual table and the companion document table.
func Open(dbPath string, dimensions int) (*Index, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrate(db, dimensions); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating index tables: %w", err)
	}

	return &Index{db: db, dimensions: dimensions}, nil
}

func migrate(db *sql.DB, dimensions int) error {
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`,
		dimensions,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return fmt.Errorf("creating vectors virtual table: %w", err)
	}

	const docDDL = `
CREATE TABLE IF NOT EXISTS documents (
	id        TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	platform  TEXT NOT NULL,
	text      TEXT NOT NULL DEFAULT ''
)`
	if _, err := db.Exec(docDDL); err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}

	const scopeIdx = `CREATE INDEX IF NOT EXISTS documents_scope ON documents(tenant_id, platform)`
	if _, err := db.Exec(scopeIdx); err != nil {
		return fmt.Errorf("creating documents scope index: %w", err)
	}

	return nil
}

// Upsert inserts or replaces documents by ID.
func (x *Index) Upsert(ctx context.Context, docs ...index.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, doc := range docs {
		if doc.ID == "" {
			return index.ErrEmptyDocumentID
		}
		if len(doc.Embedding) != x.dimensions {
			return fmt.Errorf("document %s has %d dimensions, index has %d: %w",
				doc.ID, len(doc.Embedding), x.dimensions, index.ErrDimensionMismatch)
		}

		blob, err := sqlite_vec.SerializeFloat32(doc.Embedding)
		if err != nil {
			return fmt.Errorf("serializing embedding %s: %w", doc.ID, err)
		}

		// vec0 does not support ON CONFLICT; delete first for upsert.
		if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, doc.ID); err != nil {
			return fmt.Errorf("deleting existing vector %s: %w", doc.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO vectors(id, embedding) VALUES (?, ?)`, doc.ID, blob); err != nil {
			return fmt.Errorf("inserting vector %s: %w", doc.ID, err)
		}

		const docQ = `INSERT INTO documents(id, tenant_id, platform, text) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET tenant_id = excluded.tenant_id, platform = excluded.platform, text = excluded.text`
		if _, err := tx.ExecContext(ctx, docQ, doc.ID, doc.TenantID, doc.Platform, doc.Text); err != nil {
			return fmt.Errorf("upserting document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index upsert: %w", err)
	}
	return nil
}

// Delete removes documents by ID. Missing IDs are skipped.
func (x *Index) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index delete: %w", err)
	}
	return nil
}

// Has reports whether a document is present.
func (x *Index) Has(ctx context.Context, id string) (bool, error) {
	var one int
	err := x.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking document %s: %w", id, err)
	}
	return true, nil
}

// Search performs a k-nearest-neighbor search scoped to a (tenant,
// platform) pair. The KNN pass runs over all vectors with headroom
// before the scope filter is applied, so results from very mixed
// databases may come back short of k.
func (x *Index) Search(ctx context.Context, tenantID, platform string, query []float32, k int) ([]index.Result, error) {
	if len(query) != x.dimensions {
		return nil, fmt.Errorf("query has %d dimensions, index has %d: %w",
			len(query), x.dimensions, index.ErrDimensionMismatch)
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("serializing query vector: %w", err)
	}

	const q = `SELECT v.id, d.text, v.distance
FROM vectors v
JOIN documents d ON d.id = v.id
WHERE v.embedding MATCH ? AND k = ? AND d.tenant_id = ? AND d.platform = ?
ORDER BY v.distance`

	rows, err := x.db.QueryContext(ctx, q, blob, k*4, tenantID, platform)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []index.Result
	for rows.Next() {
		var r index.Result
		if err := rows.Scan(&r.ID, &r.Text, &r.Score); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, r)
		if len(results) == k {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	return results, nil
}

// Count returns the number of documents indexed for a (tenant,
// platform) pair.
func (x *Index) Count(ctx context.Context, tenantID, platform string) (int, error) {
	var count int
	err := x.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE tenant_id = ? AND platform = ?`,
		tenantID, platform,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// Close closes the underlying database connection.
func (x *Index) Close() error {
	return x.db.Close()
}
