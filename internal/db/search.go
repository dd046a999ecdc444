package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "of": true, "is": true,
	"it": true, "and": true, "or": true, "with": true, "from": true,
	"by": true, "this": true, "that": true, "as": true, "be": true,
}

// BuildFTSQuery turns free text into an FTS5 OR query. Words shorter than three
// characters and stop words are dropped, punctuation is trimmed from both ends, and each
// term is quoted so dots and dashes inside it are not read as FTS5 syntax.
func BuildFTSQuery(query string) string {
	var terms []string
	for _, w := range strings.Fields(query) {
		w = strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
		})
		if len(w) < 3 || stopwords[strings.ToLower(w)] {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(w, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " OR ")
}

// SearchItems runs a full-text search over archived names and descriptions, best match
// first. An empty query after preprocessing, or an archive without FTS5, yields no results.
func (d *DB) SearchItems(ctx context.Context, query string) ([]content.Item, error) {
	fts := BuildFTSQuery(query)
	if fts == "" {
		return []content.Item{}, nil
	}

	rows, err := d.conn.QueryContext(ctx,
		"SELECT id FROM items_fts WHERE items_fts MATCH ? ORDER BY rank", fts)
	if err != nil {
		if ftsMissing(err) {
			return []content.Item{}, nil
		}
		return nil, fmt.Errorf("searching archive: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("searching archive: %w", err)
	}
	if len(ids) == 0 {
		return []content.Item{}, nil
	}

	all, err := d.AllItems(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]content.Item, len(all))
	for _, it := range all {
		byID[it.ID] = it
	}
	out := make([]content.Item, 0, len(ids))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (d *DB) hasFTS(ctx context.Context, tx *sql.Tx) bool {
	var name string
	err := tx.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'items_fts'").Scan(&name)
	return err == nil
}

func ftsMissing(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such table") || strings.Contains(msg, "no such module")
}
