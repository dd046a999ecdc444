package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
)

// ExportSnapshot replaces the archive contents with items in one transaction. The slice
// order is archived as each item's ordinal and edges come from each item's ChildIDs, so
// both insertion order and sibling order survive a round trip.
func (d *DB) ExportSnapshot(ctx context.Context, items []content.Item) (err error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting export: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, q := range []string{"DELETE FROM edges", "DELETE FROM items"} {
		if _, err = tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clearing archive: %w", err)
		}
	}
	fts := d.hasFTS(ctx, tx)
	if fts {
		if _, err = tx.ExecContext(ctx, "DELETE FROM items_fts"); err != nil {
			return fmt.Errorf("clearing search index: %w", err)
		}
	}

	for ordinal, it := range items {
		targeting, mErr := json.Marshal(it.Targeting)
		if mErr != nil {
			return fmt.Errorf("encoding targeting of %s: %w", it.ID, mErr)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO items (id, type, name, description, status, quality_score, usage_count,
			                   targeting, owner, created_at, last_edited_at, last_edited_by, ordinal)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, it.Type.String(), it.Name, it.Description, string(it.Status),
			nullInt(it.QualityScore), nullInt(it.UsageCount), string(targeting), it.Owner,
			it.CreatedAt.UnixNano(), it.LastEditedAt.UnixNano(), it.LastEditedBy, ordinal)
		if err != nil {
			return fmt.Errorf("archiving item %s: %w", it.ID, err)
		}
		if fts {
			if _, err = tx.ExecContext(ctx,
				"INSERT INTO items_fts (id, name, description) VALUES (?, ?, ?)",
				it.ID, it.Name, it.Description); err != nil {
				return fmt.Errorf("indexing item %s: %w", it.ID, err)
			}
		}
	}

	// all items first so the foreign keys hold
	for _, it := range items {
		for pos, child := range it.ChildIDs {
			if _, err = tx.ExecContext(ctx,
				"INSERT INTO edges (parent_id, child_id, position) VALUES (?, ?, ?)",
				it.ID, child, pos); err != nil {
				return fmt.Errorf("archiving edge %s -> %s: %w", it.ID, child, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing export: %w", err)
	}
	return nil
}

// AllItems reads every archived item with ParentIDs and ChildIDs filled in, in the order
// they were exported. ChildIDs follow the archived sibling order.
func (d *DB) AllItems(ctx context.Context) ([]content.Item, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, type, name, description, status, quality_score, usage_count,
		       targeting, owner, created_at, last_edited_at, last_edited_by
		FROM items ORDER BY ordinal, id`)
	if err != nil {
		return nil, fmt.Errorf("reading items: %w", err)
	}
	defer rows.Close()

	var items []content.Item
	index := map[string]int{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		index[it.ID] = len(items)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading items: %w", err)
	}

	edges, err := d.conn.QueryContext(ctx,
		"SELECT parent_id, child_id FROM edges ORDER BY parent_id, position")
	if err != nil {
		return nil, fmt.Errorf("reading edges: %w", err)
	}
	defer edges.Close()
	for edges.Next() {
		var parent, child string
		if err := edges.Scan(&parent, &child); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		p, c := &items[index[parent]], &items[index[child]]
		p.ChildIDs = append(p.ChildIDs, child)
		c.ParentIDs = append(c.ParentIDs, parent)
	}
	if err := edges.Err(); err != nil {
		return nil, fmt.Errorf("reading edges: %w", err)
	}
	return items, nil
}

// Count returns the number of archived items
func (d *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (content.Item, error) {
	var (
		it               content.Item
		typ, status, tgt string
		quality, usage   sql.NullInt64
		created, edited  int64
	)
	if err := s.Scan(&it.ID, &typ, &it.Name, &it.Description, &status, &quality, &usage,
		&tgt, &it.Owner, &created, &edited, &it.LastEditedBy); err != nil {
		return it, fmt.Errorf("scanning item: %w", err)
	}
	t, err := content.ParseItemType(typ)
	if err != nil {
		return it, fmt.Errorf("item %s: %w", it.ID, err)
	}
	it.Type = t
	it.Status = content.Status(status)
	if quality.Valid {
		it.QualityScore = content.Ptr(int(quality.Int64))
	}
	if usage.Valid {
		it.UsageCount = content.Ptr(int(usage.Int64))
	}
	if err := json.Unmarshal([]byte(tgt), &it.Targeting); err != nil {
		return it, fmt.Errorf("decoding targeting of %s: %w", it.ID, err)
	}
	it.CreatedAt = time.Unix(0, created).UTC()
	it.LastEditedAt = time.Unix(0, edited).UTC()
	return it, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
