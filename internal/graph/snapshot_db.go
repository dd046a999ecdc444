package graph

import (
	"context"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/db"
)

// SnapshotFromDB builds a Snapshot from an exported archive
func SnapshotFromDB(ctx context.Context, d *db.DB) (*Snapshot, error) {
	items, err := d.AllItems(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(items), nil
}
