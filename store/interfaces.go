package store

import "context"

// HistoryStore is the durable registry of table histories.
type HistoryStore interface {
	// All returns every history in stored order.
	All(ctx context.Context) ([]TableHistory, error)
	// Get returns the history of table, or ErrTableNotFound.
	Get(ctx context.Context, table string) (*TableHistory, error)
	// Add stores a new history, optionally appending rec to it.
	Add(ctx context.Context, h TableHistory, rec *MigrationRecord) error
	// AddMigration appends rec to the history of table.
	AddMigration(ctx context.Context, table string, rec MigrationRecord) error
	// UpdateMigration replaces the record with the same name.
	UpdateMigration(ctx context.Context, table string, rec MigrationRecord) error
	// ForgetMigration removes one record.
	ForgetMigration(ctx context.Context, table, name string) error
	// Forget removes the whole history of table.
	Forget(ctx context.Context, table string) error
}
