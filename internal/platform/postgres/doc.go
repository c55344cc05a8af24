// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package: task records and
// the live connection registry. Schema migrations are embedded and applied
// with goose.
package postgres
