// Package storage provides the durable job store.
//
// This package includes:
//   - GormStorage: a GORM implementation of core.Store for SQLite and PostgreSQL
//   - Open: driver selection and connection pool setup
//
// Triggers are claimed with a compare-and-set UPDATE (NORMAL to BLOCKED
// under a fire token), so no lock is held across a fire and no two callers
// can run the same fire.
package storage
