// Package postgres implements the storage interfaces on PostgreSQL.
//
// All writes produced by a sync cycle go through UnitOfWork so that entity
// upserts and the checkpoint advance for a window commit atomically. The
// read-side repositories run outside of transactions.
package postgres
