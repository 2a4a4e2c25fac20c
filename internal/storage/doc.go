// Package storage provides the persistence layer for schedules.
//
// It currently supports:
//   - Schedule CRUD plus the last-sent dispatch marker
//   - Audit log appends (schedule mutations and dispatch passes)
package storage
