// Package core provides the fundamental types and interfaces of the scheduler.
//
// This package contains:
//   - JobKey and TriggerKey identities
//   - Job, Trigger and FireRecord data models with GORM annotations
//   - TriggerSpec, the one-time / interval / cron schedule description
//   - Store interface defining the persistence contract
//   - Event types for scheduler monitoring
//   - Error types shared by the store, engine and admin layers
//
// Most users should import the root package github.com/Saiteja21M/studentsvc
// instead of this package directly.
package core
