// Package schedule computes trigger fire times.
//
// This package includes:
//   - ParseCron, a cron parser producing a structured field-constraint set
//     with an optional year field
//   - NextFireTime and FirstFireTime for one-time, interval and cron specs
//   - Validate, used before a trigger is stored
//
// Every function here is pure: the same (spec, state, now) always yields
// the same answer.
package schedule
