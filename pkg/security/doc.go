// Package security provides validation, sanitization, and limits for the
// scheduler.
//
// This package includes:
//   - Validation of job type names and job/trigger key names
//   - Error message sanitization before error text is stored
//   - Clamping functions that keep engine settings within safe limits
package security
