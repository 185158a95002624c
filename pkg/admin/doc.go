// Package admin is the operator surface of the scheduler: scheduling,
// cancelling, pausing and inspecting jobs.
//
// Not-found is reported through boolean results or the NONE trigger
// state; only validation and store failures are errors.
package admin
