// Package sanitizer normalizes free-text booking input before validation.
//
// All functions are idempotent. Invalid input yields empty strings or empty
// slices rather than errors; validation decides what is acceptable.
package sanitizer
