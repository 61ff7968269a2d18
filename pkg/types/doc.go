// Package types defines the entity model, the closed set of entity kinds,
// identifier rules, sentinel errors, and the Tracker interfaces implemented by
// the storage backend.
package types
