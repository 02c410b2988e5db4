// Package registry allocates and tracks entity serial numbers.
//
// Each entity has a flat serial record under the state tree, holding the
// serial and the command lines that built it, and an entry in a bbolt index.
// The index file also serves as the cross-process lock: a Registry holds an
// exclusive lock on it from Open until Close, so concurrent invocations
// against the same state tree are serialized.
package registry
