// Package naming derives the deterministic names of every cloud resource
// and working-directory artifact that belongs to an entity.
//
// Cloud resource names end with the entity's resource id (name-digest), so
// two generations of the same entity never share a resource, and teardown
// can recompute every name from the serial record alone.
package naming
