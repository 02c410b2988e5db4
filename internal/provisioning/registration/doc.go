// Package registration allocates the entity's serial number and records
// the invoking command line with it.
package registration
