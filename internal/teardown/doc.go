// Package teardown destroys an entity and removes its records.
//
// The Coordinator is a linear state machine:
//
//	RESOLVE_NAME -> VALIDATE_ZONE -> LOCATE_RECORDS -> CONFIRM
//	  -> EXECUTE_DESTROY -> RELEASE_DEPENDENTS -> CLEANUP_RECORDS -> DONE
//
// Any failure before EXECUTE_DESTROY ends in ABORT, which touches no
// files. A failed destroy keeps every record so the teardown can be rerun;
// records are removed only after the destroy playbook succeeded.
package teardown
