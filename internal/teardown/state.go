package teardown

// State is a step of the teardown state machine.
type State string

// Teardown states in execution order, plus the terminal abort.
const (
	StateResolveName       State = "RESOLVE_NAME"
	StateValidateZone      State = "VALIDATE_ZONE"
	StateLocateRecords     State = "LOCATE_RECORDS"
	StateConfirm           State = "CONFIRM"
	StateExecuteDestroy    State = "EXECUTE_DESTROY"
	StateReleaseDependents State = "RELEASE_DEPENDENTS"
	StateCleanupRecords    State = "CLEANUP_RECORDS"
	StateDone              State = "DONE"
	StateAbort             State = "ABORT"
)

var order = []State{
	StateResolveName,
	StateValidateZone,
	StateLocateRecords,
	StateConfirm,
	StateExecuteDestroy,
	StateReleaseDependents,
	StateCleanupRecords,
	StateDone,
}

// next returns the state following s.
func (s State) next() State {
	for i, st := range order[:len(order)-1] {
		if st == s {
			return order[i+1]
		}
	}
	return StateDone
}

// abortable reports whether a failure in s may still abort without side
// effects.
func (s State) abortable() bool {
	switch s {
	case StateResolveName, StateValidateZone, StateLocateRecords, StateConfirm:
		return true
	}
	return false
}
