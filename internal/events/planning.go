package events

import "time"

// PlanStart is emitted once the operation binder has produced a bound
// operation and planning (operation graph + Steiner solve + finalize) begins.
type PlanStart struct {
	OperationName string
}

// PlanFinish is emitted after a plan is produced or planning fails.
type PlanFinish struct {
	OperationName string
	Partitions    int
	Err           error
	Duration      time.Duration
}
