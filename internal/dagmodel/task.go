// Package dagmodel implements the task DAG: tasks plus control and data
// edges, in-degree tracking, ready-set enumeration, and DFS cycle
// detection, as described for the orchestrator's workload state.
package dagmodel

// Task is a leaf unit of work inside a DAG. TaskID is unique within its
// owning DAG; TaskType selects a wire deserializer in the task-type
// registry. Deadline is in seconds; DeadlineAware admission compares it
// with estimated finish times counted from the admission decision as
// time zero, and no wall clock is read. HasDeadline false means "no
// deadline" (the sentinel, rather than a magic time value).
type Task struct {
	TaskID        uint64
	TaskType      uint8
	ComputeDemand float64
	InputSize     uint64
	OutputSize    uint64
	HasDeadline   bool
	Deadline      float64
	AccelType     string
}
