package dagmodel

import "log/slog"

// node is the internal bookkeeping record for one task in a DAG: its
// successors (control edges), the subset of successors that are also
// data edges, its remaining in-degree, and whether it has completed.
type node struct {
	task           Task
	successors     []int
	dataSuccessors []int
	inDegree       int
	completed      bool
}

// DAG is an ordered collection of tasks plus control and data edge sets
// over task indices, owned by exactly one workload.
type DAG struct {
	nodes          []node
	taskIDToIndex  map[uint64]int
	completedCount int
}

// New returns an empty DAG ready for AddTask/AddControlEdge/AddDataEdge.
func New() *DAG {
	return &DAG{taskIDToIndex: make(map[uint64]int)}
}

// AddTask appends task and returns its new index.
func (d *DAG) AddTask(task Task) int {
	idx := len(d.nodes)
	d.nodes = append(d.nodes, node{task: task})
	d.taskIDToIndex[task.TaskID] = idx
	return idx
}

// AddControlEdge adds an ordering edge from -> to and increments
// inDegree[to]. Invalid indices or a self-loop are logged and ignored;
// callers are expected to Validate() before running.
func (d *DAG) AddControlEdge(from, to int) {
	if !d.validIndices(from, to) {
		slog.Warn("dagmodel: control edge with invalid indices ignored", "from", from, "to", to)
		return
	}
	d.nodes[from].successors = append(d.nodes[from].successors, to)
	d.nodes[to].inDegree++
}

// AddDataEdge adds a control edge from -> to that additionally marks the
// pair as a data dependency: on completion of from, its current output
// size is added to to's input size.
func (d *DAG) AddDataEdge(from, to int) {
	if !d.validIndices(from, to) {
		slog.Warn("dagmodel: data edge with invalid indices ignored", "from", from, "to", to)
		return
	}
	d.nodes[from].successors = append(d.nodes[from].successors, to)
	d.nodes[from].dataSuccessors = append(d.nodes[from].dataSuccessors, to)
	d.nodes[to].inDegree++
}

func (d *DAG) validIndices(from, to int) bool {
	if from == to {
		return false
	}
	return from >= 0 && from < len(d.nodes) && to >= 0 && to < len(d.nodes)
}

// color states for DFS cycle detection.
const (
	white = iota
	gray
	black
)

// Validate runs DFS three-color cycle detection over all nodes,
// including disconnected components. An empty DAG is valid.
func (d *DAG) Validate() bool {
	colors := make([]int, len(d.nodes))
	var visit func(i int) bool
	visit = func(i int) bool {
		colors[i] = gray
		for _, s := range d.nodes[i].successors {
			switch colors[s] {
			case gray:
				return false
			case white:
				if !visit(s) {
					return false
				}
			}
		}
		colors[i] = black
		return true
	}
	for i := range d.nodes {
		if colors[i] == white {
			if !visit(i) {
				return false
			}
		}
	}
	return true
}

// GetReadyTasks returns the indices of every not-yet-completed task with
// zero remaining in-degree.
func (d *DAG) GetReadyTasks() []int {
	var ready []int
	for i, n := range d.nodes {
		if !n.completed && n.inDegree == 0 {
			ready = append(ready, i)
		}
	}
	return ready
}

// MarkCompleted marks idx completed, decrements in-degree of its control
// successors, and propagates output size to data successors' input size.
// Calling on an already-completed index is a no-op (logged).
func (d *DAG) MarkCompleted(idx int) {
	if idx < 0 || idx >= len(d.nodes) {
		slog.Warn("dagmodel: MarkCompleted out of range", "index", idx)
		return
	}
	n := &d.nodes[idx]
	if n.completed {
		slog.Warn("dagmodel: MarkCompleted called on already-completed task", "index", idx)
		return
	}
	n.completed = true
	d.completedCount++
	for _, s := range n.successors {
		d.nodes[s].inDegree--
	}
	for _, s := range n.dataSuccessors {
		d.nodes[s].task.InputSize += n.task.OutputSize
	}
}

// IsComplete reports whether every task in the DAG has completed.
func (d *DAG) IsComplete() bool {
	return d.completedCount == len(d.nodes)
}

// GetSinkTasks returns the indices of tasks with no successors.
// Well-formed DAGs are expected to have exactly one.
func (d *DAG) GetSinkTasks() []int {
	var sinks []int
	for i, n := range d.nodes {
		if len(n.successors) == 0 {
			sinks = append(sinks, i)
		}
	}
	return sinks
}

// GetTaskIndex resolves a client-facing task ID to its DAG index in O(1).
func (d *DAG) GetTaskIndex(taskID uint64) (int, bool) {
	idx, ok := d.taskIDToIndex[taskID]
	return idx, ok
}

// GetTask returns the task stored at idx.
func (d *DAG) GetTask(idx int) Task {
	return d.nodes[idx].task
}

// SetTask replaces the task stored at idx, used after a backend response
// arrives so that the response's (possibly updated) output size is what
// MarkCompleted propagates to data successors.
func (d *DAG) SetTask(idx int, task Task) {
	d.nodes[idx].task = task
	d.taskIDToIndex[task.TaskID] = idx
}

// TaskCount returns the number of tasks in the DAG.
func (d *DAG) TaskCount() int { return len(d.nodes) }

// StaticInDegree returns idx's remaining control in-degree, which
// MarkCompleted decrements; on a DAG with no completed tasks it equals
// the structural in-degree. Used by admission-time feasibility analysis
// on a DAG that has not started executing.
func (d *DAG) StaticInDegree(idx int) int { return d.nodes[idx].inDegree }

// StaticSuccessors returns idx's control successors.
func (d *DAG) StaticSuccessors(idx int) []int {
	return append([]int(nil), d.nodes[idx].successors...)
}
