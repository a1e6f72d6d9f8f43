package strategy

import (
	"github.com/edgeorch/orchestrator/internal/cluster"
	"github.com/edgeorch/orchestrator/internal/dagmodel"
)

// MaxActiveTasks admits a DAG iff at least one backend currently has
// fewer than Threshold active tasks.
type MaxActiveTasks struct {
	Threshold int
}

func (p MaxActiveTasks) ShouldAdmit(dag *dagmodel.DAG, c *cluster.Cluster, state *cluster.State) bool {
	for i := 0; i < c.GetN(); i++ {
		if state.ActiveTasks(i) < p.Threshold {
			return true
		}
	}
	return false
}

// DeadlineAware rejects the whole DAG if any deadlined task cannot meet
// its deadline on every candidate backend, given a configured compute
// rate (FLOPS/sec) used to estimate execution time.
type DeadlineAware struct {
	ComputeRateFlopsPerSec float64
}

// execTime estimates the wall-clock time to run task given the
// configured compute rate.
func (p DeadlineAware) execTime(task dagmodel.Task) float64 {
	if p.ComputeRateFlopsPerSec <= 0 {
		return 0
	}
	return task.ComputeDemand / p.ComputeRateFlopsPerSec
}

// earliestStarts computes, for every DAG index, the earliest time at
// which it could begin executing: the max over control predecessors'
// (earliestStart + execTime), 0 for roots. This is a topological walk
// over a DAG assumed acyclic (callers validate before admission).
func (p DeadlineAware) earliestStarts(dag *dagmodel.DAG) []float64 {
	n := dag.TaskCount()
	starts := make([]float64, n)
	inDeg := make([]int, n)
	succ := make([][]int, n)
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		d := dag.StaticInDegree(i)
		inDeg[i] = d
		succ[i] = dag.StaticSuccessors(i)
		if d == 0 {
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		finish := starts[i] + p.execTime(dag.GetTask(i))
		for _, s := range succ[i] {
			if finish > starts[s] {
				starts[s] = finish
			}
			inDeg[s]--
			if inDeg[s] == 0 {
				queue = append(queue, s)
			}
		}
	}
	return starts
}

func (p DeadlineAware) ShouldAdmit(dag *dagmodel.DAG, c *cluster.Cluster, state *cluster.State) bool {
	starts := p.earliestStarts(dag)
	for i := 0; i < dag.TaskCount(); i++ {
		task := dag.GetTask(i)
		if !task.HasDeadline {
			continue
		}
		feasible := false
		for b := 0; b < c.GetN(); b++ {
			backend := c.Get(b)
			if task.AccelType != "" && backend.AccelType != task.AccelType {
				continue
			}
			finish := starts[i] + float64(state.ActiveTasks(b)+1)*p.execTime(task)
			if finish <= task.Deadline {
				feasible = true
				break
			}
		}
		if !feasible {
			return false
		}
	}
	return true
}
