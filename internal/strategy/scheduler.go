package strategy

import (
	"github.com/edgeorch/orchestrator/internal/cluster"
	"github.com/edgeorch/orchestrator/internal/dagmodel"
)

func candidates(task dagmodel.Task, c *cluster.Cluster) []int {
	var out []int
	for i := 0; i < c.GetN(); i++ {
		if task.AccelType == "" || c.Get(i).AccelType == task.AccelType {
			out = append(out, i)
		}
	}
	return out
}

// FirstFit keeps a per-type round-robin cursor and advances it on every
// call, returning the next matching backend in rotation.
type FirstFit struct {
	cursors map[string]int
}

func (s *FirstFit) ScheduleTask(task dagmodel.Task, c *cluster.Cluster, state *cluster.State) (int, bool) {
	cands := candidates(task, c)
	if len(cands) == 0 {
		return 0, false
	}
	if s.cursors == nil {
		s.cursors = make(map[string]int)
	}
	cursor := s.cursors[task.AccelType]
	idx := cands[cursor%len(cands)]
	s.cursors[task.AccelType] = cursor + 1
	return idx, true
}

func (s *FirstFit) NotifyTaskCompleted(backendIdx int, task dagmodel.Task) {}

// LeastLoaded picks the candidate backend with the fewest active tasks,
// ties broken by lowest index.
type LeastLoaded struct{}

func (LeastLoaded) ScheduleTask(task dagmodel.Task, c *cluster.Cluster, state *cluster.State) (int, bool) {
	cands := candidates(task, c)
	if len(cands) == 0 {
		return 0, false
	}
	best := cands[0]
	for _, idx := range cands[1:] {
		if state.ActiveTasks(idx) < state.ActiveTasks(best) {
			best = idx
		}
	}
	return best, true
}

func (LeastLoaded) NotifyTaskCompleted(backendIdx int, task dagmodel.Task) {}
