// Package cluster models the fixed set of backend accelerators the
// orchestrator dispatches tasks to, and the authoritative per-backend
// counters strategies read to make admission, scheduling, and scaling
// decisions.
package cluster

import "net"

// Backend is one accelerator endpoint in the cluster, fixed for the
// lifetime of a run.
type Backend struct {
	Address   net.Addr
	AccelType string
}

// Cluster is the fixed, ordered set of backends configured at startup.
type Cluster struct {
	backends []Backend
}

// New returns a Cluster over the given backends.
func New(backends []Backend) *Cluster {
	c := &Cluster{backends: append([]Backend(nil), backends...)}
	return c
}

// GetN returns the number of backends.
func (c *Cluster) GetN() int { return len(c.backends) }

// Get returns the backend at idx.
func (c *Cluster) Get(idx int) Backend { return c.backends[idx] }

// IsEmpty reports whether the cluster has no backends.
func (c *Cluster) IsEmpty() bool { return len(c.backends) == 0 }

// All returns all backends for iteration.
func (c *Cluster) All() []Backend { return c.backends }
