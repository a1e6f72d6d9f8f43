package config

import (
	"fmt"
	"net"
	"sort"

	"github.com/edgeorch/orchestrator/internal/cluster"
	"github.com/edgeorch/orchestrator/internal/strategy"
)

// BuildCluster resolves each configured backend address into a
// cluster.Cluster.
func (c *Config) BuildCluster() (*cluster.Cluster, error) {
	backends := make([]cluster.Backend, 0, len(c.Cluster))
	for _, b := range c.Cluster {
		addr, err := net.ResolveTCPAddr("tcp", b.Address)
		if err != nil {
			return nil, fmt.Errorf("config: resolve backend %q: %w", b.Address, err)
		}
		backends = append(backends, cluster.Backend{Address: addr, AccelType: b.AccelType})
	}
	return cluster.New(backends), nil
}

// BuildScheduler returns the configured cluster scheduler.
func (c *Config) BuildScheduler() strategy.ClusterScheduler {
	switch c.Scheduler {
	case "first_fit":
		return &strategy.FirstFit{}
	default:
		return strategy.LeastLoaded{}
	}
}

// BuildAdmissionPolicy returns the configured admission policy, or nil
// for "always admit".
func (c *Config) BuildAdmissionPolicy() strategy.AdmissionPolicy {
	switch c.AdmissionPolicy {
	case "max_active_tasks":
		return strategy.MaxActiveTasks{Threshold: c.MaxActiveTasks}
	case "deadline_aware":
		return strategy.DeadlineAware{ComputeRateFlopsPerSec: c.ComputeRateFlopsSec}
	default:
		return nil
	}
}

// BuildScalingPolicy returns the configured scaling policy, or nil if
// the device manager is disabled or no policy was named.
func (c *Config) BuildScalingPolicy() strategy.ScalingPolicy {
	if !c.DeviceManagerEnabled {
		return nil
	}
	switch c.ScalingPolicy {
	case "utilization":
		return strategy.Utilization{}
	case "conservative":
		return strategy.Conservative{}
	default:
		return nil
	}
}

// BuildOperatingPoints converts the configured DVFS table, sorted
// ascending by frequency as strategy.BackendDeviceState requires.
func (c *Config) BuildOperatingPoints() []strategy.OperatingPoint {
	opps := make([]strategy.OperatingPoint, len(c.OperatingPoints))
	for i, o := range c.OperatingPoints {
		opps[i] = strategy.OperatingPoint{Frequency: o.Frequency, Voltage: o.Voltage}
	}
	sort.Slice(opps, func(i, j int) bool { return opps[i].Frequency < opps[j].Frequency })
	return opps
}
