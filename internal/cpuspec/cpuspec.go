// Package cpuspec picks thread counts for feature modules from the host CPU.
package cpuspec

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// CPUSpec contains information about CPU specifications
type CPUSpec struct {
	BrandName     string
	PhysicalCores int
	LogicalCores  int
	AVX2          bool
}

// GetCPUSpec returns the specification of the host CPU.
func GetCPUSpec() CPUSpec {
	return CPUSpec{
		BrandName:     cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		AVX2:          cpuid.CPU.Supports(cpuid.AVX2),
	}
}

// GetOptimalThreadCount returns the recommended number of interpreter
// threads: one per physical core, capped by the CPUs available to the
// process (important for containers and VMs).
func (c CPUSpec) GetOptimalThreadCount() int {
	available := runtime.NumCPU()

	threads := c.PhysicalCores
	if threads <= 0 {
		threads = c.LogicalCores
	}
	if threads <= 0 || threads > available {
		threads = available
	}
	return max(threads, 1)
}

// ResolveThreads returns configured when positive, otherwise the optimal
// thread count for this host.
func ResolveThreads(configured int) int {
	if configured > 0 {
		return configured
	}
	return GetCPUSpec().GetOptimalThreadCount()
}
