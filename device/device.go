// Package device answers whether a named compute device is usable in
// this process. Backends register a prober at init time; callers ask by
// identifier and get a plain yes or no.
package device

import "sync"

// Prober reports whether it can serve the given device identifier.
type Prober interface {
	Probe(device string) bool
}

var (
	mu      sync.RWMutex
	probers []Prober
)

// Register adds a prober to the probe chain.
func Register(p Prober) {
	mu.Lock()
	defer mu.Unlock()
	probers = append(probers, p)
}

// Probe reports whether any registered backend can serve the device.
func Probe(device string) bool {
	mu.RLock()
	defer mu.RUnlock()
	for _, p := range probers {
		if p.Probe(device) {
			return true
		}
	}
	return false
}

// cpuProber accepts the CPU device, which is always available.
type cpuProber struct{}

func (cpuProber) Probe(device string) bool {
	return device == "cpu"
}

func init() {
	Register(cpuProber{})
}
