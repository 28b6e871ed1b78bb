package testfixtures

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// DeviceNamespace is the UUIDv5 namespace for fixture device IDs.
var DeviceNamespace = uuid.MustParse("9b1f6f0a-3c55-5b61-8a8e-6d1f2a7c4e10")

// DeviceIDGenerator produces deterministic device IDs for tests. The same
// label and sequence number always yield the same UUID.
type DeviceIDGenerator struct {
	mu      sync.Mutex
	label   string
	counter uint64
}

// NewDeviceIDGenerator constructs a generator whose IDs derive from label.
// When label is empty, "device" is used.
func NewDeviceIDGenerator(label string) *DeviceIDGenerator {
	if label == "" {
		label = "device"
	}
	return &DeviceIDGenerator{label: label}
}

// Next returns the next device ID in the sequence.
func (g *DeviceIDGenerator) Next() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return DeviceID(fmt.Sprintf("%s-%d", g.label, g.counter))
}

// NextFunc exposes Next as a function suitable for dependency injection.
func (g *DeviceIDGenerator) NextFunc() func() uuid.UUID {
	if g == nil {
		return uuid.New
	}
	return g.Next
}

// Reset restarts the sequence.
func (g *DeviceIDGenerator) Reset() {
	g.mu.Lock()
	g.counter = 0
	g.mu.Unlock()
}

// DeviceID derives the UUIDv5 for name within DeviceNamespace.
func DeviceID(name string) uuid.UUID {
	return uuid.NewSHA1(DeviceNamespace, []byte(name))
}
