package devicecatalog

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/waveline-audio/waveline/internal/hostapi"
)

// StandardRates is the fixed set of rates tried during rate negotiation,
// lowest first.
var StandardRates = []int{
	8000, 11025, 16000, 22050, 32000, 44100, 48000,
	88200, 96000, 176400, 192000, 352800, 384000,
}

// Direction distinguishes capture and playback endpoints.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// DeviceDescriptor is an immutable snapshot of one hardware endpoint,
// produced by a rescan. Descriptors are never mutated, only replaced
// wholesale by the next Rescan.
type DeviceDescriptor struct {
	HostID      string
	Index       int
	Name        string
	Channels    int
	DefaultRate int
	Direction   Direction
}

func (d DeviceDescriptor) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Index:       %d\n", d.Index)
	fmt.Fprintf(&sb, "Name:        %s\n", d.Name)
	fmt.Fprintf(&sb, "Direction:   %s\n", d.Direction)
	fmt.Fprintf(&sb, "Channels:    %d\n", d.Channels)
	fmt.Fprintf(&sb, "DefaultRate: %d\n", d.DefaultRate)
	return sb.String()
}

// Catalog is a pure query object over the host's audio devices. It holds the
// snapshots from the most recent scan; it is rescanned on explicit request
// only, never implicitly while a stream is open.
type Catalog struct {
	logger *slog.Logger
	host   hostapi.Host

	mu      sync.RWMutex
	inputs  []DeviceDescriptor
	outputs []DeviceDescriptor
}

// New creates a catalog over the given host and performs an initial scan.
// A failed initial scan leaves the catalog empty rather than failing
// construction; callers see the error from the next explicit Rescan.
func New(host hostapi.Host) *Catalog {
	c := &Catalog{
		logger: slog.Default().With("component", "device catalog"),
		host:   host,
	}
	if err := c.Rescan(); err != nil {
		c.logger.Warn("initial device scan failed", "err", err)
	}
	return c
}

// Rescan replaces both device lists with fresh snapshots.
func (c *Catalog) Rescan() error {
	rawInputs, err := c.host.InputDevices()
	if err != nil {
		return fmt.Errorf("failed to scan input devices: %w", err)
	}
	rawOutputs, err := c.host.OutputDevices()
	if err != nil {
		return fmt.Errorf("failed to scan output devices: %w", err)
	}

	inputs := make([]DeviceDescriptor, len(rawInputs))
	for i, d := range rawInputs {
		inputs[i] = descriptor(d, Input)
	}
	outputs := make([]DeviceDescriptor, len(rawOutputs))
	for i, d := range rawOutputs {
		outputs[i] = descriptor(d, Output)
	}

	c.mu.Lock()
	c.inputs = inputs
	c.outputs = outputs
	c.mu.Unlock()

	c.logger.Debug("device scan complete", "inputs", len(inputs), "outputs", len(outputs))
	return nil
}

func descriptor(d hostapi.DeviceInfo, dir Direction) DeviceDescriptor {
	return DeviceDescriptor{
		HostID:      d.ID,
		Index:       d.Index,
		Name:        d.Name,
		Channels:    d.Channels,
		DefaultRate: d.DefaultRate,
		Direction:   dir,
	}
}

// InputDevices returns the input snapshot from the last scan.
func (c *Catalog) InputDevices() []DeviceDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]DeviceDescriptor(nil), c.inputs...)
}

// OutputDevices returns the output snapshot from the last scan.
func (c *Catalog) OutputDevices() []DeviceDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]DeviceDescriptor(nil), c.outputs...)
}

// SupportedRates queries which of the standard rates the device supports.
func (c *Catalog) SupportedRates(d DeviceDescriptor) []int {
	return c.host.SupportedRates(
		hostapi.DeviceInfo{Index: d.Index, ID: d.HostID, Name: d.Name},
		d.Direction == Input,
		StandardRates,
	)
}

// FindByName returns the first device in the given direction whose name
// matches, or the first device of that direction when name is empty
// (the host default). ok is false when nothing matches.
func (c *Catalog) FindByName(dir Direction, name string) (DeviceDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	devices := c.outputs
	if dir == Input {
		devices = c.inputs
	}
	if len(devices) == 0 {
		return DeviceDescriptor{}, false
	}
	if name == "" {
		return devices[0], true
	}
	for _, d := range devices {
		if d.Name == name {
			return d, true
		}
	}
	return DeviceDescriptor{}, false
}
