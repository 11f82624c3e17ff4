// Package camera owns the device camera stream: device detection,
// acquisition, facing toggle and release.
package camera

import (
	"context"
	"image"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/moment/internal/errors"
)

// Facing is the requested camera direction.
type Facing string

const (
	FacingFront Facing = "user"
	FacingBack  Facing = "environment"
)

// Opposite returns the other facing.
func (f Facing) Opposite() Facing {
	if f == FacingFront {
		return FacingBack
	}
	return FacingFront
}

// DeviceKind classifies an enumerated media device.
type DeviceKind string

const (
	KindVideoInput  DeviceKind = "videoinput"
	KindAudioInput  DeviceKind = "audioinput"
	KindAudioOutput DeviceKind = "audiooutput"
)

// DeviceInfo describes an enumerated media device.
type DeviceInfo struct {
	ID     string     `json:"id"`
	Label  string     `json:"label"`
	Kind   DeviceKind `json:"kind"`
	Facing Facing     `json:"facing,omitempty"`
}

// Constraints are passed to the driver when requesting a stream.
// An empty Facing means any camera.
type Constraints struct {
	Facing Facing
}

// Track is one media track of a stream.
type Track interface {
	Stop()
}

// Stream is a live camera stream.
type Stream interface {
	ID() string
	Tracks() []Track
	// Snapshot grabs the current frame.
	Snapshot(ctx context.Context) (image.Image, error)
}

// Driver is the platform capture API.
type Driver interface {
	EnumerateDevices(ctx context.Context) ([]DeviceInfo, error)
	AcquireStream(ctx context.Context, c Constraints) (Stream, error)
}

// Manager holds at most one live stream and always releases it before
// acquiring another.
type Manager struct {
	mu     sync.Mutex
	driver Driver
	logger *zap.Logger

	stream Stream
	facing Facing
}

// NewManager creates a manager over driver.
func NewManager(driver Driver, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{driver: driver, logger: logger, facing: FacingBack}
}

// ListDevices returns the video input devices.
func (m *Manager) ListDevices(ctx context.Context) ([]DeviceInfo, error) {
	devices, err := m.driver.EnumerateDevices(ctx)
	if err != nil {
		return nil, errors.NewAccessDenied(err)
	}
	video := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		if d.Kind == KindVideoInput {
			video = append(video, d)
		}
	}
	return video, nil
}

// Acquire releases any held stream and opens a new one. With a single
// camera the facing preference is ignored. Fails with NO_DEVICE when no
// camera exists and ACCESS_DENIED when the driver refuses.
func (m *Manager) Acquire(ctx context.Context, facing Facing) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquireLocked(ctx, facing)
}

// Toggle switches facing by releasing the stream and acquiring again.
func (m *Manager) Toggle(ctx context.Context) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquireLocked(ctx, m.facing.Opposite())
}

func (m *Manager) acquireLocked(ctx context.Context, facing Facing) (Stream, error) {
	m.releaseLocked()

	devices, err := m.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		m.logger.Info("no video input devices")
		return nil, errors.NewNoDevice()
	}

	constraints := Constraints{Facing: facing}
	if len(devices) == 1 {
		constraints.Facing = ""
	}

	stream, err := m.driver.AcquireStream(ctx, constraints)
	if err != nil {
		m.logger.Warn("camera acquisition failed", zap.String("facing", string(facing)), zap.Error(err))
		return nil, errors.NewAccessDenied(err)
	}

	m.stream = stream
	m.facing = facing
	m.logger.Debug("camera stream acquired",
		zap.String("stream", stream.ID()),
		zap.String("facing", string(facing)),
		zap.Int("devices", len(devices)))
	return stream, nil
}

// Release stops every track of the held stream. Safe to call repeatedly.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
}

func (m *Manager) releaseLocked() {
	if m.stream == nil {
		return
	}
	for _, t := range m.stream.Tracks() {
		t.Stop()
	}
	m.logger.Debug("camera stream released", zap.String("stream", m.stream.ID()))
	m.stream = nil
}

// Current returns the held stream, or nil.
func (m *Manager) Current() Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream
}

// Facing returns the facing of the last successful acquisition.
func (m *Manager) Facing() Facing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.facing
}
