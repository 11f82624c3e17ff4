package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/google/uuid"
)

// SyntheticConfig configures a SyntheticDriver.
type SyntheticConfig struct {
	Devices []DeviceInfo
	Width   int
	Height  int
	// Deny makes every acquisition fail as if permission was refused.
	Deny bool
}

// DefaultDevices returns a phone-like front and back camera pair.
func DefaultDevices() []DeviceInfo {
	return []DeviceInfo{
		{ID: "cam-front", Label: "Front Camera", Kind: KindVideoInput, Facing: FacingFront},
		{ID: "cam-back", Label: "Back Camera", Kind: KindVideoInput, Facing: FacingBack},
	}
}

// SyntheticDriver produces placeholder gradient frames for hosts without a
// camera and for tests.
type SyntheticDriver struct {
	cfg SyntheticConfig
}

// NewSyntheticDriver creates a driver. Zero sizes default to 640x480.
func NewSyntheticDriver(cfg SyntheticConfig) *SyntheticDriver {
	if cfg.Width == 0 {
		cfg.Width = 640
	}
	if cfg.Height == 0 {
		cfg.Height = 480
	}
	return &SyntheticDriver{cfg: cfg}
}

// EnumerateDevices returns the configured devices.
func (d *SyntheticDriver) EnumerateDevices(_ context.Context) ([]DeviceInfo, error) {
	return append([]DeviceInfo(nil), d.cfg.Devices...), nil
}

// AcquireStream opens a stream on the device matching c.Facing, or the first camera.
func (d *SyntheticDriver) AcquireStream(_ context.Context, c Constraints) (Stream, error) {
	if d.cfg.Deny {
		return nil, fmt.Errorf("permission denied")
	}

	var chosen *DeviceInfo
	for i := range d.cfg.Devices {
		dev := &d.cfg.Devices[i]
		if dev.Kind != KindVideoInput {
			continue
		}
		if chosen == nil {
			chosen = dev
		}
		if c.Facing != "" && dev.Facing == c.Facing {
			chosen = dev
			break
		}
	}
	if chosen == nil {
		return nil, fmt.Errorf("requested device not found")
	}

	return &syntheticStream{
		id:     uuid.NewString(),
		device: *chosen,
		width:  d.cfg.Width,
		height: d.cfg.Height,
		track:  &syntheticTrack{},
	}, nil
}

type syntheticTrack struct {
	mu      sync.Mutex
	stopped bool
}

func (t *syntheticTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *syntheticTrack) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type syntheticStream struct {
	id     string
	device DeviceInfo
	width  int
	height int
	track  *syntheticTrack
}

func (s *syntheticStream) ID() string { return s.id }

func (s *syntheticStream) Tracks() []Track { return []Track{s.track} }

// Device returns the device the stream was opened on.
func (s *syntheticStream) Device() DeviceInfo { return s.device }

func (s *syntheticStream) Snapshot(_ context.Context) (image.Image, error) {
	if s.track.isStopped() {
		return nil, fmt.Errorf("stream %s has ended", s.id)
	}

	// Front and back cameras get different tints so captures are distinguishable.
	tint := uint8(64)
	if s.device.Facing == FacingFront {
		tint = 192
	}

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: tint,
				G: uint8(x * 255 / s.width),
				B: uint8(y * 255 / s.height),
				A: 255,
			})
		}
	}
	return img, nil
}
