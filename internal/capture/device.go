package capture

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/hammamikhairi/voicechat/internal/logger"
)

// Compile-time interface check.
var _ Stream = (*DeviceStream)(nil)

// DeviceStream captures mono float32 audio from the default input device
// via miniaudio.
type DeviceStream struct {
	sampleRate int
	log        *logger.Logger

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// NewDeviceStream creates an unopened capture stream at sampleRate.
func NewDeviceStream(sampleRate int, log *logger.Logger) *DeviceStream {
	return &DeviceStream{sampleRate: sampleRate, log: log}
}

// Open initialises the audio context and device and starts capture.
func (d *DeviceStream) Open(onData func([]byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		return fmt.Errorf("capture: device already open")
	}

	// Backend diagnostics are surfaced as warnings; the stream keeps running.
	mCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		if msg = strings.TrimSpace(msg); msg != "" {
			d.log.Warn("device: %s", msg)
		}
	})
	if err != nil {
		return fmt.Errorf("capture: init audio context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.SampleRate = uint32(d.sampleRate)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_ []byte, input []byte, _ uint32) {
			onData(input)
		},
		Stop: func() {
			d.log.Warn("device: capture stopped by the driver")
		},
	}

	device, err := malgo.InitDevice(mCtx.Context, cfg, callbacks)
	if err != nil {
		_ = mCtx.Uninit()
		mCtx.Free()
		return fmt.Errorf("capture: init device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mCtx.Uninit()
		mCtx.Free()
		return fmt.Errorf("capture: start device: %w", err)
	}

	d.ctx = mCtx
	d.device = device
	d.log.Info("capture started (rate=%d, channels=1, format=f32)", d.sampleRate)
	return nil
}

// Close stops the device and releases the audio context.
func (d *DeviceStream) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return nil
	}

	var stopErr error
	if err := d.device.Stop(); err != nil {
		stopErr = fmt.Errorf("capture: stop device: %w", err)
	}
	d.device.Uninit()
	d.device = nil

	if err := d.ctx.Uninit(); err != nil && stopErr == nil {
		stopErr = fmt.Errorf("capture: release context: %w", err)
	}
	d.ctx.Free()
	d.ctx = nil
	return stopErr
}
