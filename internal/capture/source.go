package capture

import (
	"fmt"

	"github.com/RodyMacay/frontend-trash-classifications/internal/config"
)

// FromConfig picks the driver for cfg and the device name to claim.
func FromConfig(cfg config.CaptureConfig) (string, Driver, error) {
	switch cfg.Source {
	case config.SourceSynthetic, "":
		return "synthetic", SyntheticDriver{FPS: cfg.FPS}, nil
	case config.SourceMJPEG:
		return cfg.MJPEGURL, MJPEGDriver{URL: cfg.MJPEGURL}, nil
	case config.SourceFile:
		return cfg.File, FileDriver{Path: cfg.File, FPS: cfg.FPS}, nil
	case config.SourceDevice:
		return fmt.Sprintf("device:%d", cfg.Device), DeviceDriver{ID: cfg.Device, Width: 640, Height: 480}, nil
	default:
		return "", nil, fmt.Errorf("unknown capture source %q", cfg.Source)
	}
}
