//go:build !gocv

package capture

import (
	"context"
	"errors"
)

// DeviceAvailable reports whether local camera support was compiled in.
const DeviceAvailable = false

// DeviceDriver needs the gocv build tag; without it Open always fails.
type DeviceDriver struct {
	ID     int
	Width  int
	Height int
}

func (d DeviceDriver) Open(ctx context.Context) (Reader, error) {
	return nil, errors.New("built without camera support (rebuild with -tags gocv)")
}
