//go:build gocv

package capture

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// DeviceAvailable reports whether local camera support was compiled in.
const DeviceAvailable = true

// DeviceDriver opens a local camera through OpenCV.
type DeviceDriver struct {
	ID     int
	Width  int
	Height int
}

func (d DeviceDriver) Open(ctx context.Context) (Reader, error) {
	cam, err := gocv.VideoCaptureDevice(d.ID)
	if err != nil {
		return nil, fmt.Errorf("open device %d: %w", d.ID, err)
	}
	if !cam.IsOpened() {
		cam.Close()
		return nil, fmt.Errorf("device %d not opened", d.ID)
	}
	if d.Width > 0 && d.Height > 0 {
		cam.Set(gocv.VideoCaptureFrameWidth, float64(d.Width))
		cam.Set(gocv.VideoCaptureFrameHeight, float64(d.Height))
	}
	mat := gocv.NewMat()
	return &deviceReader{ctx: ctx, cam: cam, frame: &mat}, nil
}

type deviceReader struct {
	ctx   context.Context
	cam   *gocv.VideoCapture
	frame *gocv.Mat // reused between reads
}

func (r *deviceReader) ReadFrame() (image.Image, error) {
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}
	if !r.cam.Read(r.frame) {
		return nil, fmt.Errorf("cannot read frame")
	}
	if r.frame.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}
	return r.frame.ToImage()
}

func (r *deviceReader) Close() error {
	r.frame.Close()
	return r.cam.Close()
}
