package capture

import (
	"context"
	"image"
	"image/color"
	"time"
)

// Color bars: White, Yellow, Cyan, Green, Magenta, Red, Blue, Black
var barColors = []color.RGBA{
	{R: 255, G: 255, B: 255, A: 255},
	{R: 255, G: 255, B: 0, A: 255},
	{R: 0, G: 255, B: 255, A: 255},
	{R: 0, G: 255, B: 0, A: 255},
	{R: 255, G: 0, B: 255, A: 255},
	{R: 255, G: 0, B: 0, A: 255},
	{R: 0, G: 0, B: 255, A: 255},
	{R: 0, G: 0, B: 0, A: 255},
}

// SyntheticDriver produces scrolling color bars. It stands in for a camera
// during development.
type SyntheticDriver struct {
	Width  int
	Height int
	FPS    int
}

func (d SyntheticDriver) Open(ctx context.Context) (Reader, error) {
	w, h := d.Width, d.Height
	if w <= 0 || h <= 0 {
		w, h = 640, 480
	}
	return &syntheticReader{
		ctx:    ctx,
		width:  w,
		height: h,
		ticker: time.NewTicker(frameInterval(d.FPS)),
	}, nil
}

type syntheticReader struct {
	ctx    context.Context
	width  int
	height int
	ticker *time.Ticker
	offset int
}

func (r *syntheticReader) ReadFrame() (image.Image, error) {
	select {
	case <-r.ctx.Done():
		return nil, r.ctx.Err()
	case <-r.ticker.C:
	}

	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	barWidth := max(r.width/len(barColors), 1)
	for y := range r.height {
		for x := range r.width {
			barIndex := ((x + r.offset) / barWidth) % len(barColors)
			img.SetRGBA(x, y, barColors[barIndex])
		}
	}
	r.offset += barWidth / 8
	return img, nil
}

func (r *syntheticReader) Close() error {
	r.ticker.Stop()
	return nil
}

func frameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = 15
	}
	return time.Second / time.Duration(fps)
}
