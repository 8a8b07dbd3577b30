package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// FileDriver replays a still image at a fixed rate.
type FileDriver struct {
	Path string
	FPS  int
}

func (d FileDriver) Open(ctx context.Context) (Reader, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.Path, err)
	}
	return &stillReader{ctx: ctx, img: img, ticker: time.NewTicker(frameInterval(d.FPS))}, nil
}

type stillReader struct {
	ctx    context.Context
	img    image.Image
	ticker *time.Ticker
}

func (r *stillReader) ReadFrame() (image.Image, error) {
	select {
	case <-r.ctx.Done():
		return nil, r.ctx.Err()
	case <-r.ticker.C:
		return r.img, nil
	}
}

func (r *stillReader) Close() error {
	r.ticker.Stop()
	return nil
}
