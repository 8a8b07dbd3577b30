package capture

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

// MJPEGDriver reads a multipart/x-mixed-replace JPEG stream, the format
// most IP cameras serve.
type MJPEGDriver struct {
	URL    string
	Client *http.Client
}

func (d MJPEGDriver) Open(ctx context.Context) (Reader, error) {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", d.URL, resp.Status)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		return nil, fmt.Errorf("not an MJPEG stream: %q", resp.Header.Get("Content-Type"))
	}

	return &mjpegReader{
		body: resp.Body,
		mr:   multipart.NewReader(resp.Body, params["boundary"]),
	}, nil
}

type mjpegReader struct {
	body io.ReadCloser
	mr   *multipart.Reader
}

func (r *mjpegReader) ReadFrame() (image.Image, error) {
	part, err := r.mr.NextPart()
	if err != nil {
		return nil, err
	}
	defer part.Close()
	return jpeg.Decode(part)
}

func (r *mjpegReader) Close() error {
	return r.body.Close()
}
