package sampler

import (
	"bytes"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// DefaultRegion is the side of the square the classifier model expects.
const DefaultRegion = 224

// CenterSquare crops the largest square of at most side pixels from the
// centre of img and scales it to side x side.
func CenterSquare(img image.Image, side int) image.Image {
	b := img.Bounds()
	crop := min(side, b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-crop)/2
	y0 := b.Min.Y + (b.Dy()-crop)/2
	srcRect := image.Rect(x0, y0, x0+crop, y0+crop)

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	if crop == side {
		draw.Copy(dst, image.Point{}, img, srcRect, draw.Src, nil)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, srcRect, draw.Src, nil)
	}
	return dst
}

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
