package mockserver

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sort"

	"github.com/RodyMacay/frontend-trash-classifications/internal/client"
)

// Labels the mock classifier answers with.
var Labels = []string{"plastico", "papel", "vidrio", "metal", "organico"}

// ErrUndecodable is returned for uploads that are not a supported image.
var ErrUndecodable = errors.New("image could not be decoded")

// sampleStep is the pixel stride of the mean colour grid.
const sampleStep = 4

// Classifier derives a deterministic label from an image's mean colour.
type Classifier struct{}

// Classify decodes data and scores each label against its mean colour.
func (Classifier) Classify(data []byte) (client.ClassificationResult, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return client.ClassificationResult{}, fmt.Errorf("%w: %w", ErrUndecodable, err)
	}
	r, g, b := meanColor(img)
	scores := scoreLabels(r, g, b)

	ranked := make([]string, len(Labels))
	copy(ranked, Labels)
	sort.SliceStable(ranked, func(i, j int) bool { return scores[ranked[i]] > scores[ranked[j]] })

	var categories []string
	for _, l := range ranked[:2] {
		if scores[l] > 0 {
			categories = append(categories, l)
		}
	}
	return client.ClassificationResult{
		TipoMaterial:       ranked[0],
		Confianza:          client.Confidence(scores[ranked[0]]),
		DetectedCategories: categories,
	}, nil
}

// meanColor averages a grid of pixels, channels in [0,1].
func meanColor(img image.Image) (float64, float64, float64) {
	bounds := img.Bounds()
	var sr, sg, sb, n float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y += sampleStep {
		for x := bounds.Min.X; x < bounds.Max.X; x += sampleStep {
			r, g, b, _ := img.At(x, y).RGBA()
			sr += float64(r)
			sg += float64(g)
			sb += float64(b)
			n++
		}
	}
	if n == 0 {
		return 0, 0, 0
	}
	const max16 = 0xffff
	return sr / n / max16, sg / n / max16, sb / n / max16
}

// scoreLabels maps a colour to a confidence per label. Scores are in
// [0.35, 0.99]; the best label is always at least 0.5.
func scoreLabels(r, g, b float64) map[string]float64 {
	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	sat := hi - lo
	light := (hi + lo) / 2

	raw := map[string]float64{
		// Grey and bright: paper. Grey and dark: metal.
		"papel": (1 - sat) * light,
		"metal": (1 - sat) * (1 - light),
		// Saturated hues.
		"plastico": sat * g * (1 - r),
		"vidrio":   sat * b,
		"organico": sat * r * (1 - b),
	}

	best := 0.0
	for _, v := range raw {
		best = math.Max(best, v)
	}
	out := make(map[string]float64, len(raw))
	for l, v := range raw {
		if best == 0 {
			out[l] = 0.35
			continue
		}
		out[l] = round2(0.35 + 0.64*v/best*clamp(0.5+sat+math.Abs(light-0.5), 0.25, 1))
	}
	// Keep the winner above a coin flip.
	for l, v := range out {
		if raw[l] == best && v < 0.5 {
			out[l] = 0.5
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
