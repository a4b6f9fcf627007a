package leaf

import (
	"math"
)

// HSVRange is an inclusive band on the 8-bit hue (0-180), saturation and value scales.
type HSVRange struct {
	HueMin, HueMax uint8
	SatMin, SatMax uint8
	ValMin, ValMax uint8
}

// GreenRange selects foliage-like pixels and rejects gray, white and very dark areas.
var GreenRange = HSVRange{HueMin: 35, HueMax: 85, SatMin: 40, SatMax: 255, ValMin: 40, ValMax: 255}

// Canny hysteresis thresholds used for the texture edge map.
const (
	cannyLow  = 50
	cannyHigh = 150
)

// neutralTexture is reported when texture scoring cannot complete.
const neutralTexture = 50.0

// Mask marks the pixels selected by an HSVRange.
type Mask []bool

// Count returns the number of selected pixels.
func (m Mask) Count() int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

// Scores are the raw leaf-likeness measurements of one bitmap.
type Scores struct {
	GreenPercentage float64
	TextureScore    float64
}

// Score runs both measurements over bm.
func Score(bm *Bitmap) Scores {
	green, mask := GreenRatio(bm)
	return Scores{GreenPercentage: green, TextureScore: TextureScore(bm, mask)}
}

// GreenRatio returns the percentage of pixels inside GreenRange together with their mask.
func GreenRatio(bm *Bitmap) (float64, Mask) {
	total := bm.Len()
	mask := make(Mask, total)
	if total == 0 {
		return 0, mask
	}

	green := 0
	for i := 0; i < total; i++ {
		h, s, v := toHSV(bm.RGB(i))
		if GreenRange.contains(h, s, v) {
			mask[i] = true
			green++
		}
	}
	return float64(green) / float64(total) * 100, mask
}

// TextureScore combines edge density and intensity variance of the masked
// region into a 0-100 score. Leaves carry veins and shading that flat green
// objects lack. A failure inside the computation yields a neutral 50.
func TextureScore(bm *Bitmap, mask Mask) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			score = neutralTexture
		}
	}()

	selected := mask.Count()
	if selected == 0 {
		return 0
	}

	gray := grayscale(bm)
	for i := range gray {
		if !mask[i] {
			gray[i] = 0
		}
	}

	edges := canny(gray, bm.Width, bm.Height, cannyLow, cannyHigh)
	edgeDensity := float64(edges) / float64(selected) * 100

	complexity := math.Min(maskedVariance(gray, mask)/10, 100)

	return math.Min(edgeDensity*0.6+complexity*0.4, 100)
}

func (r HSVRange) contains(h, s, v uint8) bool {
	return h >= r.HueMin && h <= r.HueMax &&
		s >= r.SatMin && s <= r.SatMax &&
		v >= r.ValMin && v <= r.ValMax
}

// toHSV converts 8-bit RGB into the 8-bit HSV convention where hue spans 0-180.
func toHSV(r, g, b uint8) (h, s, v uint8) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	maxc := math.Max(rf, math.Max(gf, bf))
	minc := math.Min(rf, math.Min(gf, bf))
	diff := maxc - minc

	v = uint8(maxc)
	if maxc == 0 {
		return 0, 0, v
	}
	s = uint8(math.Round(diff / maxc * 255))
	if diff == 0 {
		return 0, s, v
	}

	var deg float64
	switch maxc {
	case rf:
		deg = 60 * (gf - bf) / diff
	case gf:
		deg = 120 + 60*(bf-rf)/diff
	default:
		deg = 240 + 60*(rf-gf)/diff
	}
	if deg < 0 {
		deg += 360
	}
	hv := math.Round(deg / 2)
	if hv >= 180 {
		hv -= 180
	}
	return uint8(hv), s, v
}

// grayscale applies the BT.601 luma weights in 14-bit fixed point.
func grayscale(bm *Bitmap) []uint8 {
	out := make([]uint8, bm.Len())
	for i := range out {
		r, g, b := bm.RGB(i)
		out[i] = uint8((uint32(r)*4899 + uint32(g)*9617 + uint32(b)*1868 + 8192) >> 14)
	}
	return out
}

func maskedVariance(gray []uint8, mask Mask) float64 {
	var sum, sumSq float64
	n := 0
	for i, v := range gray {
		if !mask[i] {
			continue
		}
		f := float64(v)
		sum += f
		sumSq += f * f
		n++
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	return math.Max(sumSq/float64(n)-mean*mean, 0)
}
