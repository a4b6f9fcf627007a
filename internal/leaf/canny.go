package leaf

import "math"

// tan(22.5°) and tan(67.5°) split gradient directions into four sectors.
const (
	tan22 = 0.41421356
	tan67 = 2.41421356
)

// canny runs Sobel gradients (3x3, replicated borders, L1 magnitude),
// non-maximum suppression and hysteresis thresholding over a grayscale
// raster and returns the number of edge pixels.
func canny(gray []uint8, w, h int, low, high float64) int {
	if w == 0 || h == 0 {
		return 0
	}

	at := func(x, y int) int {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return int(gray[y*w+x])
	}

	n := w * h
	gx := make([]int, n)
	gy := make([]int, n)
	mag := make([]float64, n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := (at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1)) -
				(at(x-1, y-1) + 2*at(x-1, y) + at(x-1, y+1))
			dy := (at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)) -
				(at(x-1, y-1) + 2*at(x, y-1) + at(x+1, y-1))
			i := y*w + x
			gx[i], gy[i] = dx, dy
			mag[i] = math.Abs(float64(dx)) + math.Abs(float64(dy))
		}
	}

	magAt := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	// 0 = suppressed, 1 = weak candidate, 2 = strong edge
	state := make([]uint8, n)
	stack := make([]int, 0, n/8)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}

			ax := math.Abs(float64(gx[i]))
			ay := math.Abs(float64(gy[i]))
			var isMax bool
			switch {
			case ay < tan22*ax:
				isMax = m > magAt(x-1, y) && m >= magAt(x+1, y)
			case ay > tan67*ax:
				isMax = m > magAt(x, y-1) && m >= magAt(x, y+1)
			default:
				if (gx[i] < 0) != (gy[i] < 0) {
					isMax = m > magAt(x+1, y-1) && m > magAt(x-1, y+1)
				} else {
					isMax = m > magAt(x-1, y-1) && m > magAt(x+1, y+1)
				}
			}
			if !isMax {
				continue
			}
			if m > high {
				state[i] = 2
				stack = append(stack, i)
			} else {
				state[i] = 1
			}
		}
	}

	// grow strong edges through 8-connected weak candidates
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if state[j] == 1 {
					state[j] = 2
					stack = append(stack, j)
				}
			}
		}
	}

	edges := 0
	for _, s := range state {
		if s == 2 {
			edges++
		}
	}
	return edges
}
