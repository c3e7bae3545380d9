// Package opticalflow computes a scalar horizontal-flow magnitude between
// successive video frames. There is no OpenCV/gocv binding anywhere in this
// stack's dependency surface, so dense flow is approximated in pure Go with
// a windowed Lucas-Kanade gradient solve, parameterized to mirror the
// Farneback-style knobs (pyramid scale, levels, window, iterations,
// poly-n, poly-sigma) this pipeline was specified against, even though the
// solve itself is a different (simpler, single-level) numerical method.
package opticalflow

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
)

// Params mirrors the Farneback-style tuning the spec names; Levels and
// PyramidScale are retained for documentation parity with that spec even
// though this single-level solver does not build a pyramid.
type Params struct {
	PyramidScale float64
	Levels       int
	WindowSize   int
	Iterations   int
	PolyN        int
	PolySigma    float64
}

var DefaultParams = Params{
	PyramidScale: 0.5,
	Levels:       3,
	WindowSize:   15,
	Iterations:   3,
	PolyN:        5,
	PolySigma:    1.2,
}

// frame is a decoded grayscale image as row-major float64 intensities.
type frame struct {
	w, h int
	pix  []float64
}

// Computer holds the previous decoded frame across calls; a fresh Computer
// must be created per session since state resets on session end.
type Computer struct {
	params Params
	prev   *frame
}

func NewComputer(params Params) *Computer {
	return &Computer{params: params}
}

// Next decodes a raw image (JPEG/PNG frame extracted from the video
// stream), computes dense flow against the previously seen frame, and
// returns the mean absolute horizontal component. Returns (nil, nil) when
// bootstrapping (no previous frame yet) or when decoding fails -- decode
// errors must not terminate the stream.
func (c *Computer) Next(raw []byte) (*float64, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, nil
	}

	cur := toGrayscale(img)

	if c.prev == nil {
		c.prev = cur
		return nil, nil
	}

	if c.prev.w != cur.w || c.prev.h != cur.h {
		// Resolution changed mid-stream; treat as a fresh bootstrap rather
		// than solving flow across mismatched frames.
		c.prev = cur
		return nil, nil
	}

	magnitude := c.denseFlowMagnitude(c.prev, cur)
	c.prev = cur
	return &magnitude, nil
}

// Reset drops the previous frame, matching state reset on session end.
func (c *Computer) Reset() {
	c.prev = nil
}

func toGrayscale(img image.Image) *frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]float64, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// Rec. 601 luma, operating on the 16-bit channel values RGBA returns.
			lum := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)
			pix[y*w+x] = lum / 256.0
		}
	}
	return &frame{w: w, h: h, pix: pix}
}

func (f *frame) at(x, y int) float64 {
	if x < 0 {
		x = 0
	}
	if x >= f.w {
		x = f.w - 1
	}
	if y < 0 {
		y = 0
	}
	if y >= f.h {
		y = f.h - 1
	}
	return f.pix[y*f.w+x]
}

// denseFlowMagnitude runs a windowed Lucas-Kanade solve on a subsampled
// grid (stepping by half the window size keeps the cost bounded for
// reasonably sized frames) and returns the mean absolute value of the
// resulting horizontal flow components.
func (c *Computer) denseFlowMagnitude(prev, cur *frame) float64 {
	half := c.params.WindowSize / 2
	step := half
	if step < 1 {
		step = 1
	}

	var sumAbsU float64
	var count int

	for y := half; y < cur.h-half; y += step {
		for x := half; x < cur.w-half; x += step {
			u := lucasKanadeU(prev, cur, x, y, half, c.params.Iterations)
			sumAbsU += math.Abs(u)
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return sumAbsU / float64(count)
}

// lucasKanadeU solves the windowed normal equations for the horizontal
// flow component u at (x,y), iterating Iterations times by re-sampling the
// temporal derivative at the current estimate (a coarse Newton-style
// refinement in place of a pyramid).
func lucasKanadeU(prev, cur *frame, cx, cy, half, iterations int) float64 {
	var u float64

	for iter := 0; iter < iterations; iter++ {
		var sumIxIx, sumIxIy, sumIyIy, sumIxIt, sumIyIt float64

		for dy := -half; dy <= half; dy++ {
			for dx := -half; dx <= half; dx++ {
				x, y := cx+dx, cy+dy
				ix := (cur.at(x+1, y) - cur.at(x-1, y)) / 2
				iy := (cur.at(x, y+1) - cur.at(x, y-1)) / 2
				it := cur.at(int(float64(x)-u), y) - prev.at(x, y)

				sumIxIx += ix * ix
				sumIxIy += ix * iy
				sumIyIy += iy * iy
				sumIxIt += ix * it
				sumIyIt += iy * it
			}
		}

		det := sumIxIx*sumIyIy - sumIxIy*sumIxIy
		if math.Abs(det) < 1e-6 {
			break
		}

		du := (-sumIyIy*sumIxIt + sumIxIy*sumIyIt) / det
		u += du
	}

	return u
}
