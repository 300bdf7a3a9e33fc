// Package chart turns dashboard figures into chart-ready data: a
// deterministic colour scale and pie slices with percentage labels.
package chart

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Cubehelix basis vectors (Green, 1990).
const (
	cubehelixA = -0.14861
	cubehelixB = +1.78277
	cubehelixC = -0.29227
	cubehelixD = -0.90649
	cubehelixE = +1.97294
)

// Rainbow samples the cyclical cubehelix rainbow at t. Values outside [0, 1]
// wrap around.
func Rainbow(t float64) colorful.Color {
	if t < 0 || t > 1 {
		t -= math.Floor(t)
	}
	ts := math.Abs(t - 0.5)
	return cubehelix(360*t-100, 1.5-1.5*ts, 0.8-0.9*ts)
}

// cubehelix converts hue (degrees), saturation and lightness to RGB.
func cubehelix(h, s, l float64) colorful.Color {
	h = (h + 120) * math.Pi / 180
	a := s * l * (1 - l)
	cosh, sinh := math.Cos(h), math.Sin(h)

	return colorful.Color{
		R: l + a*(cubehelixA*cosh+cubehelixB*sinh),
		G: l + a*(cubehelixC*cosh+cubehelixD*sinh),
		B: l + a*(cubehelixE*cosh),
	}.Clamped()
}

// Scale returns n colours sampled at i/n for i in [0, n). It never
// returns the colour at t = 1, which would repeat t = 0 on a cyclical scale.
func Scale(n int) []colorful.Color {
	if n <= 0 {
		return []colorful.Color{}
	}
	colors := make([]colorful.Color, n)
	for i := range colors {
		colors[i] = Rainbow(float64(i) / float64(n))
	}
	return colors
}

// HexScale is Scale rendered as "#rrggbb" strings.
func HexScale(n int) []string {
	colors := Scale(n)
	out := make([]string, len(colors))
	for i, c := range colors {
		out[i] = c.Hex()
	}
	return out
}
