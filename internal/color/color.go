// Package color implements the HSL color model used throughout the game and
// the perceptual distance that guesses are scored with.
package color

import "math"

// HSL is a color with hue in [0,360), saturation and lightness in [0,100].
type HSL struct {
	H float64 `json:"h"`
	S float64 `json:"s"`
	L float64 `json:"l"`
}

// maxDistance is the diameter of the bicone: both the pole-to-pole distance
// (black to white) and the distance between opposite fully saturated
// mid-lightness hues equal 2.
const maxDistance = 2.0

func (c HSL) Valid() bool {
	if c.H < 0 || c.H >= 360 {
		return false
	}
	if c.S < 0 || c.S > 100 {
		return false
	}
	if c.L < 0 || c.L > 100 {
		return false
	}
	return true
}

// Embed maps an HSL color into a bicone in Cartesian space. The radius
// shrinks to zero at the black and white poles, where hue carries no visual
// information, and is widest at mid lightness.
func Embed(c HSL) (x, y, z float64) {
	radius := (c.S / 100) * math.Min(c.L, 100-c.L) / 50
	hue := c.H * math.Pi / 180
	x = radius * math.Cos(hue)
	y = radius * math.Sin(hue)
	z = (c.L - 50) / 50
	return x, y, z
}

// Distance is the Euclidean distance between two colors in the bicone
// embedding. It is symmetric and zero for identical colors.
func Distance(a, b HSL) float64 {
	ax, ay, az := Embed(a)
	bx, by, bz := Embed(b)
	dx := ax - bx
	dy := ay - by
	dz := az - bz
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Score rates a guess against a target on a 0-100 scale. Identical colors
// score 100; colors at least maxDistance apart score 0.
func Score(target, guess HSL) int {
	normalized := math.Min(Distance(target, guess)/maxDistance, 1)
	return int(math.Round(100 * (1 - normalized)))
}
