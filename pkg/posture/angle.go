package posture

import (
	"math"

	"PostureGuard/internal/entity"
	"gonum.org/v1/gonum/spatial/r2"
)

// ComputeAngle returns the angle in degrees at vertex b between the rays b->a
// and b->c, in [0, 180]. It returns NaN when either ray has zero length or any
// coordinate is not finite.
func ComputeAngle(a, b, c entity.Point) float64 {
	va := r2.Vec{X: a.X, Y: a.Y}
	vb := r2.Vec{X: b.X, Y: b.Y}
	vc := r2.Vec{X: c.X, Y: c.Y}

	ba := r2.Sub(va, vb)
	bc := r2.Sub(vc, vb)

	normBA := r2.Norm(ba)
	normBC := r2.Norm(bc)
	if !finite(normBA) || !finite(normBC) || normBA == 0 || normBC == 0 {
		return math.NaN()
	}

	cosine := r2.Dot(ba, bc) / (normBA * normBC)
	cosine = math.Max(-1, math.Min(1, cosine))

	return math.Acos(cosine) * 180 / math.Pi
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
