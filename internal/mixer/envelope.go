package mixer

import "sort"

// ControlPoint is one node of a piecewise-linear automation curve.
type ControlPoint struct {
	Time  float64 // track seconds
	Value float64
}

// Envelope is a piecewise-linear gain automation curve over track time.
// The zero value is a constant 1.0 envelope.
type Envelope struct {
	points []ControlPoint
}

// NewEnvelope builds an envelope from control points, sorting them by time.
func NewEnvelope(points ...ControlPoint) *Envelope {
	sorted := make([]ControlPoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	return &Envelope{points: sorted}
}

// ValueAt evaluates the curve at track time t. Before the first point and
// after the last, the curve holds the edge value.
func (e *Envelope) ValueAt(t float64) float64 {
	if e == nil || len(e.points) == 0 {
		return 1
	}
	if t <= e.points[0].Time {
		return e.points[0].Value
	}
	last := e.points[len(e.points)-1]
	if t >= last.Time {
		return last.Value
	}
	i := sort.Search(len(e.points), func(i int) bool { return e.points[i].Time > t })
	p0, p1 := e.points[i-1], e.points[i]
	frac := (t - p0.Time) / (p1.Time - p0.Time)
	return p0.Value + frac*(p1.Value-p0.Value)
}
