// Package calibration maps raw cosine distances onto a 0-100 relevance score.
package calibration

import (
	"errors"
	"fmt"
)

// Score bounds.
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// Anchor pins a raw distance to a score.
type Anchor struct {
	Distance float64
	Score    float64
}

// Curve is a piecewise-linear, monotone non-increasing distance-to-score mapping.
type Curve struct {
	anchors []Anchor
}

// DefaultAnchors returns the curve used when no anchors are configured.
func DefaultAnchors() []Anchor {
	return []Anchor{
		{Distance: 0.5, Score: MaxScore},
		{Distance: 1.15, Score: MinScore},
	}
}

// NewCurve validates anchors and builds a Curve. Distances must be strictly
// increasing and scores non-increasing within [0, 100].
func NewCurve(anchors []Anchor) (*Curve, error) {
	if len(anchors) < 2 {
		return nil, errors.New("calibration needs at least two anchors")
	}
	for i, a := range anchors {
		if a.Score < MinScore || a.Score > MaxScore {
			return nil, fmt.Errorf("anchor %d: score %g out of range", i, a.Score)
		}
		if i == 0 {
			continue
		}
		if a.Distance <= anchors[i-1].Distance {
			return nil, fmt.Errorf("anchor %d: distances must be strictly increasing", i)
		}
		if a.Score > anchors[i-1].Score {
			return nil, fmt.Errorf("anchor %d: scores must not increase", i)
		}
	}

	out := make([]Anchor, len(anchors))
	copy(out, anchors)
	return &Curve{anchors: out}, nil
}

// MustDefault returns the default curve.
func MustDefault() *Curve {
	c, err := NewCurve(DefaultAnchors())
	if err != nil {
		panic(err)
	}
	return c
}

// Score converts a distance into a clamped score.
func (c *Curve) Score(distance float64) float64 {
	first := c.anchors[0]
	if distance <= first.Distance {
		return clamp(first.Score)
	}
	for i := 1; i < len(c.anchors); i++ {
		hi := c.anchors[i]
		if distance > hi.Distance {
			continue
		}
		lo := c.anchors[i-1]
		t := (distance - lo.Distance) / (hi.Distance - lo.Distance)
		return clamp(lo.Score + t*(hi.Score-lo.Score))
	}
	return clamp(c.anchors[len(c.anchors)-1].Score)
}

func clamp(v float64) float64 {
	return max(MinScore, min(MaxScore, v))
}
