package vision

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// DedupRadius is the vertical window, in pixels, within which detections
// are considered the same rendered control. A button produces a cluster
// of high-correlation offsets, not a single pixel.
const DedupRadius = 50

// Candidate is one raw detection, center point plus score.
type Candidate struct {
	X, Y       int
	Confidence float32
}

// Result is the outcome of one localization attempt. When Found is false,
// BestConfidence still carries the highest score seen anywhere on the
// surface, which tells a near-miss apart from a control that never
// rendered.
type Result struct {
	Found          bool    `json:"found"`
	X              int     `json:"x"`
	Y              int     `json:"y"`
	Confidence     float32 `json:"confidence"`
	Count          int     `json:"count"`
	BestConfidence float32 `json:"best_confidence"`
}

// Locator computes a normalized cross-correlation surface and reduces it
// to a single tap point. Stateless apart from its logger; safe to share.
type Locator struct {
	Radius int

	log *zap.Logger
}

func NewLocator(logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{
		Radius: DedupRadius,
		log:    logger.With(zap.String("component", "locator")),
	}
}

// Locate matches t against frame and returns the selected candidate.
// Deterministic for a fixed frame and template; the frame is not
// modified.
func (l *Locator) Locate(frame gocv.Mat, t *Template, policy Policy) (Result, error) {
	if t == nil || t.mat.Empty() {
		return Result{}, fmt.Errorf("%w: empty template", ErrImageLoad)
	}
	if frame.Empty() {
		return Result{}, fmt.Errorf("%w: empty frame", ErrImageLoad)
	}

	work := frame
	if t.gray && frame.Channels() > 1 {
		gray := gocv.NewMat()
		gocv.CvtColor(frame, &gray, gocv.ColorRGBToGray)
		defer gray.Close()
		work = gray
	}

	if work.Cols() < t.mat.Cols() || work.Rows() < t.mat.Rows() {
		return Result{}, fmt.Errorf("%w: template %s (%dx%d) larger than frame (%dx%d)",
			ErrImageLoad, t.Name, t.mat.Cols(), t.mat.Rows(), work.Cols(), work.Rows())
	}

	surface := gocv.NewMat()
	defer surface.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(work, t.mat, &surface, gocv.TmCcoeffNormed, mask)

	_, best, _, _ := gocv.MinMaxLoc(surface)
	best = clamp01(best)

	if best < t.Threshold {
		l.log.Debug("control not found",
			zap.String("control", t.Name),
			zap.Float32("best_confidence", best),
			zap.Float32("threshold", t.Threshold))
		return Result{BestConfidence: best}, nil
	}

	cands := collect(surface, t)
	if len(cands) == 0 {
		return Result{BestConfidence: best}, nil
	}
	distinct := dedupe(cands, l.Radius)
	sel := pick(distinct, policy)

	l.log.Debug("control located",
		zap.String("control", t.Name),
		zap.String("policy", policy.String()),
		zap.Int("x", sel.X),
		zap.Int("y", sel.Y),
		zap.Float32("confidence", sel.Confidence),
		zap.Int("count", len(distinct)))

	return Result{
		Found:          true,
		X:              sel.X,
		Y:              sel.Y,
		Confidence:     sel.Confidence,
		Count:          len(distinct),
		BestConfidence: best,
	}, nil
}

// collect turns every offset at or above the threshold into a candidate
// centered on the template.
func collect(surface gocv.Mat, t *Template) []Candidate {
	halfw := t.mat.Cols() / 2
	halfh := t.mat.Rows() / 2
	rows := surface.Rows()
	cols := surface.Cols()

	var cands []Candidate
	if data, err := surface.DataPtrFloat32(); err == nil {
		for y := 0; y < rows; y++ {
			row := data[y*cols : (y+1)*cols]
			for x, conf := range row {
				if conf >= t.Threshold {
					cands = append(cands, Candidate{X: x + halfw, Y: y + halfh, Confidence: clamp01(conf)})
				}
			}
		}
		return cands
	}

	// Non-continuous result Mats should not happen, but the slow path
	// keeps matching correct if they do.
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if conf := surface.GetFloatAt(y, x); conf >= t.Threshold {
				cands = append(cands, Candidate{X: x + halfw, Y: y + halfh, Confidence: clamp01(conf)})
			}
		}
	}
	return cands
}

// dedupe collapses candidates whose vertical centers lie within radius of
// an already kept one. Candidates are ordered by Y first, so each cluster
// is represented by its topmost member. Horizontal distance is ignored:
// feed layouts stack controls vertically.
func dedupe(cands []Candidate, radius int) []Candidate {
	sorted := make([]Candidate, len(cands))
	copy(sorted, cands)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y < sorted[j].Y
		}
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Confidence > sorted[j].Confidence
	})

	var distinct []Candidate
	for _, c := range sorted {
		dup := false
		for _, kept := range distinct {
			if abs(c.Y-kept.Y) < radius {
				dup = true
				break
			}
		}
		if !dup {
			distinct = append(distinct, c)
		}
	}
	return distinct
}

// pick applies the selection policy to a non-empty, Y-ordered set.
func pick(distinct []Candidate, policy Policy) Candidate {
	if policy == HighestConfidence {
		best := distinct[0]
		for _, c := range distinct[1:] {
			if c.Confidence > best.Confidence {
				best = c
			}
		}
		return best
	}
	return distinct[0]
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
