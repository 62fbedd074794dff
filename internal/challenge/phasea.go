package challenge

import (
	"math"
	"math/rand"

	"github.com/t-curity/tcurity-backend/internal/model"
)

// Reference canvas the cutline geometry is computed against. The client
// renders against its own viewport using the normalized guide line.
const (
	refWidth  = 1920.0
	refHeight = 1080.0

	curveSamples  = 250
	lineThickness = 20.0
	baseJitter    = 2
)

const guideText = "Drag along the dotted line."

// GuideLine is the only geometry the client sees: enough to draw the
// guide, nothing about the expected trajectory beyond it.
type GuideLine struct {
	Start [2]float64 `json:"start"`
	End   [2]float64 `json:"end"`
	Width float64    `json:"width"`
}

// PhaseAPublic is the client-facing phase A payload.
type PhaseAPublic struct {
	GuideLine GuideLine `json:"guide_line"`
	GuideText string    `json:"guide_text"`
	Phase     string    `json:"phase"`
	TimeLimit int       `json:"time_limit"`
}

// PhaseAPrivate is stored server-side only.
type PhaseAPrivate struct {
	TargetPath []model.TracePoint
}

// PhaseAGenerator produces drag-trajectory challenges. Visual rendering
// of the underlying image is an opaque collaborator; the generator owns
// the geometry only.
type PhaseAGenerator struct {
	TimeLimit int // seconds
}

// Generate returns the public payload and the private target path. The
// control-point jitter grows with attempts and never shrinks, so every
// retry is at least as perturbed as the one before.
func (g *PhaseAGenerator) Generate(attempts int) (PhaseAPublic, PhaseAPrivate) {
	yMin := refHeight * 0.10
	yMax := refHeight * 0.89

	xMin := int(refWidth * 0.30)
	xMax := int(refWidth * 0.55)
	baseX := float64(xMin + rand.Intn(xMax-xMin+1))

	jitter := baseJitter + attempts

	p0 := [2]float64{baseX, yMin}
	p3 := [2]float64{baseX, yMax}
	p1 := [2]float64{baseX + jitterOffset(jitter), yMin + (yMax-yMin)*0.3}
	p2 := [2]float64{baseX + jitterOffset(jitter), yMin + (yMax-yMin)*0.7}

	path := make([]model.TracePoint, curveSamples)
	for i := 0; i < curveSamples; i++ {
		t := float64(i) / float64(curveSamples-1)
		x, y := bezier(p0, p1, p2, p3, t)
		path[i] = model.TracePoint{X: x, Y: y, T: float64(i)}
	}

	public := PhaseAPublic{
		GuideLine: GuideLine{
			Start: [2]float64{round4(baseX / refWidth), round4(yMin / refHeight)},
			End:   [2]float64{round4(baseX / refWidth), round4(yMax / refHeight)},
			Width: round4(lineThickness / refWidth),
		},
		GuideText: guideText,
		Phase:     "1/2",
		TimeLimit: g.TimeLimit,
	}
	return public, PhaseAPrivate{TargetPath: path}
}

func jitterOffset(jitter int) float64 {
	return float64(rand.Intn(2*jitter+1) - jitter)
}

func bezier(p0, p1, p2, p3 [2]float64, t float64) (float64, float64) {
	u := 1 - t
	a := u * u * u
	b := 3 * u * u * t
	c := 3 * u * t * t
	d := t * t * t
	x := a*p0[0] + b*p1[0] + c*p2[0] + d*p3[0]
	y := a*p0[1] + b*p1[1] + c*p2[1] + d*p3[1]
	return x, y
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
