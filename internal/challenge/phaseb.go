package challenge

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const (
	GridSize    = 9
	AnswerCount = 4
)

// noise ramps with fail_count and is capped once fully saturated.
const (
	noiseStep = 0.15
	noiseMax  = 1.0
)

var itemClasses = []string{
	"animals", "vehicles", "plants", "buildings", "food", "instruments",
}

// GridItem is one cell of the selection grid. The number is the fixed
// 1..9 watermark; the image field is the rendered visual.
type GridItem struct {
	ImageID string `json:"image_id"`
	Number  int    `json:"number"`
	Image   string `json:"image_base64"`
}

// PhaseBPublic is the client-facing phase B payload. It carries no
// indication of which items are correct.
type PhaseBPublic struct {
	Type     string     `json:"type"`
	Grid     []GridItem `json:"grid"`
	Question string     `json:"question"`
}

// PhaseBPrivate is stored server-side only.
type PhaseBPrivate struct {
	CorrectAnswer []string
	IssuedAt      int64
}

// ItemRenderer composes the visual for one grid cell. Rendering is an
// opaque collaborator; implementations receive the noise level so higher
// fail counts yield more perturbed visuals.
type ItemRenderer interface {
	Render(class string, number int, noise float64) string
}

// PhaseBGenerator produces image-selection challenges.
type PhaseBGenerator struct {
	Renderer ItemRenderer
	Now      func() int64
}

func NewPhaseBGenerator() *PhaseBGenerator {
	return &PhaseBGenerator{
		Renderer: placeholderRenderer{},
		Now:      func() int64 { return time.Now().UnixMilli() },
	}
}

// NoiseLevel maps a fail count to a perturbation level. Non-decreasing.
func NoiseLevel(failCount int) float64 {
	n := noiseStep * float64(failCount)
	if n > noiseMax {
		return noiseMax
	}
	return n
}

// Generate builds a fresh grid seeded with the session's fail count and
// returns the public payload alongside the private answer set.
func (g *PhaseBGenerator) Generate(failCount int) (PhaseBPublic, PhaseBPrivate) {
	target := itemClasses[rand.Intn(len(itemClasses))]
	noise := NoiseLevel(failCount)

	// assign the target class to AnswerCount random cells
	correctSlots := make(map[int]bool, AnswerCount)
	for len(correctSlots) < AnswerCount {
		correctSlots[rand.Intn(GridSize)] = true
	}

	grid := make([]GridItem, 0, GridSize)
	answer := make([]string, 0, AnswerCount)
	for i := 0; i < GridSize; i++ {
		class := target
		if !correctSlots[i] {
			class = otherClass(target)
		}

		id := uuid.NewString()
		if correctSlots[i] {
			answer = append(answer, id)
		}
		grid = append(grid, GridItem{
			ImageID: id,
			Number:  i + 1,
			Image:   g.Renderer.Render(class, i+1, noise),
		})
	}

	public := PhaseBPublic{
		Type:     "PHASE_B",
		Grid:     grid,
		Question: fmt.Sprintf("Select all images containing %s.", target),
	}
	private := PhaseBPrivate{CorrectAnswer: answer, IssuedAt: g.Now()}
	return public, private
}

func otherClass(exclude string) string {
	for {
		c := itemClasses[rand.Intn(len(itemClasses))]
		if c != exclude {
			return c
		}
	}
}

// placeholderRenderer stands in for the image composition service. It
// emits an opaque token in place of pixel data.
type placeholderRenderer struct{}

func (placeholderRenderer) Render(class string, number int, noise float64) string {
	token := fmt.Sprintf("%s|%d|%.2f|%s", class, number, noise, uuid.NewString())
	return base64.StdEncoding.EncodeToString([]byte(token))
}
