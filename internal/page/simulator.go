package page

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/mmuteeullah/CamWatch/internal/camera"
	"github.com/mmuteeullah/CamWatch/internal/notify"
	"github.com/mmuteeullah/CamWatch/internal/view"
)

// Change is one simulated status flip.
type Change struct {
	Patch    view.Patch
	Title    string
	Message  string
	Severity notify.Severity
}

// Simulator flips the status of a random feed tile now and then. It only
// runs in demo mode.
type Simulator struct {
	registry    *view.Registry
	rnd         *rand.Rand
	probability float64
}

// NewSimulator creates a simulator over the tiles of registry. A nil rnd
// uses a randomly seeded source.
func NewSimulator(registry *view.Registry, rnd *rand.Rand, probability float64) *Simulator {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulator{registry: registry, rnd: rnd, probability: probability}
}

// Step runs one simulation round. It reports false when nothing changed:
// no tiles, the probability roll failed or the drawn status equals the
// current one.
func (s *Simulator) Step(now time.Time) (Change, bool) {
	tiles := s.registry.Slot(view.SlotTile)
	if len(tiles) == 0 || s.rnd.Float64() >= s.probability {
		return Change{}, false
	}

	tile := tiles[s.rnd.IntN(len(tiles))]
	current := tile.Status
	next := camera.Statuses[s.rnd.IntN(len(camera.Statuses))]
	if next == current {
		return Change{}, false
	}

	patch := s.registry.Set(tile, next, now)

	name := tile.Name
	if name == "" {
		name = "Camera"
	}
	return Change{
		Patch:    patch,
		Title:    "Camera Status Change",
		Message:  fmt.Sprintf("%s is now %s", name, next),
		Severity: notify.SeverityFor(next),
	}, true
}
