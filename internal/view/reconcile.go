package view

import (
	"time"

	"github.com/mmuteeullah/CamWatch/internal/camera"
)

// Reconciler applies status records to the handles of a registry.
type Reconciler struct {
	registry *Registry
}

// NewReconciler creates a reconciler over registry.
func NewReconciler(registry *Registry) *Reconciler {
	return &Reconciler{registry: registry}
}

// Apply renders every record onto all handles registered for its camera and
// returns the resulting patches. Records for cameras that are not on the
// page are ignored.
func (rc *Reconciler) Apply(records []camera.StatusRecord, now time.Time) []Patch {
	rc.registry.mu.Lock()
	defer rc.registry.mu.Unlock()

	var patches []Patch
	for _, rec := range records {
		for _, h := range rc.registry.byID[rec.ID] {
			h.render(rec.Status, rec.LastSeen, now)
			patches = append(patches, h.patch())
		}
	}
	return patches
}
