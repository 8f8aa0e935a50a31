// Package view keeps the typed view-models of a dashboard page and patches
// them from camera status records.
package view

import (
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/mmuteeullah/CamWatch/internal/camera"
)

// Slot names the kind of element a handle stands for on a page.
type Slot string

const (
	// SlotTile is a feed tile on the dashboard pages.
	SlotTile Slot = "tile"
	// SlotRow is a row of the camera management table.
	SlotRow Slot = "row"
)

// Handle is the view-model of one rendered camera element.
type Handle struct {
	CameraID camera.ID
	Slot     Slot
	Name     string

	Status     camera.Status
	BadgeClass string
	BadgeHTML  template.HTML
	FeedHTML   template.HTML
	LastSeen   string
}

// ElementID is the DOM id the page script patches for this handle.
func (h *Handle) ElementID() string {
	return ElementID(h.CameraID, h.Slot)
}

// ElementID builds the DOM id of a camera element.
func ElementID(id camera.ID, slot Slot) string {
	return fmt.Sprintf("cam-%s-%s", id, slot)
}

// render applies status (and lastSeen when known) to the handle.
func (h *Handle) render(status camera.Status, lastSeen *time.Time, now time.Time) {
	h.Status = status
	h.BadgeClass = BadgeClass(status)
	h.BadgeHTML = BadgeHTML(status)
	h.FeedHTML = FeedHTML(status, now)
	if lastSeen != nil {
		h.LastSeen = LastSeenText(*lastSeen, now)
	}
}

// Patch is the new content of one element.
type Patch struct {
	ElementID  string        `json:"element_id"`
	CameraID   camera.ID     `json:"camera_id"`
	Status     camera.Status `json:"status"`
	BadgeClass string        `json:"badge_class"`
	BadgeHTML  template.HTML `json:"badge_html"`
	FeedHTML   template.HTML `json:"feed_html,omitempty"`
	LastSeen   string        `json:"last_seen,omitempty"`
}

func (h *Handle) patch() Patch {
	p := Patch{
		ElementID:  h.ElementID(),
		CameraID:   h.CameraID,
		Status:     h.Status,
		BadgeClass: h.BadgeClass,
		BadgeHTML:  h.BadgeHTML,
		LastSeen:   h.LastSeen,
	}
	// Table rows carry no feed.
	if h.Slot == SlotTile {
		p.FeedHTML = h.FeedHTML
	}
	return p
}

// Registry maps camera IDs to the handles rendered for them on one page.
type Registry struct {
	mu      sync.RWMutex
	byID    map[camera.ID][]*Handle
	ordered []*Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[camera.ID][]*Handle)}
}

// BuildRegistry registers one handle per camera and slot, seeded with the
// camera's stored status.
func BuildRegistry(cameras []camera.Camera, now time.Time, slots ...Slot) *Registry {
	r := NewRegistry()
	for _, cam := range cameras {
		for _, slot := range slots {
			r.Register(cam, slot, now)
		}
	}
	return r
}

// Register adds a handle for cam in slot and returns it.
func (r *Registry) Register(cam camera.Camera, slot Slot, now time.Time) *Handle {
	h := &Handle{CameraID: cam.ID, Slot: slot, Name: cam.Name}
	status := cam.Status
	if status == "" {
		status = camera.StatusOffline
	}
	h.render(status, cam.LastSeen, now)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[cam.ID] = append(r.byID[cam.ID], h)
	r.ordered = append(r.ordered, h)
	return h
}

// Lookup returns every handle for id.
func (r *Registry) Lookup(id camera.ID) []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// Slot returns the handles in slot, in registration order.
func (r *Registry) Slot(slot Slot) []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Handle, 0, len(r.ordered))
	for _, h := range r.ordered {
		if h.Slot == slot {
			out = append(out, h)
		}
	}
	return out
}

// Len returns the number of handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}

// Set renders status on a single handle and returns its patch.
func (r *Registry) Set(h *Handle, status camera.Status, now time.Time) Patch {
	r.mu.Lock()
	defer r.mu.Unlock()
	h.render(status, nil, now)
	return h.patch()
}
