package view

import (
	"bytes"
	"html/template"
	"time"

	"github.com/mmuteeullah/CamWatch/internal/camera"
	"github.com/mmuteeullah/CamWatch/internal/format"
)

const clockLayout = "15:04:05"

var fragments = template.Must(template.New("fragments").Parse(`
{{define "badge"}}<i class="fas fa-circle"></i> {{.}}{{end}}
{{define "feed-online"}}<div class="mock-feed"><i class="fas fa-video feed-icon"></i><div class="feed-overlay"><div class="timestamp">{{.}}</div></div></div>{{end}}
{{define "feed-offline"}}<div class="feed-offline"><i class="fas fa-video-slash"></i><p>Camera {{.}}</p></div>{{end}}
`))

// BadgeClass is the class list of a camera's status badge.
func BadgeClass(status camera.Status) string {
	return "status-badge status-" + string(status)
}

// BadgeHTML is the inner markup of a status badge.
func BadgeHTML(status camera.Status) template.HTML {
	return execute("badge", status.Label())
}

// FeedHTML is the feed placeholder for a status. Only online cameras get
// the live placeholder, stamped with now.
func FeedHTML(status camera.Status, now time.Time) template.HTML {
	if status == camera.StatusOnline {
		return execute("feed-online", now.Format(clockLayout))
	}
	return execute("feed-offline", status.Label())
}

// LastSeenText renders the "Last seen" line for a camera.
func LastSeenText(lastSeen, now time.Time) string {
	return "Last seen: " + format.RelativeTime(lastSeen, now)
}

// Clock renders the live timestamp shown by every page.
func Clock(now time.Time) string {
	return now.Format(clockLayout)
}

func execute(name string, data any) template.HTML {
	var buf bytes.Buffer
	// The fragments only interpolate strings, so execution cannot fail.
	_ = fragments.ExecuteTemplate(&buf, name, data)
	return template.HTML(buf.String())
}
