package webui

import (
	"fmt"
	"html/template"
)

const styles = `
:root {
    --bg-primary: #0f0f0f;
    --bg-secondary: #1a1a1a;
    --bg-tertiary: #242424;
    --border-color: #2a2a2a;
    --text-primary: #e8e8e8;
    --text-secondary: #a0a0a0;
    --accent-green: #10b981;
    --accent-green-dark: #059669;
    --accent-orange: #f59e0b;
    --accent-red: #ef4444;
    --shadow-sm: 0 1px 3px rgba(0, 0, 0, 0.3);
    --shadow-lg: 0 10px 15px rgba(0, 0, 0, 0.5);
    --radius-md: 8px;
    --radius-lg: 12px;
}

* { margin: 0; padding: 0; box-sizing: border-box; }

body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
    background: var(--bg-primary);
    color: var(--text-primary);
    line-height: 1.6;
    display: flex;
    min-height: 100vh;
}

.sidebar {
    width: 220px;
    background: var(--bg-secondary);
    border-right: 1px solid var(--border-color);
    padding: 24px 16px;
    flex-shrink: 0;
}
.sidebar .logo { color: var(--accent-green); font-weight: 700; font-size: 1.3em; margin-bottom: 24px; }
.sidebar a { display: block; color: var(--text-secondary); text-decoration: none; padding: 8px 12px; border-radius: var(--radius-md); }
.sidebar a.active, .sidebar a:hover { background: var(--bg-tertiary); color: var(--text-primary); }

.main { flex: 1; padding: 24px; min-width: 0; }
.header { display: flex; align-items: center; justify-content: space-between; margin-bottom: 24px; }
.header h1 { font-size: 1.5em; }
#sidebarToggle { display: none; background: none; border: 1px solid var(--border-color); color: var(--text-primary); padding: 6px 10px; border-radius: var(--radius-md); }
.timestamp-large { font-variant-numeric: tabular-nums; color: var(--text-secondary); }

.stats { display: grid; grid-template-columns: repeat(auto-fit, minmax(150px, 1fr)); gap: 16px; margin-bottom: 24px; }
.stat { background: var(--bg-secondary); border: 1px solid var(--border-color); border-radius: var(--radius-lg); padding: 16px; }
.stat .value { font-size: 1.8em; font-weight: 700; }
.stat .label { color: var(--text-secondary); font-size: 0.85em; }

.camera-grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(300px, 1fr)); gap: 16px; }
.camera-feed { background: var(--bg-secondary); border: 1px solid var(--border-color); border-radius: var(--radius-lg); overflow: hidden; transition: box-shadow 0.3s ease; }
.camera-feed.pulse { box-shadow: 0 0 0 2px var(--accent-green); }
.feed-header { display: flex; justify-content: space-between; align-items: center; padding: 10px 14px; }
.feed-content { aspect-ratio: 16 / 9; background: #000; display: flex; align-items: center; justify-content: center; }
.mock-feed, .feed-offline { text-align: center; color: var(--text-secondary); position: relative; width: 100%; }
.feed-icon { font-size: 2.5em; color: var(--accent-green); }
.feed-overlay { position: absolute; right: 10px; bottom: -40px; font-size: 0.8em; }
.last-seen { padding: 8px 14px; font-size: 0.8em; color: var(--text-secondary); }

.status-badge { font-size: 0.8em; padding: 2px 10px; border-radius: 999px; background: var(--bg-tertiary); }
.status-online { color: var(--accent-green); }
.status-offline { color: var(--text-secondary); }
.status-error { color: var(--accent-red); }
.pagination { display: flex; gap: 15px; align-items: center; margin-top: 15px; }
.history-filter { margin-bottom: 15px; }

table { width: 100%; border-collapse: collapse; background: var(--bg-secondary); border-radius: var(--radius-lg); overflow: hidden; }
th, td { text-align: left; padding: 10px 14px; border-bottom: 1px solid var(--border-color); }
th { color: var(--text-secondary); font-weight: 500; font-size: 0.85em; }
tr.acknowledged { opacity: 0.5; }

.btn { background: var(--bg-tertiary); border: 1px solid var(--border-color); color: var(--text-primary); padding: 4px 10px; border-radius: var(--radius-md); cursor: pointer; }
.btn-primary { background: var(--accent-green); border-color: var(--accent-green); color: #fff; }
.btn-danger { border-color: var(--accent-red); color: var(--accent-red); }

form.inline { display: flex; flex-wrap: wrap; gap: 8px; margin-top: 24px; }
form.inline input { background: var(--bg-tertiary); border: 1px solid var(--border-color); color: var(--text-primary); padding: 6px 10px; border-radius: var(--radius-md); }

#notifications { position: fixed; top: 20px; right: 20px; z-index: 1060; display: flex; flex-direction: column; gap: 8px; }
.notification-toast { min-width: 300px; max-width: 400px; padding: 12px 40px 12px 16px; border-radius: var(--radius-md); box-shadow: 0 4px 12px rgba(0, 0, 0, 0.3); background: var(--bg-tertiary); position: relative; border-left: 4px solid var(--text-secondary); }
.alert-success { border-left-color: var(--accent-green); }
.alert-warning { border-left-color: var(--accent-orange); }
.alert-danger { border-left-color: var(--accent-red); }
.alert-info { border-left-color: #3b82f6; }
.btn-close { position: absolute; top: 8px; right: 10px; background: none; border: none; color: var(--text-secondary); cursor: pointer; font-size: 1.1em; }
.btn-close::after { content: "\00d7"; }

@media (max-width: 768px) {
    .sidebar { position: fixed; left: -240px; top: 0; bottom: 0; z-index: 1000; transition: left 0.2s ease; }
    .sidebar.show { left: 0; }
    #sidebarToggle { display: inline-block; }
}
`

const layoutHTML = `<!DOCTYPE html>
<html>
<head>
    <title>CamWatch - {{.Title}}</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <link rel="stylesheet" href="https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.5.1/css/all.min.css">
    <style>{{.Styles}}</style>
</head>
<body>
    <nav class="sidebar">
        <div class="logo"><i class="fas fa-video"></i> CamWatch</div>
        <a href="/dashboard" class="{{if eq .Path "/dashboard" "/"}}active{{end}}"><i class="fas fa-th"></i> Dashboard</a>
        <a href="/cameras" class="{{if eq .Path "/cameras"}}active{{end}}"><i class="fas fa-camera"></i> Cameras</a>
        <a href="/alerts" class="{{if eq .Path "/alerts"}}active{{end}}"><i class="fas fa-bell"></i> Alerts</a>
        <a href="/history" class="{{if eq .Path "/history"}}active{{end}}"><i class="fas fa-history"></i> History</a>
        {{if .AuthEnabled}}<a href="/logout"><i class="fas fa-sign-out-alt"></i> Logout</a>{{end}}
    </nav>
    <div class="main">
        <div class="header">
            <button id="sidebarToggle" type="button" title="Menu"><i class="fas fa-bars"></i></button>
            <h1>{{.Title}}</h1>
            <span id="liveTimestamp" class="timestamp-large">{{.Clock}}</span>
        </div>
        {{template "content" .}}
    </div>
    <div id="notifications"></div>
    <script>window.CamWatchConfig = {path: {{.Path}}, breakpoint: {{.Breakpoint}}, notificationTTL: {{.NotificationTTL}}, errorMessage: {{.ErrorMessage}}};</script>
    <script>{{.Script}}</script>
</body>
</html>
`

const dashboardHTML = `{{define "content"}}
<div class="stats">
    <div class="stat"><div class="value">{{.Stats.TotalCameras}}</div><div class="label">Cameras</div></div>
    <div class="stat"><div class="value status-online">{{.Stats.Online}}</div><div class="label">Online</div></div>
    <div class="stat"><div class="value">{{.Stats.Offline}}</div><div class="label">Offline</div></div>
    <div class="stat"><div class="value status-error">{{.Stats.Errored}}</div><div class="label">Error</div></div>
    <div class="stat"><div class="value">{{.Stats.UnreadAlerts}}</div><div class="label">Unread alerts</div></div>
</div>
{{if .DemoMode}}<p class="last-seen">Demo mode: statuses change at random.</p>{{end}}
<div class="camera-grid">
{{range .Tiles}}
    <div class="camera-feed" id="{{.ElementID}}" data-camera-id="{{.CameraID}}">
        <div class="feed-header">
            <span class="camera-name">{{.Name}}</span>
            <span class="{{.BadgeClass}}" data-role="badge">{{.BadgeHTML}}</span>
        </div>
        <div class="feed-content" data-role="feed">{{.FeedHTML}}</div>
        <div class="last-seen" data-role="last-seen">{{.LastSeen}}</div>
    </div>
{{else}}
    <p>No cameras configured yet. <a href="/cameras">Add one</a>.</p>
{{end}}
</div>
{{end}}`

const camerasHTML = `{{define "content"}}
<table>
    <thead>
        <tr><th>Name</th><th>Location</th><th>Address</th><th>Status</th><th>Last seen</th><th></th></tr>
    </thead>
    <tbody>
    {{range .Rows}}
        <tr id="{{.Handle.ElementID}}" data-camera-id="{{.Camera.ID}}">
            <td class="camera-name">{{.Camera.Name}}</td>
            <td>{{.Camera.Location}}</td>
            <td>{{if .Camera.IPAddress}}{{.Camera.IPAddress}}:{{.Camera.Port}}{{end}}</td>
            <td><span class="{{.Handle.BadgeClass}}" data-role="badge">{{.Handle.BadgeHTML}}</span></td>
            <td class="last-seen" data-role="last-seen">{{.Handle.LastSeen}}</td>
            <td>
                {{if .Camera.StreamURL}}<button class="btn" type="button" title="Copy stream URL" data-copy="{{.Camera.StreamURL}}"><i class="fas fa-copy"></i></button>{{end}}
                <button class="btn btn-danger" type="button" title="Delete camera" data-delete-camera="{{.Camera.ID}}" data-name="{{.Camera.Name}}"><i class="fas fa-trash"></i></button>
            </td>
        </tr>
    {{else}}
        <tr><td colspan="6">No cameras yet.</td></tr>
    {{end}}
    </tbody>
</table>
<form class="inline" id="add-camera">
    <input name="id" placeholder="ID" required>
    <input name="name" placeholder="Name" required>
    <input name="location" placeholder="Location">
    <input name="ip_address" placeholder="IP address">
    <input name="port" type="number" placeholder="554">
    <input name="stream_url" placeholder="rtsp://...">
    <button class="btn btn-primary" type="submit"><i class="fas fa-plus"></i> Add camera</button>
</form>
{{end}}`

const alertsHTML = `{{define "content"}}
<table>
    <thead>
        <tr><th>Time</th><th>Camera</th><th>Type</th><th>Message</th><th></th></tr>
    </thead>
    <tbody>
    {{range .Alerts}}
        <tr class="{{if .Acknowledged}}acknowledged{{end}}" id="alert-{{.ID}}">
            <td title="{{.CreatedAt.Format "2006-01-02 15:04:05"}}">{{relative .CreatedAt}}</td>
            <td>{{if .CameraName}}{{.CameraName}}{{else}}{{.CameraID}}{{end}}</td>
            <td><span class="status-badge {{severityClass .Severity}}">{{.Type}}</span></td>
            <td>{{.Message}}</td>
            <td>{{if not .Acknowledged}}<button class="btn" type="button" data-ack="{{.ID}}"><i class="fas fa-check"></i> Acknowledge</button>{{end}}</td>
        </tr>
    {{else}}
        <tr><td colspan="5">No alerts.</td></tr>
    {{end}}
    </tbody>
</table>
{{end}}`

const historyHTML = `{{define "content"}}
<form class="history-filter" method="GET" action="/history">
    <select name="camera" onchange="this.form.submit()">
        <option value="">All cameras</option>
        {{range .Cameras}}<option value="{{.ID}}"{{if eq (print .ID) $.Camera}} selected{{end}}>{{.Name}}</option>{{end}}
    </select>
</form>
<table>
    <thead>
        <tr><th>Time</th><th>Camera</th><th>Status</th><th>Response</th><th>Message</th></tr>
    </thead>
    <tbody>
    {{range .History.Entries}}
        <tr>
            <td title="{{.ReceivedAt.Format "2006-01-02 15:04:05"}}">{{relative .ReceivedAt}}</td>
            <td>{{if .CameraName}}{{.CameraName}}{{else}}{{.CameraID}}{{end}}</td>
            <td><span class="status-badge status-{{.Status}}">{{.Status}}</span></td>
            <td>{{if .ResponseMS}}{{printf "%.0f" (deref .ResponseMS)}} ms{{else}}-{{end}}</td>
            <td>{{.Message}}</td>
        </tr>
    {{else}}
        <tr><td colspan="5">No heartbeats recorded.</td></tr>
    {{end}}
    </tbody>
</table>
<div class="pagination">
    {{if .History.HasPrev}}<a class="btn" href="/history?page={{add .History.Page -1}}&camera={{.Camera}}"><i class="fas fa-chevron-left"></i> Newer</a>{{end}}
    <span>Page {{.History.Page}} of {{if .History.Pages}}{{.History.Pages}}{{else}}1{{end}} ({{.History.Total}} heartbeats)</span>
    {{if .History.HasNext}}<a class="btn" href="/history?page={{add .History.Page 1}}&camera={{.Camera}}">Older <i class="fas fa-chevron-right"></i></a>{{end}}
</div>
{{end}}`

const loginHTML = `<!DOCTYPE html>
<html>
<head>
    <title>CamWatch - Login</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>{{.Styles}}
    body { align-items: center; justify-content: center; padding: 20px; }
    .login-container { background: var(--bg-secondary); border: 1px solid var(--border-color); border-radius: var(--radius-lg); padding: 40px; width: 100%; max-width: 400px; box-shadow: var(--shadow-lg); }
    .login-container h1 { color: var(--accent-green); text-align: center; margin-bottom: 24px; }
    .form-group { margin-bottom: 20px; }
    .form-group label { display: block; color: var(--text-secondary); font-size: 0.9em; margin-bottom: 6px; }
    .form-group input { width: 100%; padding: 10px 14px; background: var(--bg-tertiary); border: 1px solid var(--border-color); border-radius: var(--radius-md); color: var(--text-primary); }
    .error-message { display: none; color: var(--accent-red); margin-bottom: 16px; }
    .error-message.show { display: block; }
    .btn-primary { width: 100%; padding: 10px; }
    </style>
</head>
<body>
    <div class="login-container">
        <h1>CamWatch</h1>
        <div id="error-message" class="error-message"></div>
        <form id="login-form" method="POST" action="/login">
            <div class="form-group">
                <label for="username">Username</label>
                <input type="text" id="username" name="username" required autofocus autocomplete="username">
            </div>
            <div class="form-group">
                <label for="password">Password</label>
                <input type="password" id="password" name="password" required autocomplete="current-password">
            </div>
            <button type="submit" class="btn btn-primary">Login</button>
        </form>
    </div>
    <script>
        const form = document.getElementById('login-form');
        const errorDiv = document.getElementById('error-message');

        form.addEventListener('submit', async (e) => {
            e.preventDefault();
            errorDiv.classList.remove('show');

            try {
                const response = await fetch('/login', {
                    method: 'POST',
                    headers: {'Content-Type': 'application/x-www-form-urlencoded'},
                    body: new URLSearchParams(new FormData(form)).toString()
                });

                if (response.ok) {
                    window.location.href = '/dashboard';
                    return;
                }
                let message = 'Invalid username or password';
                try {
                    const data = await response.json();
                    message = data.error || message;
                } catch {}
                errorDiv.textContent = message;
                errorDiv.classList.add('show');
            } catch (error) {
                console.error('Login error:', error);
                errorDiv.textContent = 'An error occurred. Please try again.';
                errorDiv.classList.add('show');
            }
        });
    </script>
</body>
</html>
`

// parsePages builds one template set per page on top of the shared layout.
func parsePages(funcs template.FuncMap) (map[string]*template.Template, *template.Template, error) {
	base, err := template.New("layout").Funcs(funcs).Parse(layoutHTML)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing layout: %w", err)
	}

	pages := make(map[string]*template.Template)
	for name, body := range map[string]string{
		"dashboard": dashboardHTML,
		"cameras":   camerasHTML,
		"alerts":    alertsHTML,
		"history":   historyHTML,
	} {
		t, err := base.Clone()
		if err != nil {
			return nil, nil, err
		}
		if _, err := t.Parse(body); err != nil {
			return nil, nil, fmt.Errorf("parsing %s page: %w", name, err)
		}
		pages[name] = t
	}

	login, err := template.New("login").Parse(loginHTML)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing login page: %w", err)
	}
	return pages, login, nil
}
