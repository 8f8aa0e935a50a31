package webui

// pageScript connects a page to its server-side session and applies what the
// session pushes. Timers live on the server; the script only renders.
const pageScript = `
(function () {
    'use strict';

    const config = window.CamWatchConfig || {};
    let socket = null;
    let retryDelay = 1000;
    const desktop = {};

    function permissionState() {
        if (!('Notification' in window)) {
            return 'denied';
        }
        return Notification.permission;
    }

    function send(message) {
        if (socket && socket.readyState === WebSocket.OPEN) {
            socket.send(JSON.stringify(message));
        }
    }

    function connect() {
        const scheme = window.location.protocol === 'https:' ? 'wss://' : 'ws://';
        const params = new URLSearchParams({path: config.path || window.location.pathname, permission: permissionState()});
        socket = new WebSocket(scheme + window.location.host + '/ws?' + params.toString());

        socket.onopen = function () {
            retryDelay = 1000;
        };
        socket.onmessage = function (event) {
            try {
                handle(JSON.parse(event.data));
            } catch (error) {
                console.error('Error handling page message:', error);
            }
        };
        socket.onclose = function () {
            setTimeout(connect, retryDelay);
            retryDelay = Math.min(retryDelay * 2, 30000);
        };
    }

    function handle(message) {
        switch (message.type) {
        case 'patch':
            (message.patches || []).forEach(applyPatch);
            break;
        case 'pulse':
            pulse(message.ids || [], message.duration_ms || 1000);
            break;
        case 'clock':
            document.querySelectorAll('.timestamp, .timestamp-large, #liveTimestamp').forEach(function (element) {
                element.textContent = message.text;
            });
            break;
        case 'alert':
            showAlert(message.notification);
            break;
        case 'dismiss':
            removeAlert(message.id);
            break;
        case 'desktop':
            showDesktop(message.notification);
            break;
        case 'desktop-close':
            if (desktop[message.id]) {
                desktop[message.id].close();
                delete desktop[message.id];
            }
            break;
        case 'request-permission':
            requestPermission();
            break;
        }
    }

    function applyPatch(patch) {
        const element = document.getElementById(patch.element_id);
        if (!element) {
            return;
        }
        const badge = element.querySelector('[data-role="badge"]');
        if (badge) {
            badge.className = patch.badge_class;
            badge.innerHTML = patch.badge_html;
        }
        const feed = element.querySelector('[data-role="feed"]');
        if (feed && patch.feed_html) {
            feed.innerHTML = patch.feed_html;
        }
        const lastSeen = element.querySelector('[data-role="last-seen"]');
        if (lastSeen && patch.last_seen) {
            lastSeen.textContent = patch.last_seen;
        }
    }

    function pulse(ids, duration) {
        ids.forEach(function (id) {
            const element = document.getElementById(id);
            if (!element) {
                return;
            }
            element.classList.add('pulse');
            setTimeout(function () { element.classList.remove('pulse'); }, duration);
        });
    }

    function showAlert(n) {
        const container = document.getElementById('notifications');
        if (!container || !n) {
            return;
        }
        const toast = document.createElement('div');
        toast.id = 'alert-' + n.id;
        toast.className = 'notification-toast alert-' + (n.class || 'info');
        toast.setAttribute('role', 'alert');

        const title = document.createElement('strong');
        title.textContent = n.title;
        const body = document.createElement('div');
        if (n.html) {
            body.innerHTML = n.html;
        } else {
            body.textContent = n.message;
        }
        const close = document.createElement('button');
        close.type = 'button';
        close.className = 'btn-close';
        close.addEventListener('click', function () {
            toast.remove();
            send({type: 'dismiss', id: n.id});
        });

        toast.append(title, body, close);
        container.appendChild(toast);
        setTimeout(function () {
            removeAlert(n.id);
        }, config.notificationTTL || 5000);
    }

    function removeAlert(id) {
        const toast = document.getElementById('alert-' + id);
        if (toast) {
            toast.remove();
        }
    }

    function showDesktop(n) {
        if (!n || permissionState() !== 'granted') {
            return;
        }
        const notification = new Notification(n.title, {body: n.message, tag: 'camera-monitoring'});
        notification.onclick = function () {
            window.focus();
            notification.close();
        };
        desktop[n.id] = notification;
    }

    function requestPermission() {
        if (!('Notification' in window)) {
            send({type: 'permission', state: 'denied'});
            return;
        }
        Notification.requestPermission().then(function (state) {
            send({type: 'permission', state: state});
        });
    }

    function setupSidebar() {
        const toggle = document.getElementById('sidebarToggle');
        const sidebar = document.querySelector('.sidebar');
        if (!toggle || !sidebar) {
            return;
        }
        toggle.addEventListener('click', function (event) {
            event.stopPropagation();
            sidebar.classList.toggle('show');
        });
        document.addEventListener('click', function (event) {
            if (window.innerWidth <= (config.breakpoint || 768) &&
                !sidebar.contains(event.target) && !toggle.contains(event.target)) {
                sidebar.classList.remove('show');
            }
        });
    }

    function setupTooltips() {
        document.querySelectorAll('[title]').forEach(function (element) {
            element.setAttribute('aria-label', element.getAttribute('title'));
        });
    }

    function copyToClipboard(text) {
        navigator.clipboard.writeText(text).then(function () {
            showAlert({id: 'copy-' + Date.now(), title: 'Copied', message: 'Copied to clipboard', class: 'success'});
        }, function (error) {
            console.error('Copy failed:', error);
        });
    }

    async function api(method, url, body) {
        const response = await fetch(url, {
            method: method,
            headers: body ? {'Content-Type': 'application/json'} : {},
            body: body ? JSON.stringify(body) : undefined
        });
        if (!response.ok) {
            let message = 'Request failed';
            try {
                message = (await response.json()).error || message;
            } catch {}
            throw new Error(message);
        }
        return response;
    }

    function setupActions() {
        document.addEventListener('click', async function (event) {
            const copy = event.target.closest('[data-copy]');
            if (copy) {
                copyToClipboard(copy.dataset.copy);
                return;
            }
            const remove = event.target.closest('[data-delete-camera]');
            if (remove) {
                if (!confirm('Are you sure you want to delete "' + remove.dataset.name + '"?')) {
                    return;
                }
                try {
                    await api('DELETE', '/api/cameras/' + encodeURIComponent(remove.dataset.deleteCamera));
                    window.location.reload();
                } catch (error) {
                    showAlert({id: 'err-' + Date.now(), title: 'Error', message: error.message, class: 'danger'});
                }
                return;
            }
            const ack = event.target.closest('[data-ack]');
            if (ack) {
                try {
                    await api('POST', '/api/alerts/' + ack.dataset.ack + '/ack');
                    window.location.reload();
                } catch (error) {
                    showAlert({id: 'err-' + Date.now(), title: 'Error', message: error.message, class: 'danger'});
                }
            }
        });

        const form = document.getElementById('add-camera');
        if (form) {
            form.addEventListener('submit', async function (event) {
                event.preventDefault();
                const data = Object.fromEntries(new FormData(form));
                data.port = data.port ? parseInt(data.port, 10) : 0;
                try {
                    await api('POST', '/api/cameras', data);
                    window.location.reload();
                } catch (error) {
                    showAlert({id: 'err-' + Date.now(), title: 'Error', message: error.message, class: 'danger'});
                }
            });
        }
    }

    function showGenericError() {
        showAlert({id: 'err-' + Date.now(), title: 'Error', message: config.errorMessage, class: 'danger'});
    }

    window.addEventListener('error', function (event) {
        console.error('Global error:', event.error);
        showGenericError();
    });
    window.addEventListener('unhandledrejection', function (event) {
        console.error('Unhandled promise rejection:', event.reason);
        showGenericError();
    });

    document.addEventListener('DOMContentLoaded', function () {
        setupSidebar();
        setupTooltips();
        setupActions();
        connect();
    });
})();
`
