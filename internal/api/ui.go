package api

import (
	"net/http"
)

const playerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Sentient Dialogue - Player</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body { font-family: monospace; background: #1a1a2e; color: #eee; height: 100vh; display: flex; flex-direction: column; }
        header { background: #16213e; padding: 12px 20px; border-bottom: 1px solid #0f3460; display: flex; gap: 12px; align-items: center; }
        header h1 { font-size: 16px; font-weight: normal; flex: 1; }
        #conn { padding: 4px 10px; border-radius: 4px; font-size: 12px; }
        #conn.connected { background: #1b4332; color: #95d5b2; }
        #conn.disconnected { background: #7f1d1d; color: #fca5a5; }
        main { flex: 1; display: grid; grid-template-columns: 1fr 1fr; overflow: hidden; }
        section { padding: 16px; overflow-y: auto; border-right: 1px solid #0f3460; }
        #speaker { color: #fcd34d; margin-bottom: 6px; }
        #dialogue { font-size: 18px; min-height: 60px; margin-bottom: 16px; }
        #options button, .controls button, .controls select { display: block; margin: 6px 0; padding: 8px 12px; background: #0f3460; color: #eee; border: 0; border-radius: 4px; cursor: pointer; }
        .controls { display: flex; gap: 8px; align-items: center; margin-bottom: 16px; }
        .controls button, .controls select { display: inline-block; }
        .event { padding: 6px 10px; margin-bottom: 4px; background: #16213e; border-left: 3px solid #0f3460; font-size: 12px; }
        .event .name { color: #95d5b2; margin-right: 8px; }
        #result { font-size: 12px; min-height: 16px; }
        #result.error { color: #fca5a5; }
    </style>
</head>
<body>
    <header>
        <h1>Sentient Dialogue</h1>
        <span id="conn" class="disconnected">disconnected</span>
    </header>
    <main>
        <section>
            <div class="controls">
                <select id="scenario"></select>
                <button onclick="start()">Start</button>
                <button onclick="post('/play/advance', {})">Advance</button>
                <button onclick="post('/play/stop', {})">Stop</button>
            </div>
            <div id="speaker"></div>
            <div id="dialogue"></div>
            <div id="options"></div>
            <div id="result"></div>
        </section>
        <section id="events"></section>
    </main>
    <script>
        var scenarioSel = document.getElementById('scenario');
        var resultEl = document.getElementById('result');

        function render(status) {
            var cur = status && status.current;
            document.getElementById('speaker').textContent = cur && cur.speaker ? cur.speaker : '';
            document.getElementById('dialogue').textContent = cur && cur.dialogue ? cur.dialogue : (status && status.active ? '' : 'No scenario playing');
            var opts = document.getElementById('options');
            opts.innerHTML = '';
            if (cur && cur.options) {
                cur.options.forEach(function(label, i) {
                    var b = document.createElement('button');
                    b.textContent = (i + 1) + '. ' + label;
                    b.onclick = function() { post('/play/select', { index: i }); };
                    opts.appendChild(b);
                });
            }
        }

        function post(path, body) {
            fetch(path, { method: 'POST', headers: { 'Content-Type': 'application/json' }, body: JSON.stringify(body) })
                .then(function(res) { return res.json(); })
                .then(function(data) {
                    resultEl.className = data.ok ? '' : 'error';
                    resultEl.textContent = data.ok ? '' : data.error;
                    if (data.ok) render(data.status);
                })
                .catch(function() { resultEl.className = 'error'; resultEl.textContent = 'Network error'; });
        }

        function start() {
            post('/play/start', { scenario_id: parseInt(scenarioSel.value, 10) });
        }

        fetch('/scenarios').then(function(res) { return res.json(); }).then(function(data) {
            (data.scenarios || []).forEach(function(id) {
                var o = document.createElement('option');
                o.value = id;
                o.textContent = 'Scenario ' + id;
                scenarioSel.appendChild(o);
            });
        });
        fetch('/play/status').then(function(res) { return res.json(); }).then(function(data) { render(data.status); });

        function connect() {
            var proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
            var ws = new WebSocket(proto + '//' + location.host + '/ws/events');
            var conn = document.getElementById('conn');
            ws.onopen = function() { conn.className = 'connected'; conn.textContent = 'connected'; };
            ws.onclose = function() {
                conn.className = 'disconnected';
                conn.textContent = 'disconnected';
                setTimeout(connect, 2000);
            };
            ws.onmessage = function(msg) {
                var e = JSON.parse(msg.data);
                var div = document.createElement('div');
                div.className = 'event';
                var name = document.createElement('span');
                name.className = 'name';
                name.textContent = e.event;
                div.appendChild(name);
                div.appendChild(document.createTextNode(JSON.stringify(e.fields || {})));
                var list = document.getElementById('events');
                list.insertBefore(div, list.firstChild);
            };
        }
        connect();
    </script>
</body>
</html>`

// uiHandler serves the player page at "/" and 404 for anything else the
// mux routes here.
func uiHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(playerUIHTML))
}
