package api

const docsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="referrer" content="same-origin" />
  <meta name="viewport" content="width=device-width, initial-scale=1, shrink-to-fit=no" />
  <title>yieldview Console API</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
</head>
<body style="height: 100vh; margin: 0; position: relative;">
  <a href="/docs/events" style="position: fixed; top: 12px; right: 16px; z-index: 9999; background: #161b22; border: 1px solid #30363d; border-radius: 6px; color: #58a6ff; font: 500 12px sans-serif; padding: 5px 12px; text-decoration: none;">Event Feeds</a>
  <elements-api
    apiDescriptionUrl="/openapi.json"
    router="hash"
    layout="sidebar"
    tryItCredentialsPolicy="same-origin"
    darkMode
  />
</body>
</html>`

const eventsDocsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <title>Event Feeds - yieldview</title>
  <style>
    body { margin: 0 auto; max-width: 860px; padding: 24px; background: #0d1117; color: #c9d1d9; font: 14px/1.6 -apple-system, "Segoe UI", sans-serif; }
    a { color: #58a6ff; }
    code, pre { background: #161b22; border: 1px solid #30363d; border-radius: 6px; }
    code { padding: 1px 5px; }
    pre { padding: 12px; overflow-x: auto; }
    table { border-collapse: collapse; width: 100%; }
    td, th { border-bottom: 1px solid #30363d; padding: 6px 8px; text-align: left; vertical-align: top; }
  </style>
</head>
<body>
  <p><a href="/docs">&larr; API reference</a></p>
  <h1>Event Feeds</h1>
  <p>Every chart change is pushed to subscribers. A new subscriber first receives the last event of each feed.</p>

  <h2>Endpoints</h2>
  <table>
    <tr><th>Path</th><th>Transport</th></tr>
    <tr><td><code>GET /api/v1/events</code></td><td>Server-Sent Events. Each message has <code>event: &lt;feed&gt;</code> and a JSON <code>data:</code> line.</td></tr>
    <tr><td><code>GET /api/v1/ws</code></td><td>WebSocket. Each text frame is <code>{"feed": "...", "data": {...}}</code>.</td></tr>
  </table>
  <p>Both accept <code>?feeds=chart,alert</code> to subscribe to a subset.</p>

  <h2>Feeds</h2>
  <table>
    <tr><th>Feed</th><th>Payload</th></tr>
    <tr><td><code>chart</code></td><td>Chart.js configuration of the current chart, with a <code>revision</code> counter.</td></tr>
    <tr><td><code>chips</code></td><td>Scatter chips: id, name, visibility, color and zero curve state.</td></tr>
    <tr><td><code>page</code></td><td>Analysis page view: date input, dialogs, save button.</td></tr>
    <tr><td><code>modal</code></td><td><code>{"modal": "addScatterModal", "open": true}</code></td></tr>
    <tr><td><code>alert</code></td><td><code>{"level": "error", "message": "...", "at": "..."}</code></td></tr>
  </table>

  <h2>Example</h2>
  <pre>const es = new EventSource("/api/v1/events?feeds=chart");
es.addEventListener("chart", (e) =&gt; {
  const cfg = JSON.parse(e.data);
  chart.data = cfg.data;
  chart.options = cfg.options;
  chart.update();
});</pre>
  <p>Slow consumers whose buffer fills up miss events until they catch up; the next chart event always carries the full state.</p>
</body>
</html>`
