package display

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Thermostat</title>
<style>
body { margin: 0; font-family: sans-serif; background: #111; color: #eee; }
section { display: none; padding: 1em; text-align: center; }
section.active { display: block; }
#log { text-align: left; font-family: monospace; font-size: 12px; white-space: pre-wrap; }
.temp { font-size: 3em; }
button { font-size: 2em; width: 3em; }
button:disabled { opacity: 0.3; }
#date { white-space: pre-line; }
</style>
</head>
<body>
<section id="provisioning"><h2>Scan with the provisioning app</h2><pre id="payload"></pre></section>
<section id="loading"><h2>Connecting...</h2><div id="log"></div><button id="reconnect" style="display:none;width:auto">Reconnect WiFi</button></section>
<section id="main">
  <div id="date"></div><div id="time"></div>
  <div>Current <span class="temp" id="current"></span></div>
  <div><button id="decrease">-</button> <span class="temp" id="target"></span> <button id="increase">+</button></div>
  <div id="status"></div>
</section>
<script>
const ws = new WebSocket("ws://" + location.host + "/ws");
const $ = id => document.getElementById(id);
ws.onmessage = e => {
  const s = JSON.parse(e.data).data;
  for (const el of document.querySelectorAll("section")) el.classList.toggle("active", el.id === s.screen);
  $("payload").textContent = s.payload || "";
  $("log").textContent = (s.log || []).join("\n");
  $("reconnect").style.display = s.reconnect ? "inline-block" : "none";
  $("current").textContent = s.currentTemp;
  $("target").textContent = s.targetTemp;
  $("status").textContent = s.status;
  $("date").textContent = s.date;
  $("time").textContent = s.time;
  $("increase").disabled = $("decrease").disabled = !s.buttonsEnabled;
};
$("increase").onclick = () => ws.send(JSON.stringify({type: "button", button: "increase"}));
$("decrease").onclick = () => ws.send(JSON.stringify({type: "button", button: "decrease"}));
$("reconnect").onclick = () => ws.send(JSON.stringify({type: "reconnect"}));
</script>
</body>
</html>
`
