package server

const indexHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Taiga Assistant</title>
<style>
body { font-family: sans-serif; max-width: 760px; margin: 2em auto; }
#log { border: 1px solid #ccc; height: 420px; overflow-y: auto; padding: 1em; white-space: pre-wrap; }
.user { color: #1565c0; margin: .5em 0; }
.bot { color: #222; margin: .5em 0 1em; }
form { display: flex; gap: .5em; margin-top: 1em; }
#message { flex: 1; padding: .5em; }
</style>
</head>
<body>
<h1>Taiga Assistant</h1>
<div id="log"></div>
<form id="chat">
<input id="project" type="number" placeholder="project id" style="width:8em">
<input id="message" autocomplete="off" placeholder="Ask about your projects, epics and user stories">
<button>Send</button>
</form>
<script>
const log = document.getElementById('log');
function add(cls, text) {
  const div = document.createElement('div');
  div.className = cls;
  div.textContent = text;
  log.appendChild(div);
  log.scrollTop = log.scrollHeight;
}
document.getElementById('chat').addEventListener('submit', async (e) => {
  e.preventDefault();
  const input = document.getElementById('message');
  const project = parseInt(document.getElementById('project').value, 10);
  const message = input.value;
  input.value = '';
  add('user', message);
  const body = { message };
  if (project > 0) body.project_id = project;
  try {
    const res = await fetch('/api/chat', {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: JSON.stringify(body),
    });
    const data = await res.json();
    add('bot', data.response);
  } catch (err) {
    add('bot', 'Error: ' + err);
  }
});
</script>
</body>
</html>
`
