package handlers

import (
	"html/template"
	"net/http"

	"github.com/amaumene/gostremiodebrid/internal/constants"
	"github.com/gin-gonic/gin"
)

var configurePage = template.Must(template.New("configure").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Configure {{.Name}}</title>
  <style>
    :root { --primary-color: #4a90e2; --secondary-color: #50e3c2; --background-color: #f7f9fc; }
    * { box-sizing: border-box; }
    body {
      font-family: sans-serif; background-color: var(--background-color); color: #333;
      margin: 0; padding: 20px; display: flex; align-items: center; justify-content: center; min-height: 100vh;
    }
    .container { background: #fff; border-radius: 8px; padding: 30px; max-width: 520px; width: 100%; box-shadow: 0 4px 12px rgba(0,0,0,.1); }
    h1 { text-align: center; color: var(--primary-color); }
    label { font-weight: 500; margin-top: 15px; display: block; }
    input, select { width: 100%; padding: 10px; border: 1px solid #ccc; border-radius: 4px; margin-top: 5px; font-size: 1rem; }
    button { background: var(--primary-color); color: #fff; border: none; padding: 12px 20px; border-radius: 4px; font-size: 1rem; cursor: pointer; margin-top: 25px; width: 100%; }
    button:hover { background: var(--secondary-color); }
    .result { margin-top: 25px; background: #f1f3f5; border: 1px solid #e0e6ed; border-radius: 4px; padding: 15px; word-break: break-all; }
  </style>
  <script>
    const fields = ['streamService', 'jackettUrl', 'jackettApiKey', 'debridApiKey', 'maxResults'];

    function loadConfig() {
      const parts = window.location.pathname.split('/').filter(p => p);
      if (parts.length < 2 || parts[parts.length - 1] !== 'configure') {
        return;
      }
      try {
        const cfg = JSON.parse(atob(parts[parts.length - 2].replace(/-/g, '+').replace(/_/g, '/')));
        fields.forEach(f => { if (cfg[f] !== undefined) document.getElementById(f).value = cfg[f]; });
      } catch (e) {
        console.error('cannot decode configuration', e);
      }
    }

    function generateConfig() {
      const cfg = {};
      fields.forEach(f => { cfg[f] = document.getElementById(f).value.trim(); });
      cfg.maxResults = parseInt(cfg.maxResults, 10) || {{.DefaultMaxResults}};
      const encoded = btoa(JSON.stringify(cfg)).replace(/\+/g, '-').replace(/\//g, '_');
      const manifest = window.location.host + '/' + encoded + '/manifest.json';
      document.getElementById('result').innerHTML =
        '<p><strong>Manifest:</strong></p><p><a href="' + window.location.protocol + '//' + manifest + '">' + manifest + '</a></p>' +
        '<p><a href="stremio://' + manifest + '">Install in Stremio</a></p>';
    }

    window.onload = loadConfig;
  </script>
</head>
<body>
  <div class="container">
    <h1>{{.Name}}</h1>
    <label for="streamService">Debrid service</label>
    <select id="streamService">{{range .Providers}}
      <option value="{{.}}">{{.}}</option>{{end}}
    </select>

    <label for="debridApiKey">Debrid API key</label>
    <input type="text" id="debridApiKey" placeholder="API key or token">

    <label for="jackettUrl">Jackett URL</label>
    <input type="text" id="jackettUrl" placeholder="http://jackett:9117">

    <label for="jackettApiKey">Jackett API key</label>
    <input type="text" id="jackettApiKey">

    <label for="maxResults">Maximum streams</label>
    <input type="number" id="maxResults" min="1" max="{{.MaxAllowedResults}}" value="{{.DefaultMaxResults}}">

    <button onclick="generateConfig()">Generate</button>
    <div id="result" class="result"></div>
  </div>
</body>
</html>`))

type configureView struct {
	Name              string
	Providers         []string
	DefaultMaxResults int
	MaxAllowedResults int
}

// handleConfigure serves the page that builds the base64 configuration segment.
// When reached through /:configuration/configure the page prefills itself.
func (h *Handler) handleConfigure(c *gin.Context) {
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	err := configurePage.Execute(c.Writer, configureView{
		Name:              constants.AddonName,
		Providers:         h.providers,
		DefaultMaxResults: constants.DefaultMaxResults,
		MaxAllowedResults: constants.MaxAllowedResults,
	})
	if err != nil {
		h.logger.Errorf("[Handler] failed to render configure page: %v", err)
	}
}
