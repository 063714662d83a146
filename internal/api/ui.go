package api

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const uiStyle = `
    body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Ubuntu,Cantarell,Noto Sans,sans-serif;max-width:880px;margin:32px auto;padding:0 16px;color:#0b0b0b;background:#fafafa}
    header{margin-bottom:24px}
    h1{font-size:22px;margin:0 0 8px}
    a{color:#0b63e5;text-decoration:none}
    a:hover{text-decoration:underline}
    .card{background:#fff;border:1px solid #e9e9e9;border-radius:10px;padding:16px;margin:12px 0}
    .row{display:flex;gap:12px;flex-wrap:wrap}
    .btn{display:inline-block;background:#0b63e5;color:#fff;border:none;padding:10px 14px;border-radius:8px;cursor:pointer}
    input[type=text]{padding:9px 10px;border:1px solid #dcdcdc;border-radius:8px;flex:1}
    .muted{color:#666}
    .mono{font-family:ui-monospace,SFMono-Regular,Menlo,Monaco,Consolas,monospace}
    .status{display:inline-block;padding:4px 8px;border-radius:6px;background:#efefef;font-size:12px}
    .bar{height:10px;background:#efefef;border-radius:6px;overflow:hidden;margin:8px 0}
    .bar div{height:100%;background:#0b63e5}
    footer{margin-top:24px;color:#666;font-size:12px}
`

var uiTemplates = template.Must(template.New("layout").Funcs(template.FuncMap{
	"style": func() template.CSS { return template.CSS(uiStyle) },
}).Parse(`{{define "layout"}}
<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  {{if .Refresh}}<meta http-equiv="refresh" content="2"/>{{end}}
  <title>mp3fetch</title>
  <style>{{style}}</style>
</head>
<body>
  <header>
    <h1><a href="/">mp3fetch</a></h1>
    <div class="muted">Paste a video or playlist link, get an mp3 or a zip back</div>
  </header>
  {{if .Error}}
  <div class="card" style="border-color:#f2b8b5;background:#fff6f6">
    <strong style="color:#b3261e">Error:</strong> <span class="muted">{{.Error}}</span>
  </div>
  {{end}}
  {{if .Task}}{{template "content-task" .}}{{else}}{{template "content-home" .}}{{end}}
  <footer>
    <div>API base: <span class="mono">/api/v1</span></div>
  </footer>
</body>
</html>
{{end}}

{{define "content-home"}}
  <div class="card">
    <h2>New download</h2>
    <form method="post" action="/ui/tasks">
      <div class="row">
        <input type="text" name="url" placeholder="https://www.youtube.com/watch?v=..." value="{{.URL}}" required />
        <button class="btn" type="submit">Download</button>
      </div>
    </form>
    <div class="muted">POST /api/v1/tasks</div>
  </div>

  <div class="card">
    <h2>Open existing task</h2>
    <form method="get" action="/ui/tasks">
      <div class="row">
        <input type="text" name="id" placeholder="Task ID" required />
        <button class="btn" type="submit">Open</button>
      </div>
    </form>
    <div class="muted">GET /api/v1/tasks/{id}</div>
  </div>
{{end}}

{{define "content-task"}}
  <div class="card">
    <h2>{{.Task.Title}}</h2>
    <div class="muted mono">{{.Task.ID}}</div>
    <div>Status: <span class="status">{{.Task.Status}}</span></div>
    <div class="bar"><div style="width:{{printf "%.1f" .Task.Progress}}%"></div></div>
    <div>{{printf "%.1f" .Task.Progress}}%</div>
    {{with .Task.Items}}
    <div class="muted">Items: {{.Completed}}/{{.Total}} done, {{.Succeeded}} ok, {{.Failed}} failed</div>
    {{end}}
    {{if .Task.CurrentItemTitle}}<div class="muted">Now: {{.Task.CurrentItemTitle}}</div>{{end}}
    {{if .Task.ErrorMessage}}<div style="color:#b3261e">{{.Task.ErrorKind}}: {{.Task.ErrorMessage}}</div>{{end}}
  </div>

  {{if eq .Task.Status "completed"}}
  <div class="card">
    <a class="btn" href="/api/v1/tasks/{{.Task.ID}}/file">Download {{.Task.ArtifactName}}</a>
  </div>
  {{else if .Refresh}}
  <div class="muted">This page refreshes every 2 seconds.</div>
  {{end}}
{{end}}
`))

// RegisterUIRoutes registers minimal HTML UI without JS
func (a *API) RegisterUIRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(uiTemplates)
	router.GET("/", a.UIHome)
	router.GET("/ui/tasks", a.UIOpenExisting)
	router.POST("/ui/tasks", a.UICreateTask)
	router.GET("/ui/tasks/:id", a.UITask)
}

// UIHome renders the home page
func (a *API) UIHome(c *gin.Context) { c.HTML(http.StatusOK, "layout", gin.H{"URL": ""}) }

// UIOpenExisting redirects to the task page by id
func (a *API) UIOpenExisting(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.Redirect(http.StatusFound, "/ui/tasks/"+id)
}

// UICreateTask submits the url from the form and redirects to the task page
func (a *API) UICreateTask(c *gin.Context) {
	ref := strings.TrimSpace(c.PostForm("url"))
	sub, err := a.taskManager.Submit(c.Request.Context(), ref)
	if err != nil {
		log.Warn().Str("url", ref).Err(err).Msg("ui task rejected")
		c.HTML(statusFor(err), "layout", gin.H{"Error": err.Error(), "URL": ref})
		return
	}
	c.Redirect(http.StatusFound, "/ui/tasks/"+sub.TaskID)
}

// UITask renders a task page that refreshes itself until the task finishes
func (a *API) UITask(c *gin.Context) {
	rec, err := a.taskManager.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.HTML(statusFor(err), "layout", gin.H{"Error": err.Error(), "URL": ""})
		return
	}
	c.HTML(http.StatusOK, "layout", gin.H{"Task": rec, "Refresh": !rec.Status.IsTerminal()})
}
