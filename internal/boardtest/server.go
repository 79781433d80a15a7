// Package boardtest provides an in-process board server that speaks the same
// markup, cookie and header contracts as the real one. Tests across packages
// use it to drive the client end to end.
package boardtest

import (
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

// Fixture credentials accepted by /users/login.
const (
	Username = "ada"
	Password = "secret"
	UserName = "Ada"
)

// Failure overrides the response of one route.
type Failure struct {
	Status      int
	Body        string
	ContentType string
}

// Recorded is one request the server received.
type Recorded struct {
	Method string
	Path   string
	Form   url.Values
	Header http.Header
}

type task struct {
	ID   int
	Name string
}

type lane struct {
	ID    int
	Name  string
	Tasks []task
}

// Server is the fake board server.
type Server struct {
	*httptest.Server
	Echo *echo.Echo

	mu        sync.Mutex
	token     string
	projectID int
	project   string
	lanes     []*lane
	members   map[int]string
	failures  map[string]Failure
	requests  []Recorded
}

// New starts a server seeded with one project "Demo" (id 1) holding lanes
// 1 "待辦" (tasks 101, 102), 2 "進行中" (task 103) and 3 "完成" (empty). The
// server is closed when tb finishes.
func New(tb testing.TB) *Server {
	tb.Helper()
	s := &Server{
		token:     "tok-123",
		projectID: 1,
		project:   "Demo",
		lanes: []*lane{
			{ID: 1, Name: "待辦", Tasks: []task{{101, "寫測試"}, {102, "部署"}}},
			{ID: 2, Name: "進行中", Tasks: []task{{103, "審查"}}},
			{ID: 3, Name: "完成"},
		},
		members:  map[int]string{7: "Bob"},
		failures: make(map[string]Failure),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.record)
	s.register(e)
	s.Echo = e
	s.Server = httptest.NewServer(e)
	tb.Cleanup(s.Close)
	return s
}

func (s *Server) register(e *echo.Echo) {
	e.GET("/users/login", s.loginPage)
	e.POST("/users/login", s.login)
	e.GET("/users/logout", s.logout)
	e.GET("/projects", s.projects)
	e.POST("/projects", s.createProject)
	e.GET("/projects/:id", s.projectPage)
	e.POST("/projects/:name/delete", s.deleteProject)
	e.POST("/projects/:name/members/:user_id/remove", s.removeMember)
	e.PATCH("/tasks/:id/position", s.moveTask)
	e.PATCH("/lanes/:id/position", s.moveLane)
	e.POST("/tasks/:id/delete", s.deleteTask)
	e.POST("/lanes/:id/delete", s.deleteLane)
}

// Token returns the anti-forgery token rendered into pages.
func (s *Server) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SetToken changes the token; an empty token removes the meta element.
func (s *Server) SetToken(tok string) {
	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
}

// Fail makes every request to path answer with f until Clear is called.
func (s *Server) Fail(path string, f Failure) {
	s.mu.Lock()
	s.failures[path] = f
	s.mu.Unlock()
}

// Clear removes all failure overrides.
func (s *Server) Clear() {
	s.mu.Lock()
	s.failures = make(map[string]Failure)
	s.mu.Unlock()
}

// Requests returns a copy of the recorded requests.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Recorded, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request matching method and path.
func (s *Server) LastRequest(method, path string) (Recorded, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		r := s.requests[i]
		if r.Method == method && r.Path == path {
			return r, true
		}
	}
	return Recorded{}, false
}

// Board returns the server-side truth of the project.
func (s *Server) Board() models.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	pid := strconv.Itoa(s.projectID)
	b := models.Board{ProjectID: pid}
	for _, l := range s.lanes {
		lid := strconv.Itoa(l.ID)
		ml := models.Lane{Item: models.Item{ID: lid, Kind: models.KindLane, Name: l.Name, ContainerID: pid}}
		for _, t := range l.Tasks {
			ml.Tasks = append(ml.Tasks, models.Item{ID: strconv.Itoa(t.ID), Kind: models.KindTask, Name: t.Name, ContainerID: lid})
		}
		b.Lanes = append(b.Lanes, ml)
	}
	return b
}

// ProjectPath is the page path of the seeded project.
func (s *Server) ProjectPath() string {
	return "/projects/" + strconv.Itoa(s.projectID)
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		var form url.Values
		if req.Method != http.MethodGet {
			if f, err := c.FormParams(); err == nil {
				form = f
			}
		}
		s.mu.Lock()
		s.requests = append(s.requests, Recorded{Method: req.Method, Path: req.URL.Path, Form: form, Header: req.Header.Clone()})
		f, failing := s.failures[req.URL.Path]
		s.mu.Unlock()

		if failing {
			ct := f.ContentType
			if ct == "" {
				ct = echo.MIMETextPlainCharsetUTF8
			}
			return c.Blob(f.Status, ct, []byte(f.Body))
		}
		return next(c)
	}
}

func (s *Server) checkToken(c echo.Context) bool {
	s.mu.Lock()
	tok := s.token
	s.mu.Unlock()
	return tok == "" || c.Request().Header.Get("X-CSRFToken") == tok
}

// --- Auth ---

func (s *Server) loginPage(c echo.Context) error {
	return c.HTML(http.StatusOK, s.page("登入", `<form method="post" action="/users/login"></form>`))
}

func (s *Server) login(c echo.Context) error {
	if c.FormValue("username") != Username || c.FormValue("password") != Password {
		body := `<div id="error-message" class="bg-red-100 border border-red-400 text-red-700 px-4 py-3 rounded mb-4">帳號或密碼錯誤</div>`
		return c.HTML(http.StatusOK, s.page("登入", body))
	}
	c.SetCookie(&http.Cookie{Name: "access_token", Value: "Bearer fake", Path: "/", HttpOnly: true})
	return c.Redirect(http.StatusFound, "/projects?login=success&name="+url.QueryEscape(UserName))
}

func (s *Server) logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{Name: "access_token", Path: "/", MaxAge: -1})
	return c.Redirect(http.StatusFound, "/users/login?logout=success")
}

// --- Projects ---

func (s *Server) projects(c echo.Context) error {
	s.mu.Lock()
	name := s.project
	s.mu.Unlock()
	body := fmt.Sprintf(`<ul><li><a href="/projects/1">%s</a></li></ul>`, template.HTMLEscapeString(name))
	return c.HTML(http.StatusOK, s.page("專案", body))
}

func (s *Server) createProject(c echo.Context) error {
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "專案名稱不可為空。"})
	}
	s.mu.Lock()
	s.project = name
	s.mu.Unlock()
	setFlash(c, models.SeveritySuccess, "專案 "+name+" 建立成功。")
	return c.Redirect(http.StatusFound, "/projects")
}

func (s *Server) projectPage(c echo.Context) error {
	if c.Param("id") != strconv.Itoa(s.projectID) {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "查無專案。"})
	}
	if c.Request().Header.Get("HX-Request") == "true" && c.QueryParam("fragment") == "1" {
		return c.HTML(http.StatusOK, s.boardFragment(""))
	}
	return c.HTML(http.StatusOK, s.page("Demo", s.boardFragment("")))
}

func (s *Server) deleteProject(c echo.Context) error {
	if !s.checkToken(c) {
		return c.String(http.StatusForbidden, "CSRF token missing or incorrect")
	}
	s.mu.Lock()
	found := c.Param("name") == s.project
	if found {
		s.lanes = nil
	}
	s.mu.Unlock()
	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "查無專案。"})
	}
	return c.HTML(http.StatusOK, marker(models.SeveritySuccess, "專案已刪除。")+`<ul></ul>`)
}

func (s *Server) removeMember(c echo.Context) error {
	if !s.checkToken(c) {
		return c.String(http.StatusForbidden, "CSRF token missing or incorrect")
	}
	id, _ := strconv.Atoi(c.Param("user_id"))
	s.mu.Lock()
	name, ok := s.members[id]
	delete(s.members, id)
	s.mu.Unlock()
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "查無成員。"})
	}
	return c.HTML(http.StatusOK, marker(models.SeveritySuccess, "已將 "+name+" 移出專案。")+`<ul class="member-list"></ul>`)
}

// --- Reorder ---

func (s *Server) moveTask(c echo.Context) error {
	if !s.checkToken(c) {
		return c.String(http.StatusForbidden, "CSRF token missing or incorrect")
	}
	taskID, _ := strconv.Atoi(c.Param("id"))
	index, err := strconv.Atoi(c.FormValue("new_index"))
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "new_index 必須為整數。"})
	}
	laneID, err := strconv.Atoi(c.FormValue("target_lane_id"))
	if err != nil {
		return c.String(http.StatusNotFound, "lane not found")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.findLane(laneID)
	if target == nil {
		return c.String(http.StatusNotFound, "lane not found")
	}
	var moved *task
	for _, l := range s.lanes {
		for i, t := range l.Tasks {
			if t.ID == taskID {
				moved = &task{t.ID, t.Name}
				l.Tasks = append(l.Tasks[:i:i], l.Tasks[i+1:]...)
				break
			}
		}
		if moved != nil {
			break
		}
	}
	if moved == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "查無任務。"})
	}
	pos := clamp(index-1, len(target.Tasks))
	target.Tasks = append(target.Tasks[:pos], append([]task{*moved}, target.Tasks[pos:]...)...)
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "任務位置已更新"})
}

func (s *Server) moveLane(c echo.Context) error {
	if !s.checkToken(c) {
		return c.String(http.StatusForbidden, "CSRF token missing or incorrect")
	}
	laneID, _ := strconv.Atoi(c.Param("id"))
	index, err := strconv.Atoi(c.FormValue("new_index"))
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "new_index 必須為整數。"})
	}
	if c.FormValue("project_id") != strconv.Itoa(s.projectID) {
		return c.String(http.StatusNotFound, "project not found")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	from := -1
	for i, l := range s.lanes {
		if l.ID == laneID {
			from = i
		}
	}
	if from < 0 {
		return c.String(http.StatusNotFound, "lane not found")
	}
	moved := s.lanes[from]
	s.lanes = append(s.lanes[:from:from], s.lanes[from+1:]...)
	pos := clamp(index-1, len(s.lanes))
	s.lanes = append(s.lanes[:pos], append([]*lane{moved}, s.lanes[pos:]...)...)
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "泳道位置已更新"})
}

// --- Deletes ---

func (s *Server) deleteTask(c echo.Context) error {
	if !s.checkToken(c) {
		return c.String(http.StatusForbidden, "CSRF token missing or incorrect")
	}
	id, _ := strconv.Atoi(c.Param("id"))
	s.mu.Lock()
	found := false
	for _, l := range s.lanes {
		for i, t := range l.Tasks {
			if t.ID == id {
				l.Tasks = append(l.Tasks[:i:i], l.Tasks[i+1:]...)
				found = true
				break
			}
		}
	}
	s.mu.Unlock()
	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "查無任務。"})
	}
	return c.HTML(http.StatusOK, s.boardFragment(marker(models.SeveritySuccess, "任務已刪除。")))
}

func (s *Server) deleteLane(c echo.Context) error {
	if !s.checkToken(c) {
		return c.String(http.StatusForbidden, "CSRF token missing or incorrect")
	}
	id, _ := strconv.Atoi(c.Param("id"))
	s.mu.Lock()
	found := false
	for i, l := range s.lanes {
		if l.ID == id {
			s.lanes = append(s.lanes[:i:i], s.lanes[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "查無泳道。"})
	}
	return c.HTML(http.StatusOK, s.boardFragment(marker(models.SeveritySuccess, "泳道已刪除。")))
}

// --- Rendering ---

func (s *Server) findLane(id int) *lane {
	for _, l := range s.lanes {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func (s *Server) page(title, body string) string {
	s.mu.Lock()
	tok := s.token
	s.mu.Unlock()
	var meta string
	if tok != "" {
		meta = fmt.Sprintf(`<meta name="csrf-token" content="%s">`, template.HTMLEscapeString(tok))
	}
	return fmt.Sprintf(`<!DOCTYPE html><html><head>%s<title>%s</title></head><body><div id="main-content">%s</div></body></html>`,
		meta, template.HTMLEscapeString(title), body)
}

func (s *Server) boardFragment(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	b.WriteString(prefix)
	fmt.Fprintf(&b, `<div class="lane-list" data-project-id="%d">`, s.projectID)
	for _, l := range s.lanes {
		name := template.HTMLEscapeString(l.Name)
		fmt.Fprintf(&b, `<div class="lane-item" data-id="%d" data-name="%s"><h3>%s</h3><div class="task-list" data-lane-id="%d">`, l.ID, name, name, l.ID)
		for _, t := range l.Tasks {
			fmt.Fprintf(&b, `<div class="task-item" data-id="%d">%s</div>`, t.ID, template.HTMLEscapeString(t.Name))
		}
		if len(l.Tasks) == 0 {
			b.WriteString(`<div class="min-h-8 empty-placeholder text-gray-500 text-sm italic">尚無任務</div>`)
		}
		b.WriteString(`</div></div>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func marker(sev models.Severity, msg string) string {
	return fmt.Sprintf(`<div id="message-data" data-type="%s" data-message="%s" style="display:none"></div>`,
		sev, template.HTMLEscapeString(msg))
}

func setFlash(c echo.Context, sev models.Severity, msg string) {
	c.SetCookie(&http.Cookie{
		Name:     "flash_message",
		Value:    string(sev) + ":" + url.PathEscape(msg),
		Path:     "/",
		MaxAge:   30,
		HttpOnly: true,
	})
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
