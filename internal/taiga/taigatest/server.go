// Package taigatest provides an in-memory Taiga API server for tests.
package taigatest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taigent/internal/taiga"
)

// Username and Password are the credentials the fake accepts.
const (
	Username = "admin"
	Password = "adminpassword"
)

// Server is a fake Taiga instance backed by maps. Only the endpoints the
// taiga client uses are implemented.
type Server struct {
	srv *httptest.Server

	AuthCalls    atomic.Int32
	RefreshCalls atomic.Int32

	// AuthDelay slows /auth and /auth/refresh down to widen race windows.
	AuthDelay time.Duration
	// FailRefresh makes /auth/refresh reject every token.
	FailRefresh bool
	// RejectLogin makes /auth reject the credentials.
	RejectLogin bool

	mu        sync.Mutex
	seq       int
	valid     string
	refresh   string
	nextID    int64
	projects  map[int64]*taiga.Project
	epics     map[int64]*taiga.Epic
	stories   map[int64]*taiga.UserStory
	links     []taiga.RelatedUserStory
	requests  []string
	lastPatch map[string]any
	lastQuery map[string]string
	failNext  map[string]int
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		nextID:   100,
		projects: map[int64]*taiga.Project{},
		epics:    map[int64]*taiga.Epic{},
		stories:  map[int64]*taiga.UserStory{},
		failNext: map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth", s.handleAuth)
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.HandleFunc("GET /users/me", s.authed(s.me))
	mux.HandleFunc("GET /projects", s.authed(s.listProjects))
	mux.HandleFunc("POST /projects", s.authed(s.createProject))
	mux.HandleFunc("GET /projects/{id}", s.authed(s.getProject))
	mux.HandleFunc("DELETE /projects/{id}", s.authed(s.deleteProject))
	mux.HandleFunc("GET /epics", s.authed(s.listEpics))
	mux.HandleFunc("POST /epics", s.authed(s.createEpic))
	mux.HandleFunc("GET /epics/{id}", s.authed(s.getEpic))
	mux.HandleFunc("PATCH /epics/{id}", s.authed(s.patchEpic))
	mux.HandleFunc("DELETE /epics/{id}", s.authed(s.deleteEpic))
	mux.HandleFunc("GET /epics/{id}/related_userstories", s.authed(s.listLinks))
	mux.HandleFunc("POST /epics/{id}/related_userstories", s.authed(s.createLink))
	mux.HandleFunc("GET /userstories", s.authed(s.listStories))
	mux.HandleFunc("POST /userstories", s.authed(s.createStory))
	mux.HandleFunc("GET /userstories/{id}", s.authed(s.getStory))
	mux.HandleFunc("PATCH /userstories/{id}", s.authed(s.patchStory))
	mux.HandleFunc("DELETE /userstories/{id}", s.authed(s.deleteStory))

	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

// URL is the API root to hand to taiga.NewClient.
func (s *Server) URL() string {
	return s.srv.URL
}

// Client returns a taiga client for this server using its own transport,
// closed when the test ends.
func (s *Server) Client(t testing.TB) *taiga.Client {
	t.Helper()
	tr := &http.Transport{}
	t.Cleanup(tr.CloseIdleConnections)
	return taiga.NewClient(s.URL(), taiga.Credentials{Username: Username, Password: Password},
		taiga.WithHTTPClient(&http.Client{Transport: tr, Timeout: 5 * time.Second}))
}

// Expire invalidates every issued auth token; the refresh token stays valid.
func (s *Server) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = "expired"
}

// FailNext makes the next n requests matching "METHOD /path" fail with 500.
func (s *Server) FailNext(req string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[req] = n
}

// Count returns how many authenticated requests matched "METHOD /path".
func (s *Server) Count(req string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r == req {
			n++
		}
	}
	return n
}

// Requests returns the authenticated requests seen so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// LastPatch returns the body of the most recent PATCH.
func (s *Server) LastPatch() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPatch
}

// LastQuery returns query parameters and the pagination header of the most
// recent list request.
func (s *Server) LastQuery() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

// Links returns every epic/story link.
func (s *Server) Links() []taiga.RelatedUserStory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]taiga.RelatedUserStory(nil), s.links...)
}

// AddProject seeds a project and returns its id.
func (s *Server) AddProject(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	s.projects[id] = &taiga.Project{ID: id, Name: name, Slug: slug(name)}
	return id
}

// AddEpic seeds an epic and returns it.
func (s *Server) AddEpic(project int64, subject, description string) taiga.Epic {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.putEpic(project, subject, description)
	return *e
}

// AddStory seeds a user story and returns it.
func (s *Server) AddStory(project int64, subject, description string) taiga.UserStory {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.putStory(project, subject, description)
	return *st
}

// Story returns a stored story.
func (s *Server) Story(id int64) (taiga.UserStory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stories[id]
	if !ok {
		return taiga.UserStory{}, false
	}
	return *st, true
}

// Stories returns every stored story ordered by id.
func (s *Server) Stories() []taiga.UserStory {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]taiga.UserStory, 0, len(s.stories))
	for _, st := range s.stories {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) newID() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) putEpic(project int64, subject, description string) *taiga.Epic {
	id := s.newID()
	e := &taiga.Epic{
		ID: id, Ref: id, Project: project, Subject: subject, Description: description,
		Permalink: fmt.Sprintf("http://taiga.local/project/p%d/epic/%d", project, id),
		Version:   1,
	}
	s.epics[id] = e
	return e
}

func (s *Server) putStory(project int64, subject, description string) *taiga.UserStory {
	id := s.newID()
	st := &taiga.UserStory{
		ID: id, Ref: id, Project: project, Subject: subject, Description: description,
		Permalink:       fmt.Sprintf("http://taiga.local/project/p%d/us/%d", project, id),
		Version:         1,
		StatusExtraInfo: &taiga.StatusInfo{Name: "New"},
	}
	s.stories[id] = st
	return st
}

func slug(name string) string {
	return fmt.Sprintf("admin-%x", len(name))
}

type authResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	AuthToken string `json:"auth_token"`
	Refresh   string `json:"refresh"`
}

func (s *Server) issue() authResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.valid = fmt.Sprintf("tok-%d", s.seq)
	s.refresh = fmt.Sprintf("ref-%d", s.seq)
	return authResponse{ID: 5, Username: Username, AuthToken: s.valid, Refresh: s.refresh}
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	s.AuthCalls.Add(1)
	time.Sleep(s.AuthDelay)
	var req struct {
		Type     string `json:"type"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if s.RejectLogin || req.Type != "normal" || req.Username != Username || req.Password != Password {
		writeJSON(w, http.StatusBadRequest, map[string]string{"_error_message": "Username or password does not matches user."})
		return
	}
	writeJSON(w, http.StatusOK, s.issue())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.RefreshCalls.Add(1)
	time.Sleep(s.AuthDelay)
	var req struct {
		Refresh string `json:"refresh"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.mu.Lock()
	ok := !s.FailRefresh && req.Refresh == s.refresh
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired"})
		return
	}
	writeJSON(w, http.StatusOK, s.issue())
}

func (s *Server) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.requests = append(s.requests, key)
		ok := r.Header.Get("Authorization") == "Bearer "+s.valid
		fail := false
		if ok && s.failNext[key] > 0 {
			s.failNext[key]--
			fail = true
		}
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token"})
			return
		}
		if fail {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"_error_message": "Internal server error"})
			return
		}
		h(w, r)
	}
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id
}

func notFound(w http.ResponseWriter, kind string) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"_error_message": fmt.Sprintf("No %s matches the given query.", kind),
		"_error_type":    "taiga.base.exceptions.NotFound",
	})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, taiga.User{ID: 5, Username: Username, FullName: "Administrator"})
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []taiga.Project{}
	for _, p := range s.projects {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var in taiga.NewProject
	_ = json.NewDecoder(r.Body).Decode(&in)
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	p := &taiga.Project{ID: id, Name: in.Name, Description: in.Description, Slug: slug(in.Name)}
	s.projects[id] = p
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[pathID(r)]
	if !ok {
		notFound(w, "Project")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(r)
	if _, ok := s.projects[id]; !ok {
		notFound(w, "Project")
		return
	}
	delete(s.projects, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listEpics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuery = map[string]string{
		"project":    r.URL.Query().Get("project"),
		"pagination": r.Header.Get("x-disable-pagination"),
	}
	project, _ := strconv.ParseInt(r.URL.Query().Get("project"), 10, 64)
	out := []taiga.Epic{}
	for _, e := range s.epics {
		if e.Project == project {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createEpic(w http.ResponseWriter, r *http.Request) {
	var in taiga.NewEpic
	_ = json.NewDecoder(r.Body).Decode(&in)
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusCreated, s.putEpic(in.Project, in.Subject, in.Description))
}

func (s *Server) getEpic(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.epics[pathID(r)]
	if !ok {
		notFound(w, "Epic")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// checkVersion applies Taiga's optimistic concurrency rule.
func checkVersion(w http.ResponseWriter, body map[string]any, current int64) bool {
	if v, _ := body["version"].(float64); int64(v) != current {
		writeJSON(w, http.StatusBadRequest, map[string]string{"version": "The version doesn't match with the current one"})
		return false
	}
	return true
}

func (s *Server) patchEpic(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPatch = body
	e, ok := s.epics[pathID(r)]
	if !ok {
		notFound(w, "Epic")
		return
	}
	if !checkVersion(w, body, e.Version) {
		return
	}
	if v, ok := body["subject"].(string); ok {
		e.Subject = v
	}
	if v, ok := body["description"].(string); ok {
		e.Description = v
	}
	e.Version++
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) deleteEpic(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(r)
	if _, ok := s.epics[id]; !ok {
		notFound(w, "Epic")
		return
	}
	delete(s.epics, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listLinks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	epic := pathID(r)
	if _, ok := s.epics[epic]; !ok {
		notFound(w, "Epic")
		return
	}
	out := []taiga.RelatedUserStory{}
	for _, l := range s.links {
		if l.Epic == epic {
			out = append(out, l)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createLink(w http.ResponseWriter, r *http.Request) {
	var in taiga.RelatedUserStory
	_ = json.NewDecoder(r.Body).Decode(&in)
	s.mu.Lock()
	defer s.mu.Unlock()
	epic, ok := s.epics[pathID(r)]
	if !ok {
		notFound(w, "Epic")
		return
	}
	story, ok := s.stories[in.UserStory]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"user_story": "Invalid pk - object does not exist."})
		return
	}
	s.links = append(s.links, in)
	story.Epics = append(story.Epics, taiga.EpicSummary{ID: epic.ID, Ref: epic.Ref, Subject: epic.Subject})
	writeJSON(w, http.StatusCreated, in)
}

func (s *Server) listStories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := r.URL.Query()
	s.lastQuery = map[string]string{
		"project":    q.Get("project"),
		"epic":       q.Get("epic"),
		"pagination": r.Header.Get("x-disable-pagination"),
	}
	project, _ := strconv.ParseInt(q.Get("project"), 10, 64)
	epic, _ := strconv.ParseInt(q.Get("epic"), 10, 64)
	out := []taiga.UserStory{}
	for _, st := range s.stories {
		if st.Project != project {
			continue
		}
		if epic != 0 && !s.linked(epic, st.ID) {
			continue
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) linked(epic, story int64) bool {
	for _, l := range s.links {
		if l.Epic == epic && l.UserStory == story {
			return true
		}
	}
	return false
}

func (s *Server) createStory(w http.ResponseWriter, r *http.Request) {
	var in taiga.NewUserStory
	_ = json.NewDecoder(r.Body).Decode(&in)
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.Subject == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"subject": "This field is required."})
		return
	}
	writeJSON(w, http.StatusCreated, s.putStory(in.Project, in.Subject, in.Description))
}

func (s *Server) getStory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stories[pathID(r)]
	if !ok {
		notFound(w, "UserStory")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) patchStory(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPatch = body
	st, ok := s.stories[pathID(r)]
	if !ok {
		notFound(w, "UserStory")
		return
	}
	if !checkVersion(w, body, st.Version) {
		return
	}
	if v, ok := body["subject"].(string); ok {
		st.Subject = v
	}
	if v, ok := body["description"].(string); ok {
		st.Description = v
	}
	st.Version++
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) deleteStory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(r)
	if _, ok := s.stories[id]; !ok {
		notFound(w, "UserStory")
		return
	}
	delete(s.stories, id)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
