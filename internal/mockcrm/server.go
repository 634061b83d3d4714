// Package mockcrm is an in-memory stand-in for the GoHighLevel endpoints the importer and the
// OAuth flow use. Tests mount it behind httptest; cmd/mock-crm serves it for local runs.
package mockcrm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// APIVersion is the Version header the real API requires on contact endpoints.
const APIVersion = "2021-07-28"

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
}

// Tag is a created tag.
type Tag struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Color      string `json:"color,omitempty"`
	LocationID string `json:"locationId"`
}

// CustomField is one key/value pair as sent by the client.
type CustomField struct {
	Key        string `json:"key"`
	FieldValue string `json:"field_value"`
}

// Contact is a created contact, keeping every field the importer sends.
type Contact struct {
	ID           string        `json:"id"`
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	Name         string        `json:"name"`
	Email        string        `json:"email,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	Address1     string        `json:"address1,omitempty"`
	Website      string        `json:"website,omitempty"`
	CompanyName  string        `json:"companyName,omitempty"`
	LocationID   string        `json:"locationId"`
	Tags         []string      `json:"tags"`
	Source       string        `json:"source,omitempty"`
	CustomFields []CustomField `json:"customFields,omitempty"`
}

type rejection struct {
	status  int
	message string
}

type grant struct {
	locationID string
	userID     string
}

// Server implements a minimal GoHighLevel-like API surface.
type Server struct {
	mu    sync.Mutex
	calls []Call

	tags     []Tag
	contacts []Contact
	emails   map[string]bool
	rejects  map[string]rejection

	expectedAuthorization string

	clientID     string
	clientSecret string
	codes        map[string]grant
	refresh      map[string]grant
	issued       map[string]bool
	nextID       int
}

// New constructs an empty mock server.
func New() *Server {
	return &Server{
		emails:  make(map[string]bool),
		rejects: make(map[string]rejection),
		codes:   make(map[string]grant),
		refresh: make(map[string]grant),
		issued:  make(map[string]bool),
		nextID:  1,
	}
}

// RequireBearerToken enforces that API requests carry the token (or one minted by the
// OAuth endpoint). An empty token disables enforcement.
func (s *Server) RequireBearerToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token = strings.TrimSpace(token)
	if token == "" {
		s.expectedAuthorization = ""
		return
	}
	s.expectedAuthorization = "Bearer " + token
}

// RegisterOAuthClient sets the client credentials the token endpoint accepts.
func (s *Server) RegisterOAuthClient(clientID, clientSecret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientID = clientID
	s.clientSecret = clientSecret
}

// IssueCode makes code redeemable once for a token bound to locationID.
func (s *Server) IssueCode(code, locationID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = grant{locationID: locationID, userID: userID}
}

// RejectEmail makes contact creation for email fail with status and message.
func (s *Server) RejectEmail(email string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejects[strings.ToLower(strings.TrimSpace(email))] = rejection{status: status, message: message}
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/contacts/tags", s.handleTags)
	mux.HandleFunc("/contacts/", s.handleContacts)
	mux.HandleFunc("/oauth/token", s.handleToken)
	return mux
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Tags returns a snapshot of created tags.
func (s *Server) Tags() []Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Tag, len(s.tags))
	copy(out, s.tags)
	return out
}

// Contacts returns a snapshot of created contacts.
func (s *Server) Contacts() []Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Contact, len(s.contacts))
	copy(out, s.contacts)
	return out
}

func (s *Server) recordCall(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	got := r.Header.Get("Authorization")
	s.mu.Lock()
	expected := s.expectedAuthorization
	minted := s.issued[strings.TrimPrefix(got, "Bearer ")]
	s.mu.Unlock()

	if expected == "" || got == expected || minted {
		return true
	}
	writeError(w, http.StatusUnauthorized, "Invalid JWT")
	return false
}

func (s *Server) versioned(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Version") != APIVersion {
		writeError(w, http.StatusBadRequest, "Version header is required")
		return false
	}
	return true
}

func (s *Server) id(prefix string) string {
	id := fmt.Sprintf("%s_%04d", prefix, s.nextID)
	s.nextID++
	return id
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r) || !s.versioned(w, r) {
		return
	}
	var req Tag
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.LocationID) == "" {
		writeError(w, http.StatusUnprocessableEntity, "name and locationId are required")
		return
	}

	s.mu.Lock()
	for _, t := range s.tags {
		if strings.EqualFold(t.Name, req.Name) && t.LocationID == req.LocationID {
			s.mu.Unlock()
			writeError(w, http.StatusBadRequest, "The tag name already exists")
			return
		}
	}
	req.ID = s.id("tag")
	s.tags = append(s.tags, req)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"tag": req})
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if r.URL.Path != "/contacts/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r) || !s.versioned(w, r) {
		return
	}
	var req Contact
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.LocationID) == "" {
		writeError(w, http.StatusUnprocessableEntity, "locationId is required")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	s.mu.Lock()
	if rej, ok := s.rejects[email]; ok && email != "" {
		s.mu.Unlock()
		writeError(w, rej.status, rej.message)
		return
	}
	if email != "" && s.emails[email] {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "Contact already exists")
		return
	}
	if email != "" {
		s.emails[email] = true
	}
	req.ID = s.id("contact")
	s.contacts = append(s.contacts, req)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"contact": req})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID = r.PostForm.Get("client_id")
		clientSecret = r.PostForm.Get("client_secret")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if clientID == "" || clientID != s.clientID || clientSecret != s.clientSecret {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client")
		return
	}

	var g grant
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		code := r.PostForm.Get("code")
		found, ok := s.codes[code]
		if !ok {
			writeOAuthError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
		delete(s.codes, code)
		g = found
	case "refresh_token":
		rt := r.PostForm.Get("refresh_token")
		found, ok := s.refresh[rt]
		if !ok {
			writeOAuthError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
		// Refresh tokens rotate: the old one is single-use.
		delete(s.refresh, rt)
		g = found
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type")
		return
	}

	access := s.id("access")
	refresh := s.id("refresh")
	s.issued[access] = true
	s.refresh[refresh] = g

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "Bearer",
		"expires_in":    86399,
		"scope":         "contacts.write",
		"userType":      "Location",
		"locationId":    g.locationID,
		"userId":        g.userID,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"statusCode": status, "message": message})
}

func writeOAuthError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"error": code})
}
