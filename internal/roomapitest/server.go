// Package roomapitest provides an in-memory room API for tests.
// It honours the REST surface the dashboard consumes and records every
// request so tests can assert on what was sent.
//
// Usage:
//
//	api := roomapitest.New(t)
//	api.Seed(domain.Room{Name: "Suite 1", Description: "Sea view", Capacity: 2})
//	api.Fail(roomapitest.RouteFinalize, http.StatusInternalServerError)
//	cfg := config.Default().API
//	cfg.BaseURL = api.URL
package roomapitest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sieffosman/hotel-dashboard/internal/domain"
)

// Route names accepted by Fail.
const (
	RouteList     = "list"
	RouteGet      = "get"
	RouteCreate   = "create"
	RouteUpdate   = "update"
	RouteDelete   = "delete"
	RouteUpload   = "upload"
	RouteFinalize = "finalize"
	RoutePDF      = "pdf"
)

const (
	TempPrefix      = "/uploads/rooms/temp/"
	PermanentPrefix = "/uploads/rooms/permanent/"
)

// PDFBody is what the fake answers for binary PDF requests.
var PDFBody = []byte("%PDF-1.4\n% room summary\n%%EOF\n")

// Request is one recorded call.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// JSON decodes the recorded body into a generic map.
func (r Request) JSON() map[string]any {
	out := map[string]any{}
	_ = json.Unmarshal(r.Body, &out)
	return out
}

// Server is the fake API. All methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	rooms       map[int]domain.Room
	nextID      int
	temp        map[string][]byte
	permanent   map[string][]byte
	failures    map[string]int
	listPayload []byte
	requests    []Request
	pdfCalls    map[int]int
	now         func() time.Time
}

// New starts a fake API that is closed when the test ends.
func New(t testing.TB) *Server {
	s := &Server{
		rooms:     map[int]domain.Room{},
		nextID:    1,
		temp:      map[string][]byte{},
		permanent: map[string][]byte{},
		failures:  map[string]int{},
		pdfCalls:  map[int]int{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.record)
	r.HandleFunc("/rooms", s.guard(RouteList, s.listRooms)).Methods(http.MethodGet)
	r.HandleFunc("/rooms", s.guard(RouteCreate, s.createRoom)).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{id:[0-9]+}", s.guard(RouteGet, s.getRoom)).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{id:[0-9]+}", s.guard(RouteUpdate, s.updateRoom)).Methods(http.MethodPatch)
	r.HandleFunc("/rooms/{id:[0-9]+}", s.guard(RouteDelete, s.deleteRoom)).Methods(http.MethodDelete)
	r.HandleFunc("/rooms/{id:[0-9]+}/finalize-image", s.guard(RouteFinalize, s.finalizeImage)).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{id:[0-9]+}/generate-pdf", s.guard(RoutePDF, s.generatePDF)).Methods(http.MethodPost)
	r.HandleFunc("/upload/temp-room-image", s.guard(RouteUpload, s.uploadTemp)).Methods(http.MethodPost)
	return r
}

// Seed stores rooms in order, assigning ids and timestamps. The stored
// rooms are returned.
func (s *Server) Seed(rooms ...domain.Room) []domain.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Room, 0, len(rooms))
	for _, r := range rooms {
		r.ID = s.nextID
		s.nextID++
		if r.CreatedAt.IsZero() {
			r.CreatedAt = domain.Timestamp{Time: s.now()}
		}
		s.rooms[r.ID] = r
		out = append(out, r)
	}
	return out
}

// Room returns the stored room with id.
func (s *Server) Room(id int) (domain.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Fail makes every call to route answer with status until Recover.
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = status
}

// Recover clears a failure set by Fail.
func (s *Server) Recover(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

// SetListPayload replaces the GET /rooms body verbatim.
func (s *Server) SetListPayload(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listPayload = []byte(raw)
}

// TempImages lists the references currently held in the temp namespace.
func (s *Server) TempImages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.temp))
	for k := range s.temp {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PDFCalls counts generate-pdf calls for a room.
func (s *Server) PDFCalls(id int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pdfCalls[id]
}

// Requests returns recorded calls matching method and path ("" matches any).
func (s *Server) Requests(method, path string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if (method == "" || r.Method == method) && (path == "" || r.Path == path) {
			out = append(out, r)
		}
	}
	return out
}

// LastRequest returns the most recent call matching method and path.
func (s *Server) LastRequest(method, path string) (Request, bool) {
	reqs := s.Requests(method, path)
	if len(reqs) == 0 {
		return Request{}, false
	}
	return reqs[len(reqs)-1], true
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) guard(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status, failing := s.failures[route]
		s.mu.Unlock()
		if failing {
			writeDetail(w, status, "injected failure")
			return
		}
		h(w, r)
	}
}

func (s *Server) listRooms(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listPayload != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(s.listPayload)
		return
	}
	ids := make([]int, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]domain.Room, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.rooms[id])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	id := roomID(r)
	s.mu.Lock()
	room, ok := s.rooms[id]
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Room not found")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name            *string `json:"name"`
		Description     *string `json:"description"`
		Capacity        *int    `json:"capacity"`
		ImageURL        *string `json:"image_url"`
		FacilitiesCount *int    `json:"facilities_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if in.Name == nil || in.Description == nil || in.Capacity == nil || in.FacilitiesCount == nil {
		writeDetail(w, http.StatusUnprocessableEntity, "missing required field")
		return
	}

	s.mu.Lock()
	room := domain.Room{
		ID:              s.nextID,
		Name:            *in.Name,
		Description:     *in.Description,
		Capacity:        *in.Capacity,
		FacilitiesCount: *in.FacilitiesCount,
		CreatedAt:       domain.Timestamp{Time: s.now()},
	}
	if in.ImageURL != nil {
		room.ImageURL = *in.ImageURL
	}
	s.nextID++
	s.rooms[room.ID] = room
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) updateRoom(w http.ResponseWriter, r *http.Request) {
	id := roomID(r)
	var patch domain.RoomFields
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	room, ok := s.rooms[id]
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Room not found")
		return
	}
	room = patch.Apply(room)
	room.UpdatedAt = domain.Timestamp{Time: s.now()}
	s.rooms[id] = room
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, room)
}

func (s *Server) deleteRoom(w http.ResponseWriter, r *http.Request) {
	id := roomID(r)
	s.mu.Lock()
	_, ok := s.rooms[id]
	delete(s.rooms, id)
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Room not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) uploadTemp(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("image")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "image field is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "unreadable image")
		return
	}

	ref := TempPrefix + uuid.NewString() + "_" + header.Filename
	s.mu.Lock()
	s.temp[ref] = data
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"tempImageUrl": ref})
}

func (s *Server) finalizeImage(w http.ResponseWriter, r *http.Request) {
	id := roomID(r)
	var in struct {
		TempImageURL string `json:"tempImageUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Room not found")
		return
	}
	data, ok := s.temp[in.TempImageURL]
	if !ok {
		writeDetail(w, http.StatusBadRequest, "temporary image not found")
		return
	}
	name := strings.TrimPrefix(in.TempImageURL, TempPrefix)
	if i := strings.IndexByte(name, '_'); i >= 0 {
		name = name[i+1:]
	}
	ref := fmt.Sprintf("%s%d_%s", PermanentPrefix, id, name)
	delete(s.temp, in.TempImageURL)
	s.permanent[ref] = data
	room.ImageURL = ref
	room.UpdatedAt = domain.Timestamp{Time: s.now()}
	s.rooms[id] = room

	writeJSON(w, http.StatusOK, map[string]string{"imageUrl": ref})
}

func (s *Server) generatePDF(w http.ResponseWriter, r *http.Request) {
	id := roomID(r)
	s.mu.Lock()
	_, ok := s.rooms[id]
	if ok {
		s.pdfCalls[id]++
	}
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Room not found")
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "application/pdf") {
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(PDFBody)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func roomID(r *http.Request) int {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
