// Package mockapi is an in-memory implementation of the Eventify REST API
// used by tests and by the mock-server command for local development.
package mockapi

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/felixgeelhaar/eventify/internal/auth"
	"github.com/felixgeelhaar/eventify/internal/domain"
	"github.com/felixgeelhaar/eventify/internal/log"
	"github.com/felixgeelhaar/eventify/internal/metrics"
)

// Issuer is the iss claim of tokens minted by the mock API.
const Issuer = "eventify-mock"

type user struct {
	profile domain.Profile
	hash    []byte
}

type fault struct {
	status  int
	message string
}

// Server holds the mock API state.
type Server struct {
	mu         sync.Mutex
	users      map[string]*user
	events     map[domain.ID]*domain.Event
	attendees  []domain.Attendee
	nextEvent  int
	faults     map[string][]fault
	requests   map[string]int
	issuer     *auth.TokenIssuer
	signingKey []byte
	tokenTTL   time.Duration
	bcryptCost int
	latency    time.Duration
	now        func() time.Time
	logger     *log.Logger
	metrics    *metrics.Metrics
	router     chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithSigningKey sets the HMAC key for issued tokens.
func WithSigningKey(key []byte) Option {
	return func(s *Server) { s.signingKey = key }
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) { s.tokenTTL = ttl }
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.bcryptCost = cost }
}

// WithLatency delays every response.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLogger sets the access logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records served requests.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates an empty mock API.
func New(opts ...Option) *Server {
	s := &Server{
		users:      make(map[string]*user),
		events:     make(map[domain.ID]*domain.Event),
		faults:     make(map[string][]fault),
		requests:   make(map[string]int),
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		logger:     log.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.signingKey) == 0 {
		s.signingKey = []byte(uuid.NewString())
	}
	s.issuer = auth.NewTokenIssuer(s.signingKey, Issuer).WithClock(s.now)
	if s.tokenTTL > 0 {
		s.issuer.WithTTL(s.tokenTTL)
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Issuer returns the token issuer, e.g. to mint tokens in tests.
func (s *Server) Issuer() *auth.TokenIssuer {
	return s.issuer
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(s.observe)
	r.Use(s.authenticate)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})

	s.handle(r, http.MethodPost, "/api/auth/login", s.login)
	s.handle(r, http.MethodPost, "/api/auth/signup", s.signup)
	s.handle(r, http.MethodGet, "/api/auth/me", s.requireUser(s.me))

	s.handle(r, http.MethodGet, "/api/events/public", s.publicEvents)
	s.handle(r, http.MethodGet, "/api/events", s.requireAdmin(s.listEvents))
	s.handle(r, http.MethodPost, "/api/events", s.requireAdmin(s.createEvent))
	s.handle(r, http.MethodGet, "/api/events/{id}", s.getEvent)
	s.handle(r, http.MethodPut, "/api/events/{id}", s.requireAdmin(s.updateEvent))
	s.handle(r, http.MethodDelete, "/api/events/{id}", s.requireAdmin(s.deleteEvent))

	s.handle(r, http.MethodGet, "/api/attendees", s.requireAdmin(s.listAttendees))
	s.handle(r, http.MethodPost, "/api/attendees", s.requireAdmin(s.createAttendee))
	s.handle(r, http.MethodPost, "/api/attendees/book", s.book)
	s.handle(r, http.MethodGet, "/api/attendees/event/{eventId}", s.requireAdmin(s.eventAttendees))
	s.handle(r, http.MethodDelete, "/api/attendees/cancel/{eventId}", s.requireUser(s.cancelBooking))
	s.handle(r, http.MethodPut, "/api/attendees/{id}", s.requireAdmin(s.updateAttendee))
	s.handle(r, http.MethodDelete, "/api/attendees/{id}", s.requireAdmin(s.deleteAttendee))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

func routeKey(method, pattern string) string {
	return method + " " + pattern
}

// handle registers h and wraps it with request counting, latency and
// injected faults.
func (s *Server) handle(r chi.Router, method, pattern string, h http.HandlerFunc) {
	key := routeKey(method, pattern)
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		s.requests[key]++
		var injected *fault
		if queue := s.faults[key]; len(queue) > 0 {
			injected = &queue[0]
			s.faults[key] = queue[1:]
		}
		latency := s.latency
		s.mu.Unlock()

		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-req.Context().Done():
				return
			}
		}
		if injected != nil {
			writeError(w, injected.status, injected.message)
			return
		}
		h(w, req)
	}))
}

// FailNext makes the next request to method and pattern fail with status
// and an {"error": message} body.
func (s *Server) FailNext(method, pattern string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := routeKey(method, pattern)
	s.faults[key] = append(s.faults[key], fault{status: status, message: message})
}

// Requests returns how many requests reached method and pattern.
func (s *Server) Requests(method, pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[routeKey(method, pattern)]
}

// AddUser registers an account.
func (s *Server) AddUser(name, email, password string, role domain.Role) (domain.Profile, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return domain.Profile{}, err
	}
	p := domain.Profile{
		ID:    domain.ID(uuid.NewString()),
		Name:  name,
		Email: email,
		Role:  role,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[normalizeEmail(email)]; exists {
		return domain.Profile{}, errEmailTaken
	}
	s.users[normalizeEmail(email)] = &user{profile: p, hash: hash}
	return p, nil
}

// AddEvent stores an event and returns it with its assigned id.
func (s *Server) AddEvent(in domain.EventInput) domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addEventLocked(in)
}

func (s *Server) addEventLocked(in domain.EventInput) domain.Event {
	s.nextEvent++
	ev := &domain.Event{
		ID:          domain.ID(strconv.Itoa(s.nextEvent)),
		Title:       in.Title,
		Description: in.Description,
		Date:        in.Date,
		Location:    in.Location,
		Capacity:    in.Capacity,
	}
	s.events[ev.ID] = ev
	return s.viewLocked(ev, nil, false)
}

// AddAttendee books a seat directly, bypassing capacity checks.
func (s *Server) AddAttendee(eventID domain.ID, name, email string, userID *domain.ID) domain.Attendee {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAttendeeLocked(eventID, name, email, userID)
}

func (s *Server) addAttendeeLocked(eventID domain.ID, name, email string, userID *domain.ID) domain.Attendee {
	a := domain.Attendee{
		ID:        domain.ID(uuid.NewString()),
		EventID:   eventID,
		UserID:    userID,
		Name:      name,
		Email:     email,
		CreatedAt: s.now().UTC(),
	}
	s.attendees = append(s.attendees, a)
	return a
}

func (s *Server) attendeesOfLocked(eventID domain.ID) []domain.Attendee {
	out := []domain.Attendee{}
	for _, a := range s.attendees {
		if a.EventID == eventID {
			out = append(out, a)
		}
	}
	return out
}

func (s *Server) sortedEventsLocked() []*domain.Event {
	out := make([]*domain.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return idLess(out[i].ID, out[j].ID)
	})
	return out
}

func idLess(a, b domain.ID) bool {
	ai, aerr := strconv.Atoi(string(a))
	bi, berr := strconv.Atoi(string(b))
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}

// viewLocked renders an event with derived fields for viewer.
func (s *Server) viewLocked(ev *domain.Event, viewer *auth.Claims, withAttendees bool) domain.Event {
	attendees := s.attendeesOfLocked(ev.ID)
	out := *ev
	out.AttendeeCount = len(attendees)
	out.Attendees = nil
	if withAttendees {
		out.Attendees = attendees
	}
	if viewer != nil {
		for _, a := range attendees {
			if bookedBy(a, viewer) {
				out.UserHasBooked = true
				break
			}
		}
	}
	out.Normalize()
	return out
}

func bookedBy(a domain.Attendee, viewer *auth.Claims) bool {
	if a.UserID != nil && a.UserID.String() == viewer.Subject {
		return true
	}
	return viewer.Email != "" && normalizeEmail(a.Email) == normalizeEmail(viewer.Email)
}
