// Package app implements the Eventify use cases on top of the session,
// auth, cache and mutation layers.
package app

import (
	"context"
	"net/url"

	"github.com/felixgeelhaar/eventify/internal/auth"
	"github.com/felixgeelhaar/eventify/internal/authz"
	"github.com/felixgeelhaar/eventify/internal/domain"
	"github.com/felixgeelhaar/eventify/internal/log"
	"github.com/felixgeelhaar/eventify/internal/mutation"
	"github.com/felixgeelhaar/eventify/internal/query"
)

// API is the subset of the REST client the use cases need.
type API interface {
	auth.ProfileFetcher
	auth.Authenticator

	PublicEvents(ctx context.Context) ([]domain.Event, error)
	Events(ctx context.Context) ([]domain.Event, error)
	Event(ctx context.Context, id domain.ID) (*domain.Event, error)
	CreateEvent(ctx context.Context, in domain.EventInput) (*domain.Event, error)
	UpdateEvent(ctx context.Context, id domain.ID, in domain.EventInput) (*domain.Event, error)
	DeleteEvent(ctx context.Context, id domain.ID) error

	AllAttendees(ctx context.Context) ([]domain.Attendee, error)
	AttendeesByEvent(ctx context.Context, eventID domain.ID) ([]domain.Attendee, error)
	Book(ctx context.Context, req domain.BookingRequest) (*domain.Attendee, error)
	CancelBooking(ctx context.Context, eventID domain.ID) error
	CreateAttendee(ctx context.Context, in domain.AttendeeInput) (*domain.Attendee, error)
	UpdateAttendee(ctx context.Context, id domain.ID, in domain.AttendeeInput) (*domain.Attendee, error)
	DeleteAttendee(ctx context.Context, id domain.ID) error
}

// Deps are the collaborators of a Service.
type Deps struct {
	API         API
	Resolver    *auth.Resolver
	Cache    *query.Cache
	Logger   *log.Logger

	// Mutations configure the coordinator the Service builds. Its failure
	// hook is always the Service's own session downgrade.
	Mutations []mutation.Option

	// BaseURL qualifies exported calendar UIDs.
	BaseURL string
}

// Service runs Eventify use cases.
type Service struct {
	api      API
	resolver *auth.Resolver
	cache    *query.Cache
	coord    *mutation.Coordinator
	logger   *log.Logger
	host     string
}

// New creates a Service. The cache is created when omitted.
func New(d Deps) *Service {
	s := &Service{
		api:      d.API,
		resolver: d.Resolver,
		cache:    d.Cache,
		logger:   d.Logger,
	}
	if s.logger == nil {
		s.logger = log.DefaultLogger()
	}
	if s.cache == nil {
		s.cache = query.New(query.WithLogger(s.logger))
	}
	opts := append([]mutation.Option{mutation.WithLogger(s.logger)}, d.Mutations...)
	opts = append(opts, mutation.WithFailureHook(func(err error) { s.HandleAuthError(err) }))
	s.coord = mutation.NewCoordinator(s.cache, opts...)
	if u, err := url.Parse(d.BaseURL); err == nil && u.Host != "" {
		s.host = u.Hostname()
	}
	return s
}

// Cache returns the query cache.
func (s *Service) Cache() *query.Cache { return s.cache }

// Coordinator returns the mutation coordinator.
func (s *Service) Coordinator() *mutation.Coordinator { return s.coord }

// Resolver returns the auth resolver.
func (s *Service) Resolver() *auth.Resolver { return s.resolver }

// Resolve settles the session.
func (s *Service) Resolve(ctx context.Context) auth.State {
	return s.resolver.Resolve(ctx)
}

// State returns the current session state.
func (s *Service) State() auth.State {
	return s.resolver.State()
}

// Login exchanges credentials and starts a session. Cached data of the
// previous viewer is dropped.
func (s *Service) Login(ctx context.Context, creds domain.Credentials) (auth.State, error) {
	st, err := s.resolver.SignIn(ctx, s.api, creds)
	if err != nil {
		return st, err
	}
	s.cache.Reset()
	return st, nil
}

// Signup creates an account and starts a session for it.
func (s *Service) Signup(ctx context.Context, req domain.SignupRequest) (auth.State, error) {
	st, err := s.resolver.SignUp(ctx, s.api, req)
	if err != nil {
		return st, err
	}
	s.cache.Reset()
	return st, nil
}

// Logout ends the session. Calling it twice is harmless.
func (s *Service) Logout() error {
	if err := s.resolver.Logout(); err != nil {
		return err
	}
	s.cache.Reset()
	return nil
}

// guard resolves the session and checks req.
func (s *Service) guard(ctx context.Context, req authz.Requirement) (auth.State, error) {
	st := s.resolver.Resolve(ctx)
	if err := authz.Guard(st, req); err != nil {
		return st, err
	}
	return st, nil
}

// HandleAuthError downgrades the session to anonymous when err means the
// server rejected the credential. Cached data of the previous viewer is
// dropped with it. It reports whether a downgrade happened.
func (s *Service) HandleAuthError(err error) bool {
	if !s.resolver.HandleError(err) {
		return false
	}
	s.cache.Reset()
	return true
}

// observe downgrades the session when the server rejected the credential.
func (s *Service) observe(err error) error {
	if err != nil {
		s.HandleAuthError(err)
	}
	return err
}
