// Package auth resolves the session: it turns a persisted token into an
// authenticated profile, or settles on anonymous.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/eventify/internal/domain"
	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
	"github.com/felixgeelhaar/eventify/internal/log"
	"github.com/felixgeelhaar/eventify/internal/metrics"
	"github.com/felixgeelhaar/eventify/internal/session"
)

// Status is the resolver state.
type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Settled reports whether resolution has finished.
func (s Status) Settled() bool {
	return s == StatusAuthenticated || s == StatusAnonymous
}

// State is what the resolver exposes to views.
type State struct {
	Status Status
	Token  string
	User   *domain.Profile
}

// IsAuthenticated reports whether a verified profile is held.
func (s State) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}

// Role returns the viewer's role, or "" when anonymous.
func (s State) Role() domain.Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// ProfileFetcher retrieves the profile that owns token.
type ProfileFetcher interface {
	Me(ctx context.Context, token string) (*domain.Profile, error)
}

// Authenticator performs the credential exchanges.
type Authenticator interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error)
	Signup(ctx context.Context, req domain.SignupRequest) (*domain.AuthResult, error)
}

type resolution struct {
	done chan struct{}
	once sync.Once
}

func (r *resolution) finish() {
	r.once.Do(func() { close(r.done) })
}

// Resolver is the session state machine:
//
//	Uninitialized -> Loading -> Authenticated | Anonymous
//
// Login and Logout move to a settled state from anywhere and invalidate
// any resolution still in flight.
type Resolver struct {
	mu        sync.Mutex
	store     *session.Store
	fetcher   ProfileFetcher
	status    Status
	gen       uint64
	inflight  *resolution
	listeners map[int]func(State)
	nextID    int

	now     func() time.Time
	timeout time.Duration
	logger  *log.Logger
	metrics *metrics.Metrics
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithMetrics records resolutions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithClock replaces the time source used by the expiry pre-check.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithTimeout bounds the profile request.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// NewResolver creates an uninitialized resolver.
func NewResolver(store *session.Store, fetcher ProfileFetcher, opts ...Option) *Resolver {
	r := &Resolver{
		store:     store,
		fetcher:   fetcher,
		listeners: make(map[int]func(State)),
		now:       time.Now,
		timeout:   30 * time.Second,
		logger:    log.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

// Resolve settles the session and returns the settled state. The first
// call starts resolution; later calls return the settled state or join the
// resolution in flight. Failures never surface: they end in Anonymous.
// If ctx ends first the current (possibly Loading) state is returned and
// the resolution continues in the background.
func (r *Resolver) Resolve(ctx context.Context) State {
	r.mu.Lock()
	switch r.status {
	case StatusAuthenticated, StatusAnonymous:
		st := r.stateLocked()
		r.mu.Unlock()
		return st
	case StatusLoading:
		res := r.inflight
		r.mu.Unlock()
		return r.wait(ctx, res)
	}

	token, ok := r.store.Token()
	if !ok {
		r.status = StatusAnonymous
		st := r.stateLocked()
		r.mu.Unlock()
		r.metrics.AuthResolved(st.Status.String(), "no_token")
		r.notify(st)
		return st
	}

	if ExpiredLocally(token, r.now()) {
		r.clearStoreLocked()
		r.status = StatusAnonymous
		st := r.stateLocked()
		r.mu.Unlock()
		r.logger.Debug("stored token expired, skipping verification")
		r.metrics.AuthResolved(st.Status.String(), "expired_locally")
		r.notify(st)
		return st
	}

	r.status = StatusLoading
	gen := r.gen
	res := &resolution{done: make(chan struct{})}
	r.inflight = res
	loading := r.stateLocked()
	r.mu.Unlock()
	r.notify(loading)

	go r.verify(context.WithoutCancel(ctx), gen, token, res)
	return r.wait(ctx, res)
}

func (r *Resolver) wait(ctx context.Context, res *resolution) State {
	if res != nil {
		select {
		case <-res.done:
		case <-ctx.Done():
		}
	}
	return r.State()
}

func (r *Resolver) verify(ctx context.Context, gen uint64, token string, res *resolution) {
	defer res.finish()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	profile, err := r.fetcher.Me(ctx, token)
	if err == nil && profile != nil {
		err = profile.Validate()
	} else if err == nil {
		err = apperrors.New(apperrors.ErrCodeUnexpected, "empty profile response")
	}

	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		r.logger.Debug("discarding superseded session resolution")
		return
	}
	if err != nil {
		r.clearStoreLocked()
		r.status = StatusAnonymous
		r.logger.WithError(err).Info("session token rejected, continuing anonymously")
	} else {
		if serr := r.store.SetUser(profile); serr != nil {
			r.logger.WithError(serr).Warn("failed to store profile")
		}
		r.status = StatusAuthenticated
	}
	r.inflight = nil
	st := r.stateLocked()
	r.mu.Unlock()

	r.metrics.AuthResolved(st.Status.String(), "network")
	r.notify(st)
}

// Login records an explicit credential exchange: the profile is trusted
// without re-verification.
func (r *Resolver) Login(token string, profile *domain.Profile) error {
	if token == "" || profile == nil {
		return apperrors.New(apperrors.ErrCodeInvalidCredentials, "login produced no session")
	}

	r.mu.Lock()
	r.supersedeLocked()
	err := r.store.SetToken(token)
	if uerr := r.store.SetUser(profile); err == nil {
		err = uerr
	}
	r.status = StatusAuthenticated
	st := r.stateLocked()
	r.mu.Unlock()

	r.notify(st)
	return err
}

// Logout clears the session. Calling it when already anonymous with an
// empty store is a no-op.
func (r *Resolver) Logout() error {
	r.mu.Lock()
	_, hadToken := r.store.Token()
	_, hadUser := r.store.User()
	changed := r.status != StatusAnonymous || hadToken || hadUser
	r.supersedeLocked()
	var err error
	if changed {
		err = r.store.Clear()
	}
	r.status = StatusAnonymous
	st := r.stateLocked()
	r.mu.Unlock()

	if changed {
		r.notify(st)
	}
	return err
}

// Revalidate forgets the settled state and resolves again.
func (r *Resolver) Revalidate(ctx context.Context) State {
	r.mu.Lock()
	r.supersedeLocked()
	r.status = StatusUninitialized
	r.mu.Unlock()
	return r.Resolve(ctx)
}

// HandleError logs the viewer out when err shows the backend rejected the
// credential mid-session. It reports whether it did.
func (r *Resolver) HandleError(err error) bool {
	if !apperrors.IsAuthExpired(err) {
		return false
	}
	if lerr := r.Logout(); lerr != nil {
		r.logger.WithError(lerr).Warn("failed to clear expired session")
	}
	return true
}

// SignIn exchanges credentials for a session and logs in.
func (r *Resolver) SignIn(ctx context.Context, authn Authenticator, creds domain.Credentials) (State, error) {
	if creds.Email == "" || creds.Password == "" {
		return r.State(), apperrors.NewValidationError("", "email and password are required")
	}
	res, err := authn.Login(ctx, creds)
	if err != nil {
		if apperrors.IsAuthExpired(err) {
			err = apperrors.Wrap(apperrors.ErrCodeInvalidCredentials, "invalid email or password", err).
				WithSuggestion("Check your credentials or run 'eventify auth signup'")
		}
		return r.State(), err
	}
	return r.establish(res)
}

// SignUp creates an account and logs in with the returned token.
func (r *Resolver) SignUp(ctx context.Context, authn Authenticator, req domain.SignupRequest) (State, error) {
	if err := domain.ValidateContact(req.Name, req.Email); err != nil {
		return r.State(), apperrors.NewValidationError("", err.Error())
	}
	if len(req.Password) < 6 {
		return r.State(), apperrors.NewValidationError("password", "must be at least 6 characters")
	}
	res, err := authn.Signup(ctx, req)
	if err != nil {
		return r.State(), err
	}
	return r.establish(res)
}

func (r *Resolver) establish(res *domain.AuthResult) (State, error) {
	if res == nil {
		return r.State(), apperrors.New(apperrors.ErrCodeUnexpected, "empty login response")
	}
	if err := res.User.Validate(); err != nil {
		return r.State(), apperrors.Wrap(apperrors.ErrCodeUnexpected, "login returned an invalid profile", err)
	}
	user := res.User
	if err := r.Login(res.Token, &user); err != nil {
		return r.State(), err
	}
	return r.State(), nil
}

// Subscribe registers fn for every transition.
func (r *Resolver) Subscribe(fn func(State)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.listeners, id)
			r.mu.Unlock()
		})
	}
}

func (r *Resolver) supersedeLocked() {
	r.gen++
	if r.inflight != nil {
		r.inflight.finish()
		r.inflight = nil
	}
}

func (r *Resolver) clearStoreLocked() {
	if err := r.store.Clear(); err != nil {
		r.logger.WithError(err).Warn("failed to clear session")
	}
}

func (r *Resolver) stateLocked() State {
	snap := r.store.Snapshot()
	st := State{Status: r.status, Token: snap.Token}
	if r.status == StatusAuthenticated {
		st.User = snap.User
	}
	return st
}

func (r *Resolver) notify(st State) {
	r.mu.Lock()
	fns := make([]func(State), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
