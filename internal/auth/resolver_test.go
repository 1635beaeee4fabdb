package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/eventify/internal/domain"
	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
	"github.com/felixgeelhaar/eventify/internal/log"
	"github.com/felixgeelhaar/eventify/internal/session"
)

type fakeFetcher struct {
	calls atomic.Int32
	fn    func(ctx context.Context, token string) (*domain.Profile, error)
}

func (f *fakeFetcher) Me(ctx context.Context, token string) (*domain.Profile, error) {
	f.calls.Add(1)
	return f.fn(ctx, token)
}

type fakeAuthenticator struct {
	login  func(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error)
	signup func(ctx context.Context, req domain.SignupRequest) (*domain.AuthResult, error)
}

func (f *fakeAuthenticator) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
	return f.login(ctx, creds)
}

func (f *fakeAuthenticator) Signup(ctx context.Context, req domain.SignupRequest) (*domain.AuthResult, error) {
	return f.signup(ctx, req)
}

var (
	ann   = domain.Profile{ID: "1", Name: "Ann", Email: "ann@example.com", Role: domain.RoleAttendee}
	admin = domain.Profile{ID: "2", Name: "Ada", Email: "ada@example.com", Role: domain.RoleAdmin}
)

func profileFetcher(p domain.Profile) *fakeFetcher {
	return &fakeFetcher{fn: func(context.Context, string) (*domain.Profile, error) {
		cp := p
		return &cp, nil
	}}
}

func newResolver(t *testing.T, token string, fetcher ProfileFetcher, opts ...Option) (*Resolver, *session.Store) {
	t.Helper()
	store := session.New(nil)
	if token != "" {
		require.NoError(t, store.SetToken(token))
	}
	opts = append([]Option{WithLogger(log.Discard())}, opts...)
	return NewResolver(store, fetcher, opts...), store
}

func TestResolve_NoTokenIsAnonymousWithoutNetwork(t *testing.T) {
	fetcher := profileFetcher(ann)
	r, _ := newResolver(t, "", fetcher)

	assert.Equal(t, StatusUninitialized, r.State().Status)
	st := r.Resolve(context.Background())

	assert.Equal(t, StatusAnonymous, st.Status)
	assert.Zero(t, fetcher.calls.Load())
}

func TestResolve_ValidToken(t *testing.T) {
	fetcher := profileFetcher(ann)
	r, store := newResolver(t, "tok-1", fetcher)

	st := r.Resolve(context.Background())

	require.True(t, st.IsAuthenticated())
	assert.Equal(t, ann, *st.User)
	assert.Equal(t, domain.RoleAttendee, st.Role())
	user, ok := store.User()
	require.True(t, ok)
	assert.Equal(t, ann.ID, user.ID)

	// Settled: no second request.
	r.Resolve(context.Background())
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestResolve_FailureClearsToken(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"rejected", apperrors.New(apperrors.ErrCodeAuthExpired, "Invalid token")},
		{"network", apperrors.NewNetworkError(errors.New("connection refused"))},
		{"server", apperrors.New(apperrors.ErrCodeUnexpected, "boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &fakeFetcher{fn: func(context.Context, string) (*domain.Profile, error) {
				return nil, tt.err
			}}
			r, store := newResolver(t, "tok-1", fetcher)

			st := r.Resolve(context.Background())

			assert.Equal(t, StatusAnonymous, st.Status)
			assert.Nil(t, st.User)
			_, ok := store.Token()
			assert.False(t, ok, "token must be cleared")
		})
	}
}

func TestResolve_InvalidRoleIsAnonymous(t *testing.T) {
	fetcher := profileFetcher(domain.Profile{ID: "3", Role: "superuser"})
	r, _ := newResolver(t, "tok-1", fetcher)

	assert.Equal(t, StatusAnonymous, r.Resolve(context.Background()).Status)
}

func TestResolve_LocallyExpiredTokenSkipsNetwork(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	issuer := NewTokenIssuer([]byte("k"), "test").WithTTL(time.Hour).WithClock(func() time.Time { return past })
	token, err := issuer.Issue(ann)
	require.NoError(t, err)

	fetcher := profileFetcher(ann)
	r, store := newResolver(t, token, fetcher)

	st := r.Resolve(context.Background())
	assert.Equal(t, StatusAnonymous, st.Status)
	assert.Zero(t, fetcher.calls.Load())
	_, ok := store.Token()
	assert.False(t, ok)
}

func TestResolve_ConcurrentCallersShareResolution(t *testing.T) {
	release := make(chan struct{})
	fetcher := &fakeFetcher{fn: func(context.Context, string) (*domain.Profile, error) {
		<-release
		cp := ann
		return &cp, nil
	}}
	r, _ := newResolver(t, "tok-1", fetcher)

	var wg sync.WaitGroup
	results := make([]State, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return r.State().Status == StatusLoading }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
	for _, st := range results {
		assert.Equal(t, StatusAuthenticated, st.Status)
	}
}

func TestResolve_LoginSupersedesInFlightResolution(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fetcher := &fakeFetcher{fn: func(context.Context, string) (*domain.Profile, error) {
		close(started)
		<-release
		return nil, apperrors.New(apperrors.ErrCodeAuthExpired, "stale token")
	}}
	r, store := newResolver(t, "stale", fetcher)

	done := make(chan State)
	go func() { done <- r.Resolve(context.Background()) }()
	<-started

	require.NoError(t, r.Login("fresh", &admin))
	st := <-done
	assert.Equal(t, StatusAuthenticated, st.Status)

	close(release)
	require.Never(t, func() bool {
		return r.State().Status != StatusAuthenticated
	}, 100*time.Millisecond, 5*time.Millisecond)

	token, ok := store.Token()
	require.True(t, ok)
	assert.Equal(t, "fresh", token)
	assert.Equal(t, domain.RoleAdmin, r.State().Role())
}

func TestResolve_CallerCancellationDoesNotAbortResolution(t *testing.T) {
	release := make(chan struct{})
	fetcher := &fakeFetcher{fn: func(ctx context.Context, _ string) (*domain.Profile, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		cp := ann
		return &cp, nil
	}}
	r, _ := newResolver(t, "tok-1", fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := r.Resolve(ctx)
	assert.Equal(t, StatusLoading, st.Status)

	close(release)
	require.Eventually(t, func() bool { return r.State().IsAuthenticated() }, time.Second, time.Millisecond)
}

func TestLogout_TwiceIsNoop(t *testing.T) {
	r, store := newResolver(t, "", profileFetcher(ann))
	require.NoError(t, r.Login("tok", &ann))

	var notifications atomic.Int32
	r.Subscribe(func(State) { notifications.Add(1) })

	require.NoError(t, r.Logout())
	require.NoError(t, r.Logout())

	assert.Equal(t, int32(1), notifications.Load())
	assert.Equal(t, StatusAnonymous, r.State().Status)
	_, ok := store.Token()
	assert.False(t, ok)
}

func TestLogin_RejectsEmptySession(t *testing.T) {
	r, _ := newResolver(t, "", profileFetcher(ann))
	err := r.Login("", &ann)
	assert.Equal(t, apperrors.ErrCodeInvalidCredentials, apperrors.CodeOf(err))
}

func TestSubscribe_ReceivesTransitions(t *testing.T) {
	r, _ := newResolver(t, "tok-1", profileFetcher(ann))

	var mu sync.Mutex
	var seen []Status
	unsubscribe := r.Subscribe(func(st State) {
		mu.Lock()
		seen = append(seen, st.Status)
		mu.Unlock()
	})
	defer unsubscribe()

	r.Resolve(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusLoading, StatusAuthenticated}, seen)
}

func TestHandleError(t *testing.T) {
	r, _ := newResolver(t, "", profileFetcher(ann))
	require.NoError(t, r.Login("tok", &ann))

	assert.False(t, r.HandleError(errors.New("other")))
	assert.True(t, r.State().IsAuthenticated())

	assert.True(t, r.HandleError(apperrors.New(apperrors.ErrCodeAuthExpired, "expired")))
	assert.Equal(t, StatusAnonymous, r.State().Status)
}

func TestRevalidate(t *testing.T) {
	fetcher := profileFetcher(ann)
	r, _ := newResolver(t, "tok-1", fetcher)

	r.Resolve(context.Background())
	st := r.Revalidate(context.Background())

	assert.True(t, st.IsAuthenticated())
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestSignIn(t *testing.T) {
	authn := &fakeAuthenticator{
		login: func(_ context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
			if creds.Password != "secret" {
				return nil, apperrors.New(apperrors.ErrCodeAuthExpired, "Invalid credentials")
			}
			return &domain.AuthResult{Token: "tok", User: admin}, nil
		},
	}

	t.Run("success", func(t *testing.T) {
		r, store := newResolver(t, "", profileFetcher(admin))
		st, err := r.SignIn(context.Background(), authn, domain.Credentials{Email: admin.Email, Password: "secret"})
		require.NoError(t, err)
		assert.True(t, st.IsAuthenticated())
		token, _ := store.Token()
		assert.Equal(t, "tok", token)
	})

	t.Run("bad password", func(t *testing.T) {
		r, _ := newResolver(t, "", profileFetcher(admin))
		_, err := r.SignIn(context.Background(), authn, domain.Credentials{Email: admin.Email, Password: "nope"})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidCredentials, apperrors.CodeOf(err))
		assert.NotEqual(t, StatusAuthenticated, r.State().Status)
	})

	t.Run("missing fields", func(t *testing.T) {
		r, _ := newResolver(t, "", profileFetcher(admin))
		_, err := r.SignIn(context.Background(), authn, domain.Credentials{Email: admin.Email})
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestSignUp(t *testing.T) {
	authn := &fakeAuthenticator{
		signup: func(_ context.Context, req domain.SignupRequest) (*domain.AuthResult, error) {
			return &domain.AuthResult{Token: "new", User: domain.Profile{ID: "9", Name: req.Name, Email: req.Email, Role: domain.RoleAttendee}}, nil
		},
	}
	r, _ := newResolver(t, "", profileFetcher(ann))

	_, err := r.SignUp(context.Background(), authn, domain.SignupRequest{Name: "Cy", Email: "cy@example.com", Password: "123"})
	assert.True(t, apperrors.IsValidation(err))

	st, err := r.SignUp(context.Background(), authn, domain.SignupRequest{Name: "Cy", Email: "cy@example.com", Password: "123456"})
	require.NoError(t, err)
	assert.Equal(t, "Cy", st.User.Name)
}
