package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/felixgeelhaar/eventify/internal/config"
	"github.com/felixgeelhaar/eventify/internal/domain"
	"github.com/felixgeelhaar/eventify/internal/exitcode"
	"github.com/felixgeelhaar/eventify/internal/log"
	"github.com/felixgeelhaar/eventify/internal/metrics"
	"github.com/felixgeelhaar/eventify/internal/mockapi"
	"github.com/felixgeelhaar/eventify/internal/session"
	"github.com/felixgeelhaar/eventify/internal/ux"
)

// syncBuffer is written by a command while the test reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// isolate points the config and session files at a temp dir and clears
// overrides from the developer's environment.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("EVENTIFY_HOME", home)
	for _, k := range []string{
		"EVENTIFY_API_URL", "EVENTIFY_SESSION_BACKEND", "EVENTIFY_SESSION_PATH",
		"EVENTIFY_SESSION_PASSPHRASE", "EVENTIFY_LOG_FILE", "EVENTIFY_OUTPUT_FORMAT",
		"EVENTIFY_METRICS_ADDR",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("EVENTIFY_LOG_LEVEL", "error")
	return home
}

type result struct {
	out string
	err string
}

func execute(t *testing.T, ctx context.Context, stdin string, args ...string) (result, error) {
	t.Helper()
	var out, errOut syncBuffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	defer func() {
		resetFlags(rootCmd)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		log.SetDefaultLogger(log.Discard())
	}()

	err := ExecuteContext(ctx)
	return result{out: out.String(), err: errOut.String()}, err
}

func run(t *testing.T, stdin string, args ...string) (result, error) {
	t.Helper()
	return execute(t, context.Background(), stdin, args...)
}

// withAPI starts a seeded mock API and points the client at it.
func withAPI(t *testing.T) *mockapi.Server {
	t.Helper()
	isolate(t)
	mock := mockapi.New(mockapi.WithBcryptCost(bcrypt.MinCost), mockapi.WithLogger(log.Discard()))
	require.NoError(t, mock.Seed())
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)
	t.Setenv("EVENTIFY_API_URL", srv.URL)
	return mock
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

func login(t *testing.T, email, password string) {
	t.Helper()
	_, err := run(t, password+"\n", "auth", "login", "--email", email)
	require.NoError(t, err)
}

func TestVersion(t *testing.T) {
	isolate(t)

	res, err := run(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.out, "eventify "))

	res, err = run(t, "", "version", "--json")
	require.NoError(t, err)
	info := decode[map[string]string](t, res.out)
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "go_version")
}

func TestConfig_SetGetPath(t *testing.T) {
	home := isolate(t)

	res, err := run(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.yaml"), strings.TrimSpace(res.out))

	res, err = run(t, "", "config", "set", "api.url", "http://events.example.test:9000")
	require.NoError(t, err)
	assert.Contains(t, res.err, "✓ Set api.url = http://events.example.test:9000")

	res, err = run(t, "", "config", "get", "api.url")
	require.NoError(t, err)
	assert.Equal(t, "http://events.example.test:9000\n", res.out)

	cfg, err := config.Load(filepath.Join(home, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://events.example.test:9000", cfg.API.URL)
}

func TestConfig_EnvAndFlagsLayerOverFile(t *testing.T) {
	isolate(t)
	_, err := run(t, "", "config", "set", "output.format", "yaml")
	require.NoError(t, err)

	t.Setenv("EVENTIFY_OUTPUT_FORMAT", "text")
	res, err := run(t, "", "config", "get", "output.format")
	require.NoError(t, err)
	assert.Equal(t, "text\n", res.out)

	res, err = run(t, "", "--format", "json", "config", "get", "output.format")
	require.NoError(t, err)
	assert.Equal(t, "json\n", res.out)
}

func TestConfig_SetRejectsBadValues(t *testing.T) {
	isolate(t)

	_, err := run(t, "", "config", "set", "no.such.key", "x")
	assert.Error(t, err)

	_, err = run(t, "", "config", "set", "output.format", "xml")
	require.Error(t, err)
	assert.Equal(t, exitcode.ValidationError, exitcode.DetermineExitCode(err))

	_, err = run(t, "", "config", "set", "api.timeout", "soon")
	assert.Error(t, err)
}

func TestConfig_ViewMasksPassphrase(t *testing.T) {
	isolate(t)
	_, err := run(t, "", "config", "set", "session.passphrase", "hunter2")
	require.NoError(t, err)

	res, err := run(t, "", "-f", "json", "config", "view")
	require.NoError(t, err)
	settings := decode[map[string]string](t, res.out)
	assert.Equal(t, "********", settings["session.passphrase"])
	assert.Equal(t, "file", settings["session.backend"])
	assert.NotContains(t, res.out, "hunter2")
}

func TestEvents_ListPublic(t *testing.T) {
	withAPI(t)

	res, err := run(t, "", "-f", "json", "events", "list")
	require.NoError(t, err)
	events := decode[[]domain.Event](t, res.out)
	require.Len(t, events, 3)
	assert.Equal(t, "Go Meetup", events[0].Title)
	assert.True(t, events[1].IsFull)

	res, err = run(t, "", "events", "list")
	require.NoError(t, err)
	assert.Contains(t, res.out, "Terminal UI Workshop")
}

func TestEvents_Show(t *testing.T) {
	withAPI(t)

	res, err := run(t, "", "events", "show", "2")
	require.NoError(t, err)
	assert.Contains(t, res.out, "Terminal UI Workshop")
	assert.Contains(t, res.out, "Event Full")
}

func TestEvents_BookAsGuest(t *testing.T) {
	withAPI(t)

	res, err := run(t, "", "-f", "json", "events", "book", "1", "--name", "Grace", "--email", "grace@example.com")
	require.NoError(t, err)
	booked := decode[[]domain.Attendee](t, res.out)
	require.Len(t, booked, 1)
	assert.Equal(t, "Grace", booked[0].Name)
	assert.Nil(t, booked[0].UserID)
	assert.Contains(t, res.err, "✓ Event booked successfully")

	res, err = run(t, "", "-f", "json", "events", "list")
	require.NoError(t, err)
	assert.Equal(t, 2, decode[[]domain.Event](t, res.out)[0].AttendeeCount)
}

func TestEvents_BookAsGuestPrompts(t *testing.T) {
	withAPI(t)

	res, err := run(t, "Grace\ngrace@example.com\n", "-f", "json", "events", "book", "3")
	require.NoError(t, err)
	assert.Contains(t, res.err, "Name: ")
	assert.Equal(t, "grace@example.com", decode[[]domain.Attendee](t, res.out)[0].Email)
}

func TestEvents_FullEventRefusedWithoutRequest(t *testing.T) {
	mock := withAPI(t)

	_, err := run(t, "", "events", "book", "2", "--name", "Grace", "--email", "grace@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fully booked")
	assert.Equal(t, exitcode.ConflictError, exitcode.DetermineExitCode(err))
	assert.Zero(t, mock.Requests(http.MethodPost, "/api/attendees/book"))
}

func TestAuth_LoginStatusLogout(t *testing.T) {
	withAPI(t)

	res, err := run(t, "attendee123\n", "-f", "json", "auth", "login", "--email", "ann@eventify.dev")
	require.NoError(t, err)
	view := decode[ux.SessionView](t, res.out)
	assert.Equal(t, "authenticated", view.Status)
	require.NotNil(t, view.User)
	assert.Equal(t, domain.RoleAttendee, view.User.Role)
	assert.Equal(t, "file", view.Source)

	res, err = run(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, res.out, "Logged in as Ann Attendee <ann@eventify.dev>")

	res, err = run(t, "", "-f", "json", "events", "list", "--booked")
	require.NoError(t, err)
	mine := decode[[]domain.Event](t, res.out)
	require.Len(t, mine, 1)
	assert.Equal(t, "Go Meetup", mine[0].Title)

	res, err = run(t, "", "auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, res.err, "Logged out")

	res, err = run(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, res.out, "Not logged in (anonymous)")
}

func TestAuth_WrongPassword(t *testing.T) {
	withAPI(t)

	_, err := run(t, "nope\n", "auth", "login", "--email", "ann@eventify.dev")
	require.Error(t, err)
	assert.Equal(t, exitcode.AuthError, exitcode.DetermineExitCode(err))

	res, err := run(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, res.out, "Not logged in")
}

func TestAuth_Signup(t *testing.T) {
	withAPI(t)

	res, err := run(t, "Grace Hopper\ngrace@example.com\nsecret1\n", "auth", "signup")
	require.NoError(t, err)
	assert.Contains(t, res.err, "Account created")
	assert.Contains(t, res.out, "Logged in as Grace Hopper")
}

func TestEvents_CancelBooking(t *testing.T) {
	withAPI(t)
	login(t, "ann@eventify.dev", "attendee123")

	res, err := run(t, "n\n", "events", "cancel", "1")
	require.NoError(t, err)
	assert.Contains(t, res.err, "Aborted")

	_, err = run(t, "", "events", "cancel", "1", "--yes")
	require.NoError(t, err)

	res, err = run(t, "", "-f", "json", "events", "list", "--booked")
	require.NoError(t, err)
	assert.Empty(t, decode[[]domain.Event](t, res.out))
}

func TestEvents_AdminLifecycle(t *testing.T) {
	withAPI(t)
	login(t, "admin@eventify.dev", "admin123")

	res, err := run(t, "", "-f", "json", "events", "create",
		"--title", "Release Party", "--date", "2030-01-02 18:00", "--capacity", "10", "--location", "Rooftop")
	require.NoError(t, err)
	created := decode[domain.Event](t, res.out)
	assert.Equal(t, "Release Party", created.Title)
	assert.Equal(t, 10, created.Capacity)

	res, err = run(t, "", "-f", "json", "events", "update", created.ID.String(), "--capacity", "20")
	require.NoError(t, err)
	updated := decode[domain.Event](t, res.out)
	assert.Equal(t, 20, updated.Capacity)
	assert.Equal(t, "Rooftop", updated.Location, "unchanged flags keep their values")

	_, err = run(t, "", "events", "delete", created.ID.String(), "-y")
	require.NoError(t, err)

	res, err = run(t, "", "-f", "json", "events", "list", "--admin")
	require.NoError(t, err)
	assert.Len(t, decode[[]domain.Event](t, res.out), 3)
}

func TestEvents_CreateRequiresAdmin(t *testing.T) {
	withAPI(t)

	_, err := run(t, "", "events", "create", "--title", "X", "--date", "2030-01-02 18:00", "--capacity", "1")
	require.Error(t, err)
	assert.Equal(t, exitcode.AuthError, exitcode.DetermineExitCode(err))

	login(t, "ann@eventify.dev", "attendee123")
	_, err = run(t, "", "events", "list", "--admin")
	require.Error(t, err)
	assert.Equal(t, exitcode.AuthError, exitcode.DetermineExitCode(err))
}

func TestEvents_BadDate(t *testing.T) {
	withAPI(t)
	login(t, "admin@eventify.dev", "admin123")

	_, err := run(t, "", "events", "create", "--title", "X", "--date", "next friday", "--capacity", "1")
	require.Error(t, err)
	assert.Equal(t, exitcode.ValidationError, exitcode.DetermineExitCode(err))
}

func TestAttendees_AddUpdateRemove(t *testing.T) {
	withAPI(t)
	login(t, "admin@eventify.dev", "admin123")

	res, err := run(t, "", "-f", "json", "attendees", "add", "--event", "3", "--name", "Bob", "--email", "bob@example.com")
	require.NoError(t, err)
	added := decode[[]domain.Attendee](t, res.out)
	require.Len(t, added, 1)
	id := added[0].ID.String()

	res, err = run(t, "", "-f", "json", "attendees", "update", id, "--name", "Robert")
	require.NoError(t, err)
	updated := decode[[]domain.Attendee](t, res.out)
	assert.Equal(t, "Robert", updated[0].Name)
	assert.Equal(t, "bob@example.com", updated[0].Email)

	res, err = run(t, "", "-f", "json", "attendees", "list", "3")
	require.NoError(t, err)
	assert.Len(t, decode[[]domain.Attendee](t, res.out), 1)

	_, err = run(t, "", "attendees", "remove", id, "--yes")
	require.NoError(t, err)

	res, err = run(t, "", "-f", "json", "attendees", "list", "3")
	require.NoError(t, err)
	assert.Empty(t, decode[[]domain.Attendee](t, res.out))

	_, err = run(t, "", "attendees", "remove", "999", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attendee 999 not found")
}

func TestExportICS(t *testing.T) {
	withAPI(t)

	res, err := run(t, "", "export", "ics")
	require.NoError(t, err)
	assert.Contains(t, res.out, "BEGIN:VCALENDAR")
	assert.Contains(t, res.out, "SUMMARY:Go Meetup")

	out := filepath.Join(t.TempDir(), "events.ics")
	res, err = run(t, "", "export", "ics", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, res.err, "Wrote 3 events to "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "BEGIN:VEVENT"))
}

func TestExportICS_BookedRequiresLogin(t *testing.T) {
	withAPI(t)

	_, err := run(t, "", "export", "ics", "--booked")
	require.Error(t, err)
	assert.Equal(t, exitcode.AuthError, exitcode.DetermineExitCode(err))

	login(t, "ann@eventify.dev", "attendee123")
	res, err := run(t, "", "export", "ics", "--booked")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(res.out, "BEGIN:VEVENT"))
}

func TestParseDateFlag(t *testing.T) {
	got, err := parseDateFlag("2030-01-02T18:00:00Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2030, 1, 2, 18, 0, 0, 0, time.UTC)))

	got, err = parseDateFlag(" 2030-01-02 18:00 ")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2030, 1, 2, 18, 0, 0, 0, time.Local)))

	_, err = parseDateFlag("tomorrow")
	assert.Error(t, err)
}

func TestMockServer(t *testing.T) {
	isolate(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out, errOut syncBuffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"mock-server", "--addr", "127.0.0.1:0"})
	done := make(chan error, 1)
	go func() { done <- rootCmd.ExecuteContext(ctx) }()
	defer func() {
		resetFlags(rootCmd)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	apiLine := regexp.MustCompile(`API:\s+(http://\S+)`)
	var base string
	require.Eventually(t, func() bool {
		m := apiLine.FindStringSubmatch(out.String())
		if m == nil {
			return false
		}
		base = m[1]
		return true
	}, 3*time.Second, 10*time.Millisecond)

	get := func(path string) (int, string) {
		resp, err := http.Get(base + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	code, body := get("/api/events/public")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Go Meetup")

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health/ready")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 10*time.Millisecond)

	code, body = get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "eventify_mockapi_requests_total")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("mock-server did not stop")
	}
	assert.Contains(t, out.String(), "Server stopped gracefully")
}

func TestServeMetrics(t *testing.T) {
	isolate(t)
	mock := mockapi.New(mockapi.WithLogger(log.Discard()))
	api := httptest.NewServer(mock.Handler())
	defer api.Close()

	cfg := config.DefaultConfig()
	cfg.API.URL = api.URL
	rt := &runtime{cfg: cfg, logger: log.Discard(), backend: session.NewMemoryBackend()}
	rt.registry, rt.metrics = metrics.NewRegistry()
	rt.metrics.CacheHit("publicEvents")

	ctx, cancel := context.WithCancel(context.Background())
	addr, stopped, err := rt.serveMetrics(ctx, "127.0.0.1:0")
	require.NoError(t, err)

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr.String() + "/health/ready")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 10*time.Millisecond)
	assert.Contains(t, body, "eventify-api")
	assert.Contains(t, body, "session-backend")

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(data), "eventify_cache_hits_total")

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}

func TestDisplayHost(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"[::]:8080", "localhost:8080"},
		{"0.0.0.0:8080", "localhost:8080"},
		{"127.0.0.1:9091", "127.0.0.1:9091"},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			addr, err := net.ResolveTCPAddr("tcp", tt.addr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, displayHost(addr))
		})
	}
}
