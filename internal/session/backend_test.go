package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/eventify/internal/config"
)

func TestFileBackend_PlainRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "session.json")
	backend := NewFileBackend(path, "default", "")

	token, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, backend.Save(ctx, "tok-1"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	token, err = backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	require.NoError(t, backend.Clear(ctx))
	require.NoError(t, backend.Clear(ctx))
	assert.NoFileExists(t, path)
}

func TestFileBackend_Sealed(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	sealed := NewFileBackend(path, "default", "correct horse")
	require.NoError(t, sealed.Save(ctx, "secret-token"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-token")

	token, err := NewFileBackend(path, "default", "correct horse").Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", token)

	_, err = NewFileBackend(path, "default", "wrong").Load(ctx)
	assert.ErrorIs(t, err, ErrSealed)

	_, err = NewFileBackend(path, "default", "").Load(ctx)
	assert.ErrorIs(t, err, ErrSealed)
}

func TestFileBackend_OtherProfileIgnored(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, NewFileBackend(path, "work", "").Save(ctx, "tok"))

	token, err := NewFileBackend(path, "home", "").Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestFileBackend_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileBackend(path, "default", "").Load(context.Background())
	assert.Error(t, err)
}

func TestRedisBackend(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend := NewRedisBackend(client, "kiosk")
	t.Cleanup(func() { _ = backend.Close() })

	token, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	store, err := Open(ctx, backend)
	require.NoError(t, err)
	require.NoError(t, store.SetToken("tok-r"))

	got, err := mr.Get("eventify:session:kiosk")
	require.NoError(t, err)
	assert.Equal(t, "tok-r", got)

	require.NoError(t, store.Clear())
	assert.False(t, mr.Exists("eventify:session:kiosk"))
}

func TestNewBackend(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     config.SessionConfig
		want    string
		wantErr bool
	}{
		{"memory", config.SessionConfig{Backend: config.BackendMemory}, "memory", false},
		{"file", config.SessionConfig{Backend: config.BackendFile, Path: filepath.Join(t.TempDir(), "s.json")}, "file", false},
		{"file without path", config.SessionConfig{Backend: config.BackendFile}, "", true},
		{"redis", config.SessionConfig{Backend: config.BackendRedis, RedisURL: "redis://" + mr.Addr() + "/0", Profile: "p"}, "redis", false},
		{"redis bad url", config.SessionConfig{Backend: config.BackendRedis, RedisURL: "::nope"}, "", true},
		{"unknown", config.SessionConfig{Backend: "sqlite"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := NewBackend(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, backend.Name())
		})
	}
}
