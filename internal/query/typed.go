package query

import (
	"context"
	"fmt"

	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
)

// FetchAs is Fetch with a typed loader and result.
func FetchAs[T any](ctx context.Context, c *Cache, key Key, load func(context.Context) (T, error), opts FetchOptions) (T, error) {
	var loader Loader
	if load != nil {
		loader = func(ctx context.Context) (any, error) {
			return load(ctx)
		}
	}
	v, err := c.Fetch(ctx, key, loader, opts)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](key, v)
}

// DataAs returns the cached data for key when present and of type T.
func DataAs[T any](c *Cache, key Key) (T, bool) {
	var zero T
	e, ok := c.Peek(key)
	if !ok || !e.HasData {
		return zero, false
	}
	v, ok := e.Data.(T)
	return v, ok
}

// UpdateAs applies a typed updater with SetData. Absent or mistyped data is
// passed to fn as the zero value.
func UpdateAs[T any](c *Cache, key Key, fn func(T) T) {
	c.SetData(key, func(old any) any {
		v, _ := old.(T)
		return fn(v)
	})
}

func cast[T any](key Key, v any) (T, error) {
	if v == nil {
		var zero T
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, apperrors.New(apperrors.ErrCodeUnexpected,
			fmt.Sprintf("cache entry %s holds %T, want %T", key, v, zero))
	}
	return t, nil
}
