package digestware

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/require"
)

func digestFor(body []byte) string {
	sum := sha256.Sum256(body)
	return DefaultAlgorithmPrefix + base64.StdEncoding.EncodeToString(sum[:])
}

func newMockContext(body []byte, digest string) *router.MockContext {
	ctx := router.NewMockContext()
	ctx.HeadersM[DefaultHeaderName] = digest
	ctx.On("Body").Return(body)
	return ctx
}

func TestDigestMatch(t *testing.T) {
	body := []byte(`{"type":"Create"}`)

	handler := New(Config{
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
	})(func(ctx router.Context) error { return nil })

	ctx := newMockContext(body, digestFor(body))
	require.NoError(t, handler(ctx))
	require.True(t, ctx.NextCalled)
}

func TestDigestMismatch(t *testing.T) {
	body := []byte(`{"type":"Create"}`)

	var captured error
	handler := New(Config{
		ErrorHandler: func(ctx router.Context, err error) error {
			captured = err
			return err
		},
	})(func(ctx router.Context) error { return nil })

	ctx := newMockContext(body, digestFor([]byte("something else")))
	require.Error(t, handler(ctx))
	require.ErrorIs(t, captured, ErrDigestMismatch)
}

func TestDigestMissing(t *testing.T) {
	var captured error
	handler := New(Config{
		ErrorHandler: func(ctx router.Context, err error) error {
			captured = err
			return err
		},
	})(func(ctx router.Context) error { return nil })

	ctx := newMockContext([]byte("body"), "")
	require.Error(t, handler(ctx))
	require.ErrorIs(t, captured, ErrDigestMissing)
}

func TestDigestMissingOptional(t *testing.T) {
	handler := New(Config{
		Optional: true,
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
	})(func(ctx router.Context) error { return nil })

	ctx := newMockContext([]byte("body"), "")
	require.NoError(t, handler(ctx))
	require.True(t, ctx.NextCalled)
}

func TestDigestUnknownAlgorithm(t *testing.T) {
	var captured error
	handler := New(Config{
		ErrorHandler: func(ctx router.Context, err error) error {
			captured = err
			return err
		},
	})(func(ctx router.Context) error { return nil })

	ctx := newMockContext([]byte("body"), "MD5=deadbeef")
	require.Error(t, handler(ctx))
	require.ErrorIs(t, captured, ErrDigestInvalid)
}
