package digestware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/goliatone/go-router"
)

var (
	ErrDigestMissing  = errors.New("Digest header missing")
	ErrDigestInvalid  = errors.New("Digest header malformed")
	ErrDigestMismatch = errors.New("Digest does not match request body")
)

// DefaultHeaderName is the header carrying the body digest
const DefaultHeaderName = "Digest"

// DefaultAlgorithmPrefix is the only digest algorithm accepted
const DefaultAlgorithmPrefix = "SHA-256="

// Config defines the configuration for Digest middleware
type Config struct {
	// Skip defines a function to skip middleware
	Skip func(router.Context) bool

	// HeaderName defines the header name for the digest
	HeaderName string

	// Optional lets requests without a Digest header through; a present
	// but wrong digest is still rejected
	Optional bool

	// ErrorHandler defines the error handler
	ErrorHandler router.ErrorHandler

	// SuccessHandler defines the success handler
	SuccessHandler router.HandlerFunc
}

// New creates a middleware that rejects requests whose Digest header does
// not match the SHA-256 hash of the request body.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := configDefault(config...)

		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			header := ctx.Header(cfg.HeaderName)
			if header == "" {
				if cfg.Optional {
					return cfg.SuccessHandler(ctx)
				}
				return cfg.ErrorHandler(ctx, ErrDigestMissing)
			}

			if err := validateDigest(header, ctx.Body()); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

func validateDigest(header string, body []byte) error {
	if !strings.HasPrefix(header, DefaultAlgorithmPrefix) {
		return ErrDigestInvalid
	}

	claimed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, DefaultAlgorithmPrefix))
	if err != nil {
		return ErrDigestInvalid
	}

	sum := sha256.Sum256(body)
	if subtle.ConstantTimeCompare(claimed, sum[:]) != 1 {
		return ErrDigestMismatch
	}

	return nil
}

func configDefault(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx router.Context, err error) error {
			return ctx.JSON(router.StatusUnauthorized, map[string]any{
				"error": err.Error(),
			})
		}
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	return cfg
}
