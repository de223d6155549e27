package federation

import (
	"context"
	"net/url"

	"github.com/goliatone/go-errors"
)

// ApubObject is the capability shared by every resolvable entity kind: a
// canonical wire id plus the kind tag the resolver validates fetched
// documents against.
type ApubObject interface {
	CanonicalURL() *url.URL
	ApubKind() string
}

// ObjectID is a validated absolute URL tagged with the entity kind it is
// expected to dereference to. The URL authority decides whether resolution
// is local or remote.
type ObjectID[T ApubObject] struct {
	url *url.URL
}

// NewObjectID parses and validates rawURL as an absolute reference to a T.
func NewObjectID[T ApubObject](rawURL string) (ObjectID[T], error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ObjectID[T]{}, errors.Wrap(err, errors.CategoryValidation, "invalid object reference")
	}
	if !u.IsAbs() || u.Host == "" {
		return ObjectID[T]{}, errors.New("object reference must be an absolute url", errors.CategoryValidation).
			WithMetadata(map[string]any{"url": rawURL})
	}
	return ObjectID[T]{url: u}, nil
}

// MustObjectID is NewObjectID for fixtures and tests; it panics on error.
func MustObjectID[T ApubObject](rawURL string) ObjectID[T] {
	oid, err := NewObjectID[T](rawURL)
	if err != nil {
		panic(err)
	}
	return oid
}

func (o ObjectID[T]) URL() *url.URL { return o.url }

func (o ObjectID[T]) String() string {
	if o.url == nil {
		return ""
	}
	return o.url.String()
}

// IsLocal reports whether this reference belongs to the given instance.
func (o ObjectID[T]) IsLocal(instance *LocalInstance) bool {
	return instance.IsLocal(o.url)
}

// Kind returns the expected entity kind of this reference.
func (o ObjectID[T]) Kind() string {
	var zero T
	return zero.ApubKind()
}

// Dereference resolves the reference to its concrete entity, fetching and
// persisting remote objects on demand. Nested references inside the result
// stay unresolved; follow them with explicit Dereference calls.
func (o ObjectID[T]) Dereference(ctx context.Context, r *Resolver) (T, error) {
	var zero T
	if o.url == nil {
		return zero, ErrMalformedObject
	}

	entity, err := r.resolve(ctx, o.url, o.Kind())
	if err != nil {
		return zero, err
	}

	typed, ok := entity.(T)
	if !ok {
		return zero, ErrWrongObjectKind.WithMetadata(map[string]any{
			"url":      o.url.String(),
			"expected": o.Kind(),
		})
	}
	return typed, nil
}

// DereferenceLocal resolves the reference without ever issuing network I/O.
// Remote references fail with ErrObjectNotLocal.
func (o ObjectID[T]) DereferenceLocal(ctx context.Context, r *Resolver) (T, error) {
	var zero T
	if o.url == nil {
		return zero, ErrMalformedObject
	}
	if !r.instance.IsLocal(o.url) {
		return zero, ErrObjectNotLocal.WithMetadata(map[string]any{"url": o.url.String()})
	}

	entity, err := r.resolveLocal(ctx, o.url, o.Kind())
	if err != nil {
		return zero, err
	}

	typed, ok := entity.(T)
	if !ok {
		return zero, ErrWrongObjectKind.WithMetadata(map[string]any{
			"url":      o.url.String(),
			"expected": o.Kind(),
		})
	}
	return typed, nil
}
