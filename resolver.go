package federation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/goliatone/go-errors"
)

// maxFetchBody bounds how much of a remote document we are willing to read.
const maxFetchBody = 1 << 20

// Resolver turns ObjectID references into concrete entities. Local
// references go straight to storage; remote references are fetched over
// HTTP, converted through the wire codec, persisted idempotently, and
// cached. A Resolver is safe for concurrent use.
type Resolver struct {
	instance *LocalInstance
	storage  Storage
	logger   Logger
	fetchAs  *Actor
	depth    int
}

type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger used for resolution events.
func WithResolverLogger(logger Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFetchActor signs outbound fetches as the given local actor, so peers
// that require authenticated fetch can attribute the request.
func WithFetchActor(actor *Actor) ResolverOption {
	return func(r *Resolver) {
		r.fetchAs = actor
	}
}

func NewResolver(instance *LocalInstance, storage Storage, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		instance: instance,
		storage:  storage,
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Instance exposes the shared federation context.
func (r *Resolver) Instance() *LocalInstance { return r.instance }

// Storage exposes the persistence collaborator.
func (r *Resolver) Storage() Storage { return r.storage }

// Nested returns a resolver for following references found inside an
// already resolved object. Traversal past the configured depth cap fails,
// which is what keeps cyclic object graphs from recursing unboundedly.
func (r *Resolver) Nested() (*Resolver, error) {
	if r.depth+1 > r.instance.Settings().MaxResolveDepth {
		return nil, ErrDepthExceeded.WithMetadata(map[string]any{
			"max_depth": r.instance.Settings().MaxResolveDepth,
		})
	}
	nested := *r
	nested.depth++
	return &nested, nil
}

func (r *Resolver) resolve(ctx context.Context, u *url.URL, kind string) (any, error) {
	if r.instance.IsLocal(u) {
		return r.resolveLocal(ctx, u, kind)
	}

	if !r.instance.DomainAllowed(u.Host) {
		return nil, ErrDomainBlocked.WithMetadata(map[string]any{"host": u.Host})
	}

	// Concurrent resolutions of the same URL coalesce on the cache key;
	// losing a race and resolving twice is harmless because persistence is
	// an upsert by canonical id.
	return r.instance.cache.GetOrFetch(ctx, u.String(), func(ctx context.Context) (any, error) {
		return r.fetchAndPersist(ctx, u, kind)
	})
}

func (r *Resolver) resolveLocal(ctx context.Context, u *url.URL, kind string) (any, error) {
	switch kind {
	case KindPerson:
		return r.storage.FindActorByURL(ctx, u)
	case KindNote:
		return r.storage.FindPostByURL(ctx, u)
	default:
		return nil, ErrWrongObjectKind.WithMetadata(map[string]any{"expected": kind})
	}
}

func (r *Resolver) fetchAndPersist(ctx context.Context, u *url.URL, kind string) (any, error) {
	body, err := r.fetch(ctx, u)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindPerson:
		var doc Person
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, "failed to decode person document")
		}
		actor, err := PersonToActor(&doc)
		if err != nil {
			return nil, err
		}
		return r.storage.UpsertActor(ctx, actor)
	case KindNote:
		var doc Note
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, "failed to decode note document")
		}
		post, err := NoteToPost(&doc)
		if err != nil {
			return nil, err
		}
		return r.storage.UpsertPost(ctx, post)
	default:
		return nil, ErrWrongObjectKind.WithMetadata(map[string]any{"expected": kind})
	}
}

func (r *Resolver) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	settings := r.instance.Settings()

	ctx, cancel := context.WithTimeout(ctx, settings.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to build fetch request")
	}
	req.Header.Set("Accept", APubJSONContentType)

	if r.fetchAs != nil && r.fetchAs.PrivateKeyPEM != "" {
		if err := signRequest(req, r.fetchAs.KeyID(), r.fetchAs.PrivateKeyPEM, nil); err != nil {
			return nil, err
		}
	}

	// Per-request client copy so redirect bounds and the configured timeout
	// apply without mutating the shared client.
	client := *r.instance.Client()
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= settings.MaxRedirects {
			return ErrFetchFailed.WithMetadata(map[string]any{"detail": "too many redirects"})
		}
		if !r.instance.DomainAllowed(req.URL.Host) {
			return ErrDomainBlocked.WithMetadata(map[string]any{"host": req.URL.Host})
		}
		return nil
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "remote object fetch failed").
			WithTextCode(TextCodeFetchFailed).
			WithMetadata(map[string]any{"url": u.String()})
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, ErrFetchFailed.WithMetadata(map[string]any{
			"url":    u.String(),
			"status": res.StatusCode,
		})
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxFetchBody))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "failed to read remote object body").
			WithTextCode(TextCodeFetchFailed)
	}

	r.logger.Debug("resolved remote object %s", u.String())

	return body, nil
}
