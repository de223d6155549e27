package federation

import (
	"context"
	"net/http"

	"github.com/goliatone/go-errors"
)

// InboxResult describes the terminal state of one inbound delivery.
type InboxResult struct {
	ActivityID string
	Kind       string
	// Deduped is true when the activity id was already processed; the
	// delivery succeeds without reapplying side effects.
	Deduped bool
	// Handled is false when the kind has no registered handler and the
	// activity was dropped for forward compatibility.
	Handled bool
}

// InboxPipeline orchestrates verification, deduplication, actor resolution
// and dispatch for every inbound activity:
//
//	Received → Verified → Deduplicated → Dispatched → {Applied | Rejected}
//
// Each delivery is processed independently; a handler failure never rolls
// back unrelated deliveries.
type InboxPipeline struct {
	resolver   *Resolver
	verifier   *SignatureVerifier
	dispatcher *Dispatcher
	deliverer  *Deliverer
	languages  LanguagePolicy
	logger     Logger
}

type InboxOption func(*InboxPipeline)

// WithInboxLogger sets the pipeline logger.
func WithInboxLogger(logger Logger) InboxOption {
	return func(p *InboxPipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithDeliverer makes outbound delivery available to handlers that respond
// to inbound activities, e.g. Accept after Follow.
func WithDeliverer(deliverer *Deliverer) InboxOption {
	return func(p *InboxPipeline) {
		p.deliverer = deliverer
	}
}

// WithLanguagePolicy sets the content language predicate consulted by
// handlers.
func WithLanguagePolicy(policy LanguagePolicy) InboxOption {
	return func(p *InboxPipeline) {
		if policy != nil {
			p.languages = policy
		}
	}
}

func NewInboxPipeline(resolver *Resolver, dispatcher *Dispatcher, opts ...InboxOption) *InboxPipeline {
	p := &InboxPipeline{
		resolver:   resolver,
		verifier:   NewSignatureVerifier(resolver),
		dispatcher: dispatcher,
		languages:  NewAllowAllLanguages(),
		logger:     defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Receive runs the full pipeline over one inbound request. body is the raw
// request payload; req carries the headers the signature covers. A nil
// error with Deduped set means the duplicate was swallowed successfully.
func (p *InboxPipeline) Receive(ctx context.Context, req *http.Request, body []byte) (*InboxResult, error) {
	envelope, err := ParseEnvelope(body)
	if err != nil {
		return nil, err
	}

	result := &InboxResult{
		ActivityID: envelope.ID.String(),
		Kind:       envelope.Kind,
	}

	// Hard gate: nothing below runs for a message we cannot authenticate.
	signer, err := p.verifier.Verify(ctx, req, body)
	if err != nil {
		return nil, err
	}

	if signer.URL != envelope.Actor.String() {
		return nil, ErrActorMismatch.WithMetadata(map[string]any{
			"signer": signer.URL,
			"actor":  envelope.Actor.String(),
		})
	}

	fresh, err := p.resolver.Storage().MarkProcessed(ctx, envelope.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "inbox: dedup record failed")
	}
	if !fresh {
		p.logger.Debug("duplicate activity %s dropped", envelope.ID)
		result.Deduped = true
		return result, nil
	}

	actor, err := envelope.Actor.Dereference(ctx, p.resolver)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "inbox: actor unresolvable")
	}

	handled, err := p.dispatcher.Dispatch(ctx, actor, envelope, p.handlerDeps())
	if err != nil {
		// The dedup record stays in place: redelivering a failed activity
		// is the peer's decision, not an automatic retry.
		result.Handled = handled
		return result, err
	}

	if !handled {
		p.logger.Debug("no handler for activity kind %q, dropping %s", envelope.Kind, envelope.ID)
		return result, nil
	}

	result.Handled = true
	return result, nil
}

func (p *InboxPipeline) handlerDeps() HandlerDeps {
	return HandlerDeps{
		Storage:   p.resolver.Storage(),
		Resolver:  p.resolver,
		Deliverer: p.deliverer,
		Languages: p.languages,
		Logger:    p.logger,
	}
}
