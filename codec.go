package federation

import (
	"encoding/json"

	"github.com/goliatone/go-errors"
)

// DefaultContext is the JSON-LD context wrapped around every outbound
// document.
var DefaultContext = []string{
	"https://www.w3.org/ns/activitystreams",
	"https://w3id.org/security/v1",
}

// WithContext wraps a wire document with its JSON-LD @context. The wrapped
// object's fields are flattened next to the context on the wire.
type WithContext[T any] struct {
	Context json.RawMessage
	Object  T
}

// NewDefaultContext wraps obj with DefaultContext.
func NewDefaultContext[T any](obj T) WithContext[T] {
	ctx, _ := json.Marshal(DefaultContext)
	return WithContext[T]{Context: ctx, Object: obj}
}

// MarshalJSON splices @context into the object's own serialization. Output
// is deterministic: keys are emitted in sorted order.
func (w WithContext[T]) MarshalJSON() ([]byte, error) {
	inner, err := json.Marshal(w.Object)
	if err != nil {
		return nil, err
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(inner, &fields); err != nil {
		return nil, err
	}

	ctx := w.Context
	if len(ctx) == 0 {
		ctx, _ = json.Marshal(DefaultContext)
	}
	fields["@context"] = ctx

	return json.Marshal(fields)
}

// UnmarshalJSON captures @context and decodes the remaining fields into the
// wrapped object.
func (w *WithContext[T]) UnmarshalJSON(data []byte) error {
	var probe struct {
		Context json.RawMessage `json:"@context"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	w.Context = probe.Context
	return json.Unmarshal(data, &w.Object)
}

// ToWire produces the actor's canonical wire document. The conversion is
// deterministic and performs no I/O.
func (a *Actor) ToWire() *Person {
	return &Person{
		Kind:              KindPerson,
		ID:                a.URL,
		PreferredUsername: a.Username,
		Inbox:             a.InboxURL,
		PublicKey: PublicKey{
			ID:           a.KeyID(),
			Owner:        a.URL,
			PublicKeyPem: a.PublicKeyPEM,
		},
	}
}

// PersonToActor converts a wire document into the local representation. It
// validates required fields and the declared type; it never touches the
// network, so nested references stay unresolved.
func PersonToActor(doc *Person) (*Actor, error) {
	if doc == nil {
		return nil, ErrMalformedObject
	}
	if doc.Kind != KindPerson {
		return nil, ErrWrongObjectKind.WithMetadata(map[string]any{
			"expected": KindPerson,
			"got":      doc.Kind,
		})
	}
	if err := doc.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid person document")
	}

	return &Actor{
		URL:          doc.ID,
		Username:     doc.PreferredUsername,
		InboxURL:     doc.Inbox,
		PublicKeyPEM: doc.PublicKey.PublicKeyPem,
		Local:        false,
	}, nil
}

// ToWire produces the post's canonical wire document.
func (p *Post) ToWire() *Note {
	note := &Note{
		Kind:         KindNote,
		ID:           p.URL,
		AttributedTo: p.ActorURL,
		Content:      p.Content,
	}
	if p.Language != "" {
		note.Language = &LanguageTag{Identifier: p.Language}
	}
	return note
}

// NoteToPost converts a wire document into the local representation.
func NoteToPost(doc *Note) (*Post, error) {
	if doc == nil {
		return nil, ErrMalformedObject
	}
	if doc.Kind != KindNote {
		return nil, ErrWrongObjectKind.WithMetadata(map[string]any{
			"expected": KindNote,
			"got":      doc.Kind,
		})
	}
	if err := doc.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid note document")
	}

	post := &Post{
		URL:      doc.ID,
		ActorURL: doc.AttributedTo,
		Content:  doc.Content,
		Local:    false,
	}
	if doc.Language != nil {
		post.Language = doc.Language.Identifier
	}
	return post, nil
}
