package federation

import (
	"encoding/json"
	"net/url"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
)

// Wire document kinds understood by this instance. Anything else is carried
// by UnknownActivity and dropped by the dispatcher.
const (
	KindPerson = "Person"
	KindNote   = "Note"
	KindCreate = "Create"
	KindFollow = "Follow"
	KindAccept = "Accept"
	KindUndo   = "Undo"
	KindDelete = "Delete"
)

// Person is the wire representation of an actor.
type Person struct {
	Kind              string    `json:"type"`
	ID                string    `json:"id"`
	PreferredUsername string    `json:"preferredUsername"`
	Inbox             string    `json:"inbox"`
	PublicKey         PublicKey `json:"publicKey"`
}

// PublicKey is the signing key advertised inside an actor document.
type PublicKey struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

// Validate checks required fields and the declared type.
func (p Person) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Kind, validation.Required, validation.In(KindPerson)),
		validation.Field(&p.ID, validation.Required, is.URL),
		validation.Field(&p.PreferredUsername, validation.Required),
		validation.Field(&p.Inbox, validation.Required, is.URL),
	)
}

// LanguageTag identifies the language of a piece of content.
type LanguageTag struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name,omitempty"`
}

// Note is the wire representation of a post.
type Note struct {
	Kind         string       `json:"type"`
	ID           string       `json:"id"`
	AttributedTo string       `json:"attributedTo"`
	Content      string       `json:"content"`
	Language     *LanguageTag `json:"language,omitempty"`
}

// Validate checks required fields and the declared type.
func (n Note) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Kind, validation.Required, validation.In(KindNote)),
		validation.Field(&n.ID, validation.Required, is.URL),
		validation.Field(&n.AttributedTo, validation.Required, is.URL),
		validation.Field(&n.Content, validation.Required),
	)
}

// CreateActivity announces new content.
type CreateActivity struct {
	Kind   string `json:"type"`
	ID     string `json:"id"`
	Actor  string `json:"actor"`
	Object Note   `json:"object"`
}

// FollowActivity asks the object actor to add the subject as follower.
type FollowActivity struct {
	Kind   string `json:"type"`
	ID     string `json:"id"`
	Actor  string `json:"actor"`
	Object string `json:"object"`
}

// AcceptActivity confirms a previously received follow.
type AcceptActivity struct {
	Kind   string         `json:"type"`
	ID     string         `json:"id"`
	Actor  string         `json:"actor"`
	Object FollowActivity `json:"object"`
}

// UndoActivity retracts a previous activity, typically a follow.
type UndoActivity struct {
	Kind   string         `json:"type"`
	ID     string         `json:"id"`
	Actor  string         `json:"actor"`
	Object FollowActivity `json:"object"`
}

// DeleteActivity tombstones an object by id.
type DeleteActivity struct {
	Kind   string `json:"type"`
	ID     string `json:"id"`
	Actor  string `json:"actor"`
	Object string `json:"object"`
}

// Envelope is the tagged union over inbound activities. Kind carries the
// variant; Raw preserves the full document so kind handlers (or nobody, for
// unknown kinds) decide how to decode the payload.
type Envelope struct {
	Kind  string
	ID    *url.URL
	Actor ObjectID[*Actor]
	Raw   json.RawMessage
}

type envelopeProbe struct {
	Kind  string `json:"type"`
	ID    string `json:"id"`
	Actor string `json:"actor"`
}

func (p envelopeProbe) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Kind, validation.Required),
		validation.Field(&p.ID, validation.Required, is.URL),
		validation.Field(&p.Actor, validation.Required, is.URL),
	)
}

// ParseEnvelope decodes the activity envelope without interpreting the
// payload. Unknown kinds parse successfully; forward compatibility is
// handled at dispatch, not here.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var probe envelopeProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "failed to decode activity envelope")
	}

	if err := probe.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid activity envelope")
	}

	id, err := url.Parse(probe.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid activity id")
	}

	actor, err := NewObjectID[*Actor](probe.Actor)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Kind:  probe.Kind,
		ID:    id,
		Actor: actor,
		Raw:   json.RawMessage(data),
	}, nil
}
