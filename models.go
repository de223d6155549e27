package federation

import (
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Actor is a federated identity, local or remote. The URL column is the
// canonical id used for upsert matching; everything else may be refreshed
// from newer remote documents.
type Actor struct {
	bun.BaseModel `bun:"table:actors,alias:act"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	URL           string     `bun:"url,notnull,unique" json:"url,omitempty"`
	Username      string     `bun:"username,notnull" json:"username,omitempty"`
	InboxURL      string     `bun:"inbox_url,notnull" json:"inbox_url,omitempty"`
	PublicKeyPEM  string     `bun:"public_key_pem,notnull" json:"public_key_pem,omitempty"`
	PrivateKeyPEM string     `bun:"private_key_pem" json:"-"`
	Local         bool       `bun:"local,notnull" json:"local,omitempty"`
	LastRefreshAt *time.Time `bun:"last_refresh_at,nullzero" json:"last_refresh_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// CanonicalURL returns the actor's wire id.
func (a *Actor) CanonicalURL() *url.URL {
	u, _ := url.Parse(a.URL)
	return u
}

func (a *Actor) ApubKind() string { return KindPerson }

// KeyID is the fragment URL under which the actor's public key is published.
func (a *Actor) KeyID() string { return a.URL + "#main-key" }

// Inbox returns the actor's inbox URL, or nil if it is unset or malformed.
func (a *Actor) Inbox() *url.URL {
	if a.InboxURL == "" {
		return nil
	}
	u, err := url.Parse(a.InboxURL)
	if err != nil {
		return nil
	}
	return u
}

// Post is a piece of federated content attributed to an actor.
type Post struct {
	bun.BaseModel `bun:"table:posts,alias:pst"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	URL           string     `bun:"url,notnull,unique" json:"url,omitempty"`
	ActorURL      string     `bun:"actor_url,notnull" json:"actor_url,omitempty"`
	Content       string     `bun:"content,notnull" json:"content,omitempty"`
	Language      string     `bun:"language" json:"language,omitempty"`
	Local         bool       `bun:"local,notnull" json:"local,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// CanonicalURL returns the post's wire id.
func (p *Post) CanonicalURL() *url.URL {
	u, _ := url.Parse(p.URL)
	return u
}

func (p *Post) ApubKind() string { return KindNote }

// ReceivedActivity is the durable processed-ids record backing inbox
// deduplication. ActivityID carries a unique constraint; the conditional
// insert against it is what makes redelivery a no-op.
type ReceivedActivity struct {
	bun.BaseModel `bun:"table:received_activities,alias:ract"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ActivityID    string     `bun:"activity_id,notnull,unique" json:"activity_id,omitempty"`
	ReceivedAt    *time.Time `bun:"received_at,nullzero,default:current_timestamp" json:"received_at,omitempty"`
}

// Follower links a local actor to a remote follower inbox.
type Follower struct {
	bun.BaseModel `bun:"table:followers,alias:flw"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ActorID       uuid.UUID  `bun:"actor_id,notnull,type:uuid,unique:uq_actor_follower" json:"actor_id,omitempty"`
	FollowerURL   string     `bun:"follower_url,notnull,unique:uq_actor_follower" json:"follower_url,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// InstanceLanguage is one entry of the instance's allowed-language set.
// An empty table means every language is allowed.
type InstanceLanguage struct {
	bun.BaseModel `bun:"table:instance_languages,alias:lang"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Code          string    `bun:"code,notnull,unique" json:"code,omitempty"`
	Name          string    `bun:"name" json:"name,omitempty"`
}
