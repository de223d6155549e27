package federation

import (
	"context"
	"fmt"
	"net/url"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Storage is the persistence collaborator consumed by the federation core.
// Every operation is individually atomic; the core never assumes a
// surrounding transaction.
type Storage interface {
	FindActorByURL(ctx context.Context, u *url.URL) (*Actor, error)
	FindLocalActorByName(ctx context.Context, name string) (*Actor, error)
	FindPostByURL(ctx context.Context, u *url.URL) (*Post, error)

	// UpsertActor and UpsertPost match on the canonical URL and must be
	// idempotent: concurrent resolutions of the same object may both call
	// them and the final persisted state has to be identical.
	UpsertActor(ctx context.Context, actor *Actor) (*Actor, error)
	UpsertPost(ctx context.Context, post *Post) (*Post, error)

	DeletePostByURL(ctx context.Context, u *url.URL) error

	// MarkProcessed records an activity id and reports whether this call
	// was the first to do so. It is the deduplication primitive and must be
	// a strongly consistent check-and-insert.
	MarkProcessed(ctx context.Context, activityID *url.URL) (bool, error)

	AddFollower(ctx context.Context, actor *Actor, followerURL *url.URL) error
	RemoveFollower(ctx context.Context, actor *Actor, followerURL *url.URL) error
	ListFollowers(ctx context.Context, actor *Actor) ([]*url.URL, error)
}

// LanguagePolicy is a read-only moderation predicate consulted before
// persisting inbound content. An implementation backed by instance
// configuration lives in repo_languages.go; NewAllowAllLanguages is the
// default.
type LanguagePolicy interface {
	Allows(ctx context.Context, language string) (bool, error)
}

type allowAllLanguages struct{}

func (allowAllLanguages) Allows(context.Context, string) (bool, error) { return true, nil }

// NewAllowAllLanguages returns a policy that accepts content in any language.
func NewAllowAllLanguages() LanguagePolicy { return allowAllLanguages{} }

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] FED "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] FED "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] FED "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
