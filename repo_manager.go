package federation

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/url"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories and doubles as the Storage
// collaborator consumed by the federation core.
type RepositoryManager interface {
	Storage

	Actors() Actors
	Posts() Posts
	Activities() Activities
	Languages() Languages

	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
}

type mngr struct {
	db         *bun.DB
	actors     Actors
	posts      Posts
	activities Activities
	languages  Languages
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:         db,
		actors:     NewActorsRepository(db),
		posts:      NewPostsRepository(db),
		activities: NewActivitiesRepository(db),
		languages:  NewLanguagesRepository(db),
	}
}

var _ Storage = (*mngr)(nil)

func (m *mngr) Actors() Actors         { return m.actors }
func (m *mngr) Posts() Posts           { return m.posts }
func (m *mngr) Activities() Activities { return m.activities }
func (m *mngr) Languages() Languages   { return m.languages }

func (m *mngr) Validate() error {
	if m.actors == nil {
		return errors.New("repository actors should be initialized")
	}

	if m.posts == nil {
		return errors.New("repository posts should be initialized")
	}

	if m.activities == nil {
		return errors.New("repository activities should be initialized")
	}

	if m.languages == nil {
		return errors.New("repository languages should be initialized")
	}

	return nil
}

func (m *mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m *mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

// Storage implementation, delegating to the repositories.

func (m *mngr) FindActorByURL(ctx context.Context, u *url.URL) (*Actor, error) {
	return m.actors.GetByURL(ctx, u.String())
}

func (m *mngr) FindLocalActorByName(ctx context.Context, name string) (*Actor, error) {
	return m.actors.GetLocalByName(ctx, name)
}

func (m *mngr) FindPostByURL(ctx context.Context, u *url.URL) (*Post, error) {
	return m.posts.GetByURL(ctx, u.String())
}

func (m *mngr) UpsertActor(ctx context.Context, actor *Actor) (*Actor, error) {
	return m.actors.Upsert(ctx, actor)
}

func (m *mngr) UpsertPost(ctx context.Context, post *Post) (*Post, error) {
	return m.posts.Upsert(ctx, post)
}

func (m *mngr) DeletePostByURL(ctx context.Context, u *url.URL) error {
	return m.posts.DeleteByURL(ctx, u.String())
}

func (m *mngr) MarkProcessed(ctx context.Context, activityID *url.URL) (bool, error) {
	return m.activities.MarkProcessed(ctx, activityID.String())
}

func (m *mngr) AddFollower(ctx context.Context, actor *Actor, followerURL *url.URL) error {
	return m.actors.AddFollower(ctx, actor, followerURL.String())
}

func (m *mngr) RemoveFollower(ctx context.Context, actor *Actor, followerURL *url.URL) error {
	return m.actors.RemoveFollower(ctx, actor, followerURL.String())
}

func (m *mngr) ListFollowers(ctx context.Context, actor *Actor) ([]*url.URL, error) {
	raw, err := m.actors.ListFollowers(ctx, actor)
	if err != nil {
		return nil, err
	}

	followers := make([]*url.URL, 0, len(raw))
	for _, f := range raw {
		u, err := url.Parse(f)
		if err != nil {
			continue
		}
		followers = append(followers, u)
	}
	return followers, nil
}
