package federation

import (
	"context"
	"fmt"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Actors interface {
	repository.Repository[*Actor]

	GetByURL(ctx context.Context, rawURL string) (*Actor, error)
	GetByURLTx(ctx context.Context, tx bun.IDB, rawURL string) (*Actor, error)
	GetLocalByName(ctx context.Context, name string) (*Actor, error)

	Upsert(ctx context.Context, record *Actor, criteria ...repository.UpdateCriteria) (*Actor, error)
	UpsertTx(ctx context.Context, tx bun.IDB, record *Actor, criteria ...repository.UpdateCriteria) (*Actor, error)

	AddFollower(ctx context.Context, actor *Actor, followerURL string) error
	RemoveFollower(ctx context.Context, actor *Actor, followerURL string) error
	ListFollowers(ctx context.Context, actor *Actor) ([]string, error)
}

type actors struct {
	repository.Repository[*Actor]
	db *bun.DB
}

var (
	_ Actors                        = (*actors)(nil)
	_ repository.Repository[*Actor] = (*actors)(nil)
)

func NewActorsRepository(db *bun.DB) Actors {
	repo := repository.NewRepository[*Actor](db, repository.ModelHandlers[*Actor]{
		NewRecord: func() *Actor { return &Actor{} },
		GetID: func(a *Actor) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Actor, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "url"
		},
	})

	return &actors{
		Repository: repo,
		db:         db,
	}
}

// NewLocalActor builds a local actor with a fresh key pair under the
// instance's URL conventions. The caller persists it.
func NewLocalActor(instance *LocalInstance, name string) (*Actor, error) {
	keys, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	base := fmt.Sprintf("https://%s/u/%s", instance.Hostname(), name)
	return &Actor{
		ID:            uuid.New(),
		URL:           base,
		Username:      name,
		InboxURL:      base + "/inbox",
		PublicKeyPEM:  keys.PublicPEM,
		PrivateKeyPEM: keys.PrivatePEM,
		Local:         true,
	}, nil
}

func (a *actors) GetByURL(ctx context.Context, rawURL string) (*Actor, error) {
	return a.GetByURLTx(ctx, a.db, rawURL)
}

func (a *actors) GetByURLTx(ctx context.Context, tx bun.IDB, rawURL string) (*Actor, error) {
	record := &Actor{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.url = ?", rawURL).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"url": rawURL})
		}
		return nil, err
	}

	return record, nil
}

func (a *actors) GetLocalByName(ctx context.Context, name string) (*Actor, error) {
	record := &Actor{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.username = ?", name).
		Where("?TableAlias.local = ?", true).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"username": name})
		}
		return nil, err
	}

	return record, nil
}

func (a *actors) Upsert(ctx context.Context, record *Actor, criteria ...repository.UpdateCriteria) (*Actor, error) {
	return a.UpsertTx(ctx, a.db, record, criteria...)
}

// UpsertTx matches on the canonical URL. Existing local key material is
// never overwritten by a remote document refresh.
func (a *actors) UpsertTx(ctx context.Context, tx bun.IDB, record *Actor, criteria ...repository.UpdateCriteria) (*Actor, error) {
	existing, err := a.GetByURLTx(ctx, tx, record.URL)
	if err == nil {
		record.ID = existing.ID
		record.Local = existing.Local
		if record.PrivateKeyPEM == "" {
			record.PrivateKeyPEM = existing.PrivateKeyPEM
		}
		criteria = append(criteria, repository.UpdateByID(existing.ID.String()))
		return a.Repository.UpdateTx(ctx, tx, record, criteria...)
	}

	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return a.Repository.CreateTx(ctx, tx, record)
}

func (a *actors) AddFollower(ctx context.Context, actor *Actor, followerURL string) error {
	follower := &Follower{
		ID:          uuid.New(),
		ActorID:     actor.ID,
		FollowerURL: followerURL,
	}

	_, err := a.db.NewInsert().
		Model(follower).
		On("CONFLICT DO NOTHING").
		Exec(ctx)

	return err
}

func (a *actors) RemoveFollower(ctx context.Context, actor *Actor, followerURL string) error {
	_, err := a.db.NewDelete().
		Model((*Follower)(nil)).
		Where("actor_id = ?", actor.ID).
		Where("follower_url = ?", followerURL).
		Exec(ctx)

	return err
}

func (a *actors) ListFollowers(ctx context.Context, actor *Actor) ([]string, error) {
	var followers []string
	err := a.db.NewSelect().
		Model((*Follower)(nil)).
		Column("follower_url").
		Where("actor_id = ?", actor.ID).
		Scan(ctx, &followers)

	if err != nil {
		return nil, err
	}
	return followers, nil
}
