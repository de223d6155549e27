package federation

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Posts interface {
	repository.Repository[*Post]

	GetByURL(ctx context.Context, rawURL string) (*Post, error)
	GetByURLTx(ctx context.Context, tx bun.IDB, rawURL string) (*Post, error)

	Upsert(ctx context.Context, record *Post, criteria ...repository.UpdateCriteria) (*Post, error)
	UpsertTx(ctx context.Context, tx bun.IDB, record *Post, criteria ...repository.UpdateCriteria) (*Post, error)

	DeleteByURL(ctx context.Context, rawURL string) error
}

type posts struct {
	repository.Repository[*Post]
	db *bun.DB
}

var (
	_ Posts                        = (*posts)(nil)
	_ repository.Repository[*Post] = (*posts)(nil)
)

func NewPostsRepository(db *bun.DB) Posts {
	repo := repository.NewRepository[*Post](db, repository.ModelHandlers[*Post]{
		NewRecord: func() *Post { return &Post{} },
		GetID: func(p *Post) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Post, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "url"
		},
	})

	return &posts{
		Repository: repo,
		db:         db,
	}
}

func (p *posts) GetByURL(ctx context.Context, rawURL string) (*Post, error) {
	return p.GetByURLTx(ctx, p.db, rawURL)
}

func (p *posts) GetByURLTx(ctx context.Context, tx bun.IDB, rawURL string) (*Post, error) {
	record := &Post{}
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

func (p *posts) Upsert(ctx context.Context, record *Post, criteria ...repository.UpdateCriteria) (*Post, error) {
	return p.UpsertTx(ctx, p.db, record, criteria...)
}

// UpsertTx matches on the canonical URL so repeated resolution of the same
// remote object converges on a single row.
func (p *posts) UpsertTx(ctx context.Context, tx bun.IDB, record *Post, criteria ...repository.UpdateCriteria) (*Post, error) {
	existing, err := p.GetByURLTx(ctx, tx, record.URL)
	if err == nil {
		record.ID = existing.ID
		record.Local = existing.Local
		criteria = append(criteria, repository.UpdateByID(existing.ID.String()))
		return p.Repository.UpdateTx(ctx, tx, record, criteria...)
	}

	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return p.Repository.CreateTx(ctx, tx, record)
}

func (p *posts) DeleteByURL(ctx context.Context, rawURL string) error {
	_, err := p.db.NewDelete().
		Model((*Post)(nil)).
		Where("url = ?", rawURL).
		Exec(ctx)

	return err
}
