package federation

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Languages is the instance's allowed-language set, consumed by the core as
// a read-only LanguagePolicy. An empty set means every language is allowed.
type Languages interface {
	LanguagePolicy

	List(ctx context.Context) ([]InstanceLanguage, error)
	// Update replaces the allowed set inside one transaction. Passing no
	// codes clears the set, which re-opens the instance to all languages.
	Update(ctx context.Context, codes []string) error
}

type languages struct {
	db *bun.DB
}

var (
	_ Languages      = (*languages)(nil)
	_ LanguagePolicy = (*languages)(nil)
)

func NewLanguagesRepository(db *bun.DB) Languages {
	return &languages{db: db}
}

func (l *languages) Allows(ctx context.Context, language string) (bool, error) {
	total, err := l.db.NewSelect().
		Model((*InstanceLanguage)(nil)).
		Count(ctx)
	if err != nil {
		return false, err
	}
	if total == 0 {
		return true, nil
	}

	count, err := l.db.NewSelect().
		Model((*InstanceLanguage)(nil)).
		Where("code = ?", language).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (l *languages) List(ctx context.Context) ([]InstanceLanguage, error) {
	var records []InstanceLanguage
	err := l.db.NewSelect().
		Model(&records).
		Order("code ASC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}
	return records, nil
}

func (l *languages) Update(ctx context.Context, codes []string) error {
	return l.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*InstanceLanguage)(nil)).
			Where("1 = 1").
			Exec(ctx); err != nil {
			return err
		}

		for _, code := range codes {
			record := &InstanceLanguage{
				ID:   uuid.New(),
				Code: code,
			}
			if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
