package federation

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Activities is the processed-ids record behind inbox deduplication.
type Activities interface {
	// MarkProcessed records the activity id and reports whether this call
	// inserted it. The check-and-insert rides on the unique constraint, so
	// concurrent duplicate deliveries see exactly one true.
	MarkProcessed(ctx context.Context, activityID string) (bool, error)
	WasProcessed(ctx context.Context, activityID string) (bool, error)
}

type activities struct {
	db *bun.DB
}

var _ Activities = (*activities)(nil)

func NewActivitiesRepository(db *bun.DB) Activities {
	return &activities{db: db}
}

func (a *activities) MarkProcessed(ctx context.Context, activityID string) (bool, error) {
	record := &ReceivedActivity{
		ID:         uuid.New(),
		ActivityID: activityID,
	}

	res, err := a.db.NewInsert().
		Model(record).
		On("CONFLICT DO NOTHING").
		Exec(ctx)

	if err != nil {
		return false, err
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return inserted == 1, nil
}

func (a *activities) WasProcessed(ctx context.Context, activityID string) (bool, error) {
	count, err := a.db.NewSelect().
		Model((*ReceivedActivity)(nil)).
		Where("activity_id = ?", activityID).
		Count(ctx)

	if err != nil {
		return false, err
	}
	return count > 0, nil
}
