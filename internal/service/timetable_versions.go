package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type timetableStore interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error
	ArchiveLive(ctx context.Context, exec sqlx.ExtContext, groupKey, exceptID string) error
	SetLive(ctx context.Context, exec sqlx.ExtContext, id string) error
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	FindLive(ctx context.Context, groupKey string) (*models.Timetable, error)
	ListLive(ctx context.Context, departmentID string) ([]models.Timetable, error)
	ListByGroup(ctx context.Context, groupKey string) ([]models.Timetable, error)
}

// promoteVersions inserts each record as the next version of its group and makes it live,
// archiving the previous live version. All records commit or none do.
func promoteVersions(ctx context.Context, provider txProvider, repo timetableStore, records ...*models.Timetable) (err error) {
	if provider == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := provider.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, record := range records {
		if err = repo.CreateVersioned(ctx, tx, record); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable version")
		}
		if err = repo.ArchiveLive(ctx, tx, record.GroupKey, record.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive live timetable")
		}
		if err = repo.SetLive(ctx, tx, record.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				err = appErrors.Clone(appErrors.ErrConflict, "timetable version disappeared before publish")
				return err
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark timetable live")
		}
	}

	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
	}
	for _, record := range records {
		record.IsLive = true
		record.Status = models.TimetableStatusPublished
	}
	return nil
}
