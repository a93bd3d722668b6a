package service

import (
	"context"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/middleware/requestid"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

type facultyLister interface {
	ListByDepartment(ctx context.Context, departmentID string) ([]models.Faculty, error)
}

type liveTimetableReader interface {
	ListLive(ctx context.Context, departmentID string) ([]models.Timetable, error)
}

type acceptedSubstituteReader interface {
	ListAcceptedSubstitutes(ctx context.Context, date, slotID string) ([]string, error)
}

// SubstituteService finds faculty free to cover a dated period.
type SubstituteService struct {
	faculty    facultyLister
	timetables liveTimetableReader
	accepted   acceptedSubstituteReader
	logger     *zap.Logger
}

// NewSubstituteService constructs the finder.
func NewSubstituteService(faculty facultyLister, timetables liveTimetableReader, accepted acceptedSubstituteReader, logger *zap.Logger) *SubstituteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubstituteService{faculty: faculty, timetables: timetables, accepted: accepted, logger: logger}
}

// FindAvailable returns department faculty, minus the requester, who neither teach in any live
// timetable at that weekday/period nor already accepted a substitution for that date/period.
// An empty departmentID searches every department. Without a live timetable the finder fails
// open and only the accepted set is excluded.
func (s *SubstituteService) FindAvailable(ctx context.Context, departmentID, date, periodID, requesterID string) ([]models.Faculty, error) {
	day, period, err := resolveSlot(date, periodID)
	if err != nil {
		return nil, err
	}

	roster, err := s.faculty.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	roster = lo.Filter(roster, func(f models.Faculty, _ int) bool {
		return f.ID != requesterID && !f.IsPlaceholder()
	})

	busy := map[string]struct{}{}

	live, err := s.timetables.ListLive(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load live timetables")
	}
	if len(live) == 0 {
		s.logger.Warn("no live timetable, substitute search fails open",
			zap.String("department_id", departmentID),
			zap.String("date", date),
			zap.String("period", period),
			requestid.Field(ctx),
		)
	}
	byName := lo.SliceToMap(roster, func(f models.Faculty) (string, string) {
		return models.NormalizePersonName(f.Name), f.ID
	})
	for _, timetable := range live {
		entry := timetable.Schedule.Entry(day, period)
		if entry == nil || entry.FacultyName == models.CancelledFacultyName {
			continue
		}
		markBusy(busy, byName, entry.FacultyID, entry.FacultyName)
		markBusy(busy, byName, entry.SecondaryFacultyID, entry.SecondaryFacultyName)
	}

	if s.accepted != nil {
		ids, err := s.accepted.ListAcceptedSubstitutes(ctx, date, period)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load accepted substitutions")
		}
		for _, id := range ids {
			busy[id] = struct{}{}
		}
	}

	free := lo.Filter(roster, func(f models.Faculty, _ int) bool {
		_, taken := busy[f.ID]
		return !taken
	})
	return free, nil
}

func markBusy(busy map[string]struct{}, byName map[string]string, id, name string) {
	if id != "" {
		busy[id] = struct{}{}
		return
	}
	if name == "" {
		return
	}
	if resolved, ok := byName[models.NormalizePersonName(name)]; ok {
		busy[resolved] = struct{}{}
	}
}

// resolveSlot validates a date and period id and returns the weekday and canonical period key.
func resolveSlot(date, periodID string) (string, string, error) {
	parsed, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
	}
	n, err := models.ParsePeriodKey(periodID)
	if err != nil {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "periodId must look like P3")
	}
	return models.WeekdayName(parsed), models.PeriodKey(n), nil
}
