package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/middleware/requestid"
)

type rearrangementStore interface {
	Create(ctx context.Context, req *models.RearrangementRequest) error
	FindByID(ctx context.Context, id string) (*models.RearrangementRequest, error)
	List(ctx context.Context, filter models.RearrangementFilter) ([]models.RearrangementRequest, error)
	UpdateStatus(ctx context.Context, id string, status models.RearrangementStatus, respondedAt time.Time) error
}

type substituteFinder interface {
	FindAvailable(ctx context.Context, departmentID, date, periodID, requesterID string) ([]models.Faculty, error)
}

// RearrangementService runs the two substitution workflows: the pending request a substitute
// answers, and the direct reassignment applied for a whole-day absence.
type RearrangementService struct {
	repo        rearrangementStore
	faculty     facultyDirectory
	timetables  timetableStore
	substitutes substituteFinder
	tx          txProvider
	cache       *CacheService
	notifier    Notifier
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewRearrangementService wires the rearrangement workflows.
func NewRearrangementService(
	repo rearrangementStore,
	faculty facultyDirectory,
	timetables timetableStore,
	substitutes substituteFinder,
	tx txProvider,
	cache *CacheService,
	notifier Notifier,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *RearrangementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RearrangementService{
		repo:        repo,
		faculty:     faculty,
		timetables:  timetables,
		substitutes: substitutes,
		tx:          tx,
		cache:       cache,
		notifier:    notifier,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// Create opens a pending request asking the substitute to cover one of the requester's periods.
func (s *RearrangementService) Create(ctx context.Context, req dto.CreateRearrangementRequest, requesterID string) (*models.RearrangementRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rearrangement payload")
	}
	day, period, err := resolveSlot(req.Date, req.PeriodID)
	if err != nil {
		return nil, err
	}
	if !lo.Contains(models.Weekdays, day) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("no classes are held on %s", day))
	}
	if req.SubstituteFacultyID == requesterID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "substitute must differ from the requester")
	}

	requester, err := s.lookupFaculty(ctx, requesterID, "requester is not a faculty member")
	if err != nil {
		return nil, err
	}
	substitute, err := s.lookupFaculty(ctx, req.SubstituteFacultyID, "substitute not found")
	if err != nil {
		return nil, err
	}

	departmentID := lo.Ternary(req.DepartmentID == "", requester.DepartmentID, req.DepartmentID)
	record := &models.RearrangementRequest{
		Date:                  req.Date,
		DayOfWeek:             day,
		SlotID:                period,
		DepartmentID:          departmentID,
		RequesterFacultyID:    requester.ID,
		RequesterFacultyName:  requester.Name,
		SubstituteFacultyID:   substitute.ID,
		SubstituteFacultyName: substitute.Name,
		SubjectName:           req.SubjectName,
		ClassLabel:            req.ClassLabel,
		Status:                models.RearrangementStatusPending,
	}
	if record.SubjectName == "" || record.ClassLabel == "" {
		s.resolveContext(ctx, record, req.TimetableID, requester)
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create rearrangement request")
	}
	s.metrics.RecordRearrangement(string(models.RearrangementStatusPending))

	if s.notifier != nil {
		s.notifier.Notify(ctx, models.Notification{
			RecipientID: substitute.ID,
			Title:       "Substitution Request",
			Message: fmt.Sprintf("%s requested you to take %s for %s on %s (%s).",
				requester.Name, record.SubjectName, record.ClassLabel, record.Date, record.SlotID),
			Type:      models.NotificationTypeRequest,
			Link:      "/rearrangements/" + record.ID,
			RelatedID: record.ID,
		})
	}
	return record, nil
}

func (s *RearrangementService) lookupFaculty(ctx context.Context, id, missing string) (*models.Faculty, error) {
	member, err := s.faculty.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, missing)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	return member, nil
}

// resolveContext fills subject and class from the live timetable the requester teaches in.
// Failure leaves placeholders; the request is still created.
func (s *RearrangementService) resolveContext(ctx context.Context, record *models.RearrangementRequest, timetableID string, requester *models.Faculty) {
	var candidates []models.Timetable
	if timetableID != "" {
		if timetable, err := s.timetables.FindByID(ctx, timetableID); err == nil {
			candidates = append(candidates, *timetable)
		}
	}
	if len(candidates) == 0 {
		live, err := s.timetables.ListLive(ctx, record.DepartmentID)
		if err == nil {
			candidates = live
		}
	}

	name := models.NormalizePersonName(requester.Name)
	for _, timetable := range candidates {
		entry := timetable.Schedule.Entry(record.DayOfWeek, record.SlotID)
		if !ownsSlot(entry, requester.ID, name) {
			continue
		}
		if record.SubjectName == "" {
			record.SubjectName = entry.SubjectName
		}
		if record.ClassLabel == "" {
			record.ClassLabel = timetable.ClassLabel()
		}
		id := timetable.ID
		record.SourceTimetableID = &id
		return
	}

	s.logger.Warn("rearrangement context unresolved, using placeholders",
		zap.String("requester_id", requester.ID),
		zap.String("date", record.Date),
		zap.String("period", record.SlotID),
		requestid.Field(ctx),
	)
	if record.SubjectName == "" {
		record.SubjectName = models.PlaceholderSubjectName
	}
	if record.ClassLabel == "" {
		record.ClassLabel = models.PlaceholderClassLabel
	}
}

// Respond records the designated substitute's decision. Only pending requests may transition.
func (s *RearrangementService) Respond(ctx context.Context, id string, req dto.RespondRearrangementRequest, responderID string) (*models.RearrangementRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid response payload")
	}
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.SubstituteFacultyID != responderID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the designated substitute may respond")
	}
	if record.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "rearrangement request already processed")
	}

	respondedAt := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, req.Decision, respondedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "rearrangement request already processed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update rearrangement request")
	}
	record.Status = req.Decision
	record.RespondedAt = &respondedAt
	s.metrics.RecordRearrangement(string(req.Decision))

	if s.notifier != nil {
		s.notifier.MarkActionTaken(ctx, record.SubstituteFacultyID, record.ID)
		decision := strings.ToUpper(string(req.Decision))
		s.notifier.Notify(ctx, models.Notification{
			RecipientID: record.RequesterFacultyID,
			Title:       lo.Ternary(req.Decision == models.RearrangementStatusAccepted, "Substitution Accepted", "Substitution Rejected"),
			Message: fmt.Sprintf("%s has %s your request to cover %s for %s on %s (%s).",
				record.SubstituteFacultyName, decision, record.SubjectName, record.ClassLabel, record.Date, record.SlotID),
			Type:      models.NotificationTypeResponse,
			Link:      "/rearrangements/" + record.ID,
			RelatedID: record.ID,
		})
		if req.Decision == models.RearrangementStatusAccepted {
			alert := models.Notification{
				Title: "Substitution Confirmed",
				Message: fmt.Sprintf("%s will cover %s's %s for %s on %s (%s).",
					record.SubstituteFacultyName, record.RequesterFacultyName, record.SubjectName, record.ClassLabel, record.Date, record.SlotID),
				Type:      models.NotificationTypeInfo,
				Link:      "/admin/timetable",
				RelatedID: record.ID,
			}
			s.notifier.NotifyRole(ctx, models.RoleHOD, record.DepartmentID, alert)
			s.notifier.NotifyRole(ctx, models.RoleAdmin, "", alert)
		}
	}
	return record, nil
}

// Get returns one request.
func (s *RearrangementService) Get(ctx context.Context, id string) (*models.RearrangementRequest, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rearrangement id is required")
	}
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "rearrangement request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rearrangement request")
	}
	return record, nil
}

// List returns requests matching the query.
func (s *RearrangementService) List(ctx context.Context, query dto.RearrangementQuery) ([]models.RearrangementRequest, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rearrangement query")
	}
	filter := models.RearrangementFilter{
		DepartmentID: query.DepartmentID,
		Date:         query.Date,
		RequesterID:  query.RequesterID,
		SubstituteID: query.SubstituteID,
	}
	for _, raw := range splitCSV(query.Status) {
		status := models.RearrangementStatus(strings.ToLower(raw))
		switch status {
		case models.RearrangementStatusPending, models.RearrangementStatusAccepted, models.RearrangementStatusRejected:
			filter.Status = append(filter.Status, status)
		default:
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", raw))
		}
	}
	page, size, limit, offset := pageWindow(query.Page, query.PageSize)
	filter.Limit, filter.Offset = limit, offset

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rearrangement requests")
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: len(items)}, nil
}

// HandleFullDayAbsence reassigns every period the faculty member owns on date across all live
// timetables. Each affected section gets a new live version; previous versions are kept.
func (s *RearrangementService) HandleFullDayAbsence(ctx context.Context, facultyID, date string) (*dto.FullDayAbsenceResult, error) {
	parsed, err := time.Parse(DateLayout, date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
	}
	day := models.WeekdayName(parsed)
	result := &dto.FullDayAbsenceResult{FacultyID: facultyID, Date: date, Day: day, UpdatedSlots: []dto.UpdatedSlot{}, NewTimetableIDs: []string{}}
	if !lo.Contains(models.Weekdays, day) {
		return result, nil
	}

	absent, err := s.lookupFaculty(ctx, facultyID, "faculty not found")
	if err != nil {
		return nil, err
	}

	live, err := s.timetables.ListLive(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load live timetables")
	}
	sort.Slice(live, func(i, j int) bool { return live[i].GroupKey < live[j].GroupKey })

	name := models.NormalizePersonName(absent.Name)
	assigned := map[string]map[string]struct{}{}
	records := make([]*models.Timetable, 0)
	appliedAt := s.now().UTC()

	for _, timetable := range live {
		slots := timetable.Schedule[day]
		periods := ownedPeriods(slots, absent.ID, name)
		if len(periods) == 0 {
			continue
		}

		schedule := timetable.Schedule.Clone()
		changes := make([]string, 0, len(periods))
		updated := make([]dto.UpdatedSlot, 0, len(periods))
		for _, period := range periods {
			entry := schedule[day][period]
			substitute, err := s.pickSubstitute(ctx, absent, date, period, assigned[period])
			if err != nil {
				return nil, err
			}
			slot := dto.UpdatedSlot{
				GroupKey:    timetable.GroupKey,
				ClassLabel:  timetable.ClassLabel(),
				Day:         day,
				Period:      period,
				SubjectName: entry.SubjectName,
			}
			if substitute != nil {
				if assigned[period] == nil {
					assigned[period] = map[string]struct{}{}
				}
				assigned[period][substitute.ID] = struct{}{}
				substituteInto(entry, absent, substitute.ID, substitute.Name)
				slot.SubstituteFacultyID = substitute.ID
				slot.SubstituteFacultyName = substitute.Name
				slot.Outcome = dto.SlotOutcomeAssigned
				changes = append(changes, fmt.Sprintf("%s: %s %s -> %s", period, entry.SubjectName, absent.Name, substitute.Name))
			} else {
				substituteInto(entry, absent, "", models.CancelledFacultyName)
				slot.Outcome = dto.SlotOutcomeCancelled
				changes = append(changes, fmt.Sprintf("%s: %s cancelled", period, entry.SubjectName))
			}
			updated = append(updated, slot)
		}

		record, err := rearrangedVersion(timetable, schedule, models.RearrangementAudit{
			Date:      date,
			AppliedAt: appliedAt,
			FacultyID: absent.ID,
			Changes:   changes,
		})
		if err != nil {
			return nil, err
		}
		records = append(records, record)
		result.UpdatedSlots = append(result.UpdatedSlots, updated...)
	}

	if len(records) == 0 {
		return result, nil
	}
	if err := promoteVersions(ctx, s.tx, s.timetables, records...); err != nil {
		return nil, err
	}
	_ = s.cache.Invalidate(ctx, LiveTimetablePattern)

	groupToID := lo.SliceToMap(records, func(r *models.Timetable) (string, string) { return r.GroupKey, r.ID })
	for i := range result.UpdatedSlots {
		result.UpdatedSlots[i].TimetableID = groupToID[result.UpdatedSlots[i].GroupKey]
		s.metrics.RecordSubstitution(result.UpdatedSlots[i].Outcome)
	}
	for _, record := range records {
		result.NewTimetableIDs = append(result.NewTimetableIDs, record.ID)
	}

	s.logger.Info("full-day absence rearranged",
		zap.String("faculty_id", absent.ID),
		zap.String("date", date),
		zap.Int("changes", len(result.UpdatedSlots)),
		zap.Strings("timetable_ids", result.NewTimetableIDs),
	)
	s.announceAbsence(ctx, absent, result)
	return result, nil
}

// pickSubstitute prefers a free colleague from the same department, then anyone free.
func (s *RearrangementService) pickSubstitute(ctx context.Context, absent *models.Faculty, date, period string, taken map[string]struct{}) (*models.Faculty, error) {
	for _, departmentID := range []string{absent.DepartmentID, ""} {
		free, err := s.substitutes.FindAvailable(ctx, departmentID, date, period, absent.ID)
		if err != nil {
			return nil, err
		}
		for i := range free {
			if _, used := taken[free[i].ID]; !used {
				return &free[i], nil
			}
		}
	}
	return nil, nil
}

func ownedPeriods(slots models.DaySchedule, facultyID, normalizedName string) []string {
	periods := make([]string, 0)
	for key, entry := range slots {
		if ownsSlot(entry, facultyID, normalizedName) {
			periods = append(periods, key)
		}
	}
	sort.Slice(periods, func(i, j int) bool {
		a, _ := models.ParsePeriodKey(periods[i])
		b, _ := models.ParsePeriodKey(periods[j])
		return a < b
	})
	return periods
}

// substituteInto replaces the absent member's role in the entry, primary or secondary.
func substituteInto(entry *models.SlotEntry, absent *models.Faculty, id, name string) {
	secondary := entry.SecondaryFacultyID == absent.ID ||
		(entry.SecondaryFacultyID == "" && entry.SecondaryFacultyName != "" &&
			models.NormalizePersonName(entry.SecondaryFacultyName) == models.NormalizePersonName(absent.Name))
	primary := entry.FacultyID == absent.ID ||
		(entry.FacultyID == "" && models.NormalizePersonName(entry.FacultyName) == models.NormalizePersonName(absent.Name))
	if secondary && !primary {
		entry.SecondaryFacultyID = id
		entry.SecondaryFacultyName = name
	} else {
		entry.FacultyID = id
		entry.FacultyName = name
	}
	entry.IsSubstitution = true
	entry.OriginalFaculty = absent.Name
	entry.OriginalFacultyID = absent.ID
}

func rearrangedVersion(source models.Timetable, schedule models.Schedule, audit models.RearrangementAudit) (*models.Timetable, error) {
	meta, err := source.DecodeMeta()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read timetable metadata")
	}
	meta.IsRearranged = true
	meta.AffectedFaculty = append(meta.AffectedFaculty, audit)
	meta.PublishedAt = audit.AppliedAt

	originalID := source.ID
	date := audit.Date
	record := &models.Timetable{
		GroupKey:            source.GroupKey,
		DepartmentID:        source.DepartmentID,
		Year:                source.Year,
		Semester:            source.Semester,
		Section:             source.Section,
		Schedule:            schedule,
		OriginalTimetableID: &originalID,
		RearrangedForDate:   &date,
	}
	if err := record.EncodeMeta(meta); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable metadata")
	}
	return record, nil
}

func (s *RearrangementService) announceAbsence(ctx context.Context, absent *models.Faculty, result *dto.FullDayAbsenceResult) {
	if s.notifier == nil || len(result.UpdatedSlots) == 0 {
		return
	}
	s.notifier.NotifyRole(ctx, models.RoleAdmin, "", models.Notification{
		Title:   "Rearrangement Applied",
		Message: fmt.Sprintf("[ALERT] Rearrangement for %s: %d changes.", result.Date, len(result.UpdatedSlots)),
		Type:    models.NotificationTypeAlert,
		Link:    "/admin/notifications",
	})
	s.notifier.NotifyRole(ctx, models.RoleHOD, absent.DepartmentID, models.Notification{
		Title:   "Rearrangement Triggered",
		Message: fmt.Sprintf("Rearrangement Triggered for %s. Check schedule.", result.Date),
		Type:    models.NotificationTypeInfo,
		Link:    "/admin/timetable",
	})
	for _, slot := range result.UpdatedSlots {
		if slot.Outcome != dto.SlotOutcomeAssigned {
			continue
		}
		s.notifier.Notify(ctx, models.Notification{
			RecipientID: slot.SubstituteFacultyID,
			Title:       "Substitution Assigned",
			Message: fmt.Sprintf("You are covering %s for %s on %s (%s) in place of %s.",
				slot.SubjectName, slot.ClassLabel, result.Date, slot.Period, absent.Name),
			Type:      models.NotificationTypeInfo,
			Link:      "/timetable",
			RelatedID: slot.TimetableID,
		})
	}
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
