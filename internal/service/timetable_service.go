package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/middleware/requestid"
)

type subjectLister interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error)
}

type facultyDirectory interface {
	ListByDepartment(ctx context.Context, departmentID string) ([]models.Faculty, error)
	FindByID(ctx context.Context, id string) (*models.Faculty, error)
}

type classroomLister interface {
	List(ctx context.Context) ([]models.Classroom, error)
}

type candidateGenerator interface {
	GenerateCandidates(ctx context.Context, entities scheduler.Entities, count int, seed int64) ([]scheduler.Candidate, error)
}

// TimetableServiceConfig governs generation and publishing.
type TimetableServiceConfig struct {
	Candidates        int
	ProposalTTL       time.Duration
	CacheTTL          time.Duration
	DefaultRegulation string
}

// TimetableService generates candidates, publishes versions and serves live timetables.
type TimetableService struct {
	subjects   subjectLister
	faculty    facultyDirectory
	classrooms classroomLister
	timetables timetableStore
	generator  candidateGenerator
	tx         txProvider
	cache      *CacheService
	notifier   Notifier
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	store      *generationStore
	cfg        TimetableServiceConfig
	now        func() time.Time
}

// NewTimetableService wires timetable dependencies.
func NewTimetableService(
	subjects subjectLister,
	faculty facultyDirectory,
	classrooms classroomLister,
	timetables timetableStore,
	generator candidateGenerator,
	tx txProvider,
	cache *CacheService,
	notifier Notifier,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Candidates <= 0 {
		cfg.Candidates = 5
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.DefaultRegulation == "" {
		cfg.DefaultRegulation = "R23"
	}
	return &TimetableService{
		subjects:   subjects,
		faculty:    faculty,
		classrooms: classrooms,
		timetables: timetables,
		generator:  generator,
		tx:         tx,
		cache:      cache,
		notifier:   notifier,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		store:      newGenerationStore(cfg.ProposalTTL),
		cfg:        cfg,
		now:        time.Now,
	}
}

// Generate loads the section's entities and returns ranked candidates, keeping them for publish.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}

	entities, err := s.loadEntities(ctx, req)
	if err != nil {
		return nil, err
	}

	count := req.Candidates
	if count <= 0 {
		count = s.cfg.Candidates
	}
	seed := s.now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}

	start := time.Now()
	candidates, err := s.generator.GenerateCandidates(ctx, entities, count, seed)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate timetable candidates")
	}
	if len(candidates) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInternal, "generator returned no candidates")
	}
	s.metrics.ObserveGeneration(req.DepartmentID, len(candidates), candidates[0].Score, time.Since(start))

	groupKey := models.TimetableGroupKey(req.DepartmentID, req.Year, req.Semester, req.Section)
	best := candidates[0]
	for _, unfilled := range best.Unfilled {
		s.logger.Warn("unfilled demand",
			zap.String("group_key", groupKey),
			zap.String("subject_id", unfilled.SubjectID),
			zap.String("subject", unfilled.SubjectName),
			zap.Int("periods", unfilled.Periods),
			zap.String("reason", unfilled.Reason),
			requestid.Field(ctx),
		)
	}
	if len(best.Fallbacks) > 0 {
		s.logger.Warn("faculty resolved by fallback", zap.String("group_key", groupKey), zap.Int("subjects", len(best.Fallbacks)))
	}

	gen := generation{
		ID:         uuid.NewString(),
		GroupKey:   groupKey,
		Candidates: candidates,
		CreatedAt:  s.now().UTC(),
	}
	s.store.Save(gen)

	return &dto.GenerateTimetableResponse{
		GenerationID: gen.ID,
		GroupKey:     groupKey,
		ExpiresAt:    gen.CreatedAt.Add(s.store.ttl),
		Candidates:   candidates,
	}, nil
}

func (s *TimetableService) loadEntities(ctx context.Context, req dto.GenerateTimetableRequest) (scheduler.Entities, error) {
	subjects, err := s.subjects.List(ctx, models.SubjectFilter{DepartmentID: req.DepartmentID, Year: req.Year})
	if err != nil {
		return scheduler.Entities{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	subjects = lo.Filter(subjects, func(subject models.Subject, _ int) bool {
		return semesterMatches(subject.Semester, req.Year, req.Semester)
	})
	if len(subjects) == 0 {
		return scheduler.Entities{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "no subjects found for this department, year and semester")
	}

	faculty, err := s.faculty.ListByDepartment(ctx, req.DepartmentID)
	if err != nil {
		return scheduler.Entities{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	if len(req.AvailableFacultyIDs) > 0 {
		allowed := lo.SliceToMap(req.AvailableFacultyIDs, func(id string) (string, struct{}) { return id, struct{}{} })
		faculty = lo.Filter(faculty, func(f models.Faculty, _ int) bool {
			_, ok := allowed[f.ID]
			return ok
		})
	}
	faculty = lo.Filter(faculty, func(f models.Faculty, _ int) bool { return !f.IsPlaceholder() })

	rooms, err := s.classrooms.List(ctx)
	if err != nil {
		return scheduler.Entities{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classrooms")
	}
	if len(rooms) == 0 {
		return scheduler.Entities{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "no classrooms available")
	}

	return scheduler.Entities{Subjects: subjects, Faculty: faculty, Classrooms: rooms}, nil
}

// semesterMatches accepts the requested semester, its relative form (1 or 2) or its
// absolute form ((year-1)*2 + relative).
func semesterMatches(subjectSemester, year, requested int) bool {
	relative := 2
	if requested%2 == 1 {
		relative = 1
	}
	absolute := (year-1)*2 + relative
	return subjectSemester == requested || subjectSemester == relative || subjectSemester == absolute
}

// Publish stores a new live version for the group from a stored candidate or an inline schedule.
func (s *TimetableService) Publish(ctx context.Context, req dto.PublishTimetableRequest, publishedBy string) (*models.Timetable, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid publish payload")
	}
	groupKey := models.TimetableGroupKey(req.DepartmentID, req.Year, req.Semester, req.Section)

	meta := models.TimetableMeta{
		Regulation:    lo.Ternary(req.Regulation == "", s.cfg.DefaultRegulation, req.Regulation),
		RoomNo:        req.RoomNo,
		ClassIncharge: req.ClassIncharge,
		Wef:           req.Wef,
		PublishedAt:   s.now().UTC(),
		PublishedBy:   publishedBy,
	}

	var schedule models.Schedule
	switch {
	case req.GenerationID != "":
		gen, ok := s.store.Get(req.GenerationID)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "generation not found or expired")
		}
		if gen.GroupKey != groupKey {
			return nil, appErrors.Clone(appErrors.ErrValidation, "generation belongs to a different section")
		}
		candidate, found := lo.Find(gen.Candidates, func(c scheduler.Candidate) bool { return c.ID == req.CandidateID })
		if !found {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		schedule = candidate.Schedule.Clone()
		meta.Score = float64(candidate.Score)
		meta.Conflicts = candidate.Conflicts
		meta.GenerationID = gen.ID
		meta.CandidateID = candidate.ID
	case len(req.Schedule) > 0:
		schedule = req.Schedule.Clone()
		if req.Score != nil {
			meta.Score = *req.Score
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "generationId and candidateId or an inline schedule is required")
	}
	meta.Subjects = scheduleSubjects(schedule)

	record := &models.Timetable{
		GroupKey:     groupKey,
		DepartmentID: req.DepartmentID,
		Year:         req.Year,
		Semester:     req.Semester,
		Section:      req.Section,
		Schedule:     schedule,
	}
	if err := record.EncodeMeta(meta); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable metadata")
	}

	if err := promoteVersions(ctx, s.tx, s.timetables, record); err != nil {
		return nil, err
	}
	if req.GenerationID != "" {
		s.store.Delete(req.GenerationID)
	}
	_ = s.cache.Invalidate(ctx, LiveTimetablePattern)

	s.logger.Info("timetable published",
		zap.String("timetable_id", record.ID),
		zap.String("group_key", groupKey),
		zap.Int("version", record.Version),
		zap.String("published_by", publishedBy),
	)
	s.announcePublish(ctx, record)
	return record, nil
}

func (s *TimetableService) announcePublish(ctx context.Context, record *models.Timetable) {
	if s.notifier == nil {
		return
	}
	message := fmt.Sprintf("New timetable published for Year %d, Semester %d, Section %s", record.Year, record.Semester, record.Section)
	link := fmt.Sprintf("/timetable?departmentId=%s&year=%d&semester=%d&section=%s", record.DepartmentID, record.Year, record.Semester, record.Section)

	faculty, err := s.faculty.ListByDepartment(ctx, record.DepartmentID)
	if err != nil {
		s.logger.Warn("failed to load faculty for publish notification", zap.String("department_id", record.DepartmentID), zap.Error(err))
	}
	for _, f := range faculty {
		if f.IsPlaceholder() {
			continue
		}
		s.notifier.Notify(ctx, models.Notification{
			RecipientID: f.ID,
			Title:       "Timetable Published",
			Message:     message,
			Type:        models.NotificationTypeTimetable,
			Link:        link,
			RelatedID:   record.ID,
		})
	}
	s.notifier.NotifyRole(ctx, models.RoleHOD, record.DepartmentID, models.Notification{
		Title:     "Timetable Published",
		Message:   "DEPT ALERT: " + message,
		Type:      models.NotificationTypeTimetable,
		Link:      link,
		RelatedID: record.ID,
	})
}

func scheduleSubjects(schedule models.Schedule) []string {
	seen := map[string]struct{}{}
	for _, slots := range schedule {
		for _, entry := range slots {
			if entry == nil || !entry.Type.IsAcademic() || entry.SubjectName == "" {
				continue
			}
			seen[entry.SubjectName] = struct{}{}
		}
	}
	names := lo.Keys(seen)
	sort.Strings(names)
	return names
}

// Live returns the live version of a group, from cache when possible. The flag reports a cache hit.
func (s *TimetableService) Live(ctx context.Context, query dto.TimetableQuery) (*models.Timetable, bool, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable query")
	}
	groupKey := models.TimetableGroupKey(query.DepartmentID, query.Year, query.Semester, query.Section)
	key := LiveTimetableKey(groupKey)

	var cached models.Timetable
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	live, err := s.timetables.FindLive(ctx, groupKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "no live timetable for this section")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load live timetable")
	}
	_ = s.cache.Set(ctx, key, live, s.cfg.CacheTTL)
	return live, false, nil
}

// Versions lists every version of a group, newest first.
func (s *TimetableService) Versions(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable query")
	}
	groupKey := models.TimetableGroupKey(query.DepartmentID, query.Year, query.Semester, query.Section)
	versions, err := s.timetables.ListByGroup(ctx, groupKey)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable versions")
	}
	return versions, nil
}

// Get returns one version by id.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.Timetable, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}
	timetable, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return timetable, nil
}

// FacultyConsolidated merges every live timetable of the department into one week for a faculty member.
func (s *TimetableService) FacultyConsolidated(ctx context.Context, query dto.FacultyConsolidatedQuery) (*dto.FacultyConsolidatedResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid consolidated query")
	}
	if query.FacultyID == "" && query.FacultyName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "facultyId or facultyName is required")
	}

	name := query.FacultyName
	if name == "" {
		member, err := s.faculty.FindByID(ctx, query.FacultyID)
		switch {
		case err == nil:
			name = member.Name
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
		}
	}

	live, err := s.timetables.ListLive(ctx, query.DepartmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load live timetables")
	}

	resp := &dto.FacultyConsolidatedResponse{
		FacultyID:   query.FacultyID,
		FacultyName: name,
		Schedule:    make(map[string]map[string]*dto.ConsolidatedCell, len(models.Weekdays)),
		Sources:     []string{},
	}
	for _, day := range models.Weekdays {
		resp.Schedule[day] = map[string]*dto.ConsolidatedCell{}
	}

	target := models.NormalizePersonName(name)
	for _, timetable := range live {
		contributed := false
		for day, slots := range timetable.Schedule {
			for period, entry := range slots {
				if !ownsSlot(entry, query.FacultyID, target) {
					continue
				}
				if resp.Schedule[day] == nil {
					resp.Schedule[day] = map[string]*dto.ConsolidatedCell{}
				}
				mergeCell(resp.Schedule[day], models.NormalizePeriodKey(period), entry, timetable.ClassLabel())
				contributed = true
			}
		}
		if contributed {
			resp.Sources = append(resp.Sources, timetable.ID)
		}
	}
	return resp, nil
}

func ownsSlot(entry *models.SlotEntry, facultyID, normalizedName string) bool {
	if entry == nil {
		return false
	}
	if entry.TaughtBy(facultyID, "") {
		return true
	}
	if normalizedName == "" {
		return false
	}
	return models.NormalizePersonName(entry.FacultyName) == normalizedName ||
		(entry.SecondaryFacultyName != "" && models.NormalizePersonName(entry.SecondaryFacultyName) == normalizedName)
}

func mergeCell(day map[string]*dto.ConsolidatedCell, period string, entry *models.SlotEntry, classLabel string) {
	existing, ok := day[period]
	if !ok {
		day[period] = &dto.ConsolidatedCell{
			SubjectName: entry.SubjectName,
			ClassLabel:  classLabel,
			RoomNumber:  entry.RoomNumber,
			Type:        entry.Type,
		}
		return
	}
	if !containsPart(existing.SubjectName, " / ", entry.SubjectName) {
		existing.SubjectName += " / " + entry.SubjectName
	}
	if !containsPart(existing.ClassLabel, " & ", classLabel) {
		existing.ClassLabel += " & " + classLabel
	}
}

func containsPart(joined, sep, part string) bool {
	return lo.Contains(strings.Split(joined, sep), part)
}

// --- Generation store ---

type generation struct {
	ID         string
	GroupKey   string
	Candidates []scheduler.Candidate
	CreatedAt  time.Time
}

type generationStore struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]generation
}

func newGenerationStore(ttl time.Duration) *generationStore {
	return &generationStore{ttl: ttl, items: make(map[string]generation)}
}

func (s *generationStore) Save(gen generation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[gen.ID] = gen
	s.evictLocked()
}

func (s *generationStore) Get(id string) (generation, bool) {
	s.mu.RLock()
	gen, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return generation{}, false
	}
	if time.Since(gen.CreatedAt) > s.ttl {
		s.Delete(id)
		return generation{}, false
	}
	return gen, true
}

func (s *generationStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// evictLocked drops expired generations so abandoned runs do not accumulate.
func (s *generationStore) evictLocked() {
	for id, gen := range s.items {
		if time.Since(gen.CreatedAt) > s.ttl {
			delete(s.items, id)
		}
	}
}
