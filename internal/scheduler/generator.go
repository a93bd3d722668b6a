package scheduler

import (
	"context"
	"math/rand"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/timetable-api/internal/models"
)

// Reasons recorded on unfilled demand.
const (
	ReasonNoFaculty   = "no faculty resolved"
	ReasonNoClassroom = "no classroom available"
	ReasonNoLabBlock  = "no legal lab block"
	ReasonNoPeriod    = "no legal period"
)

// Entities is the immutable input for one generation request.
type Entities struct {
	Subjects   []models.Subject   `json:"subjects"`
	Faculty    []models.Faculty   `json:"faculty"`
	Classrooms []models.Classroom `json:"classrooms"`
}

// UnfilledDemand records periods that could not be placed legally.
type UnfilledDemand struct {
	SubjectID   string             `json:"subjectId"`
	SubjectName string             `json:"subjectName"`
	Type        models.SubjectType `json:"type"`
	Periods     int                `json:"periods"`
	Reason      string             `json:"reason"`
}

// Candidate is one scored trial.
type Candidate struct {
	ID             string           `json:"id"`
	Seed           int64            `json:"seed"`
	Score          int              `json:"score"`
	PlacementScore int              `json:"placementScore"`
	Schedule       models.Schedule  `json:"schedule"`
	Conflicts      []string         `json:"conflicts"`
	Unfilled       []UnfilledDemand `json:"unfilled"`
	Fallbacks      []FallbackRecord `json:"fallbacks"`
	LabsPlaced     int              `json:"labsPlaced"`
	TheoryPlaced   int              `json:"theoryPlaced"`
	ExtraPlaced    int              `json:"extraPlaced"`
}

// Generator runs independent shuffle-then-greedy trials.
type Generator struct {
	cfg      Config
	parallel bool
}

// NewGenerator builds a generator. When parallel is set, trials run concurrently.
func NewGenerator(cfg Config, parallel bool) *Generator {
	return &Generator{cfg: cfg.withDefaults(), parallel: parallel}
}

// Config returns the effective configuration.
func (g *Generator) Config() Config { return g.cfg }

// GenerateCandidates runs count trials. Trial i draws from its own source seeded with seed+i,
// so the result is reproducible for a seed. Candidates are sorted by score descending.
func (g *Generator) GenerateCandidates(ctx context.Context, entities Entities, count int, seed int64) ([]Candidate, error) {
	if count <= 0 {
		count = 1
	}
	results := make([]Candidate, count)

	if !g.parallel {
		for i := 0; i < count; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = g.trial(seed+int64(i), entities)
		}
	} else {
		eg, egCtx := errgroup.WithContext(ctx)
		for i := 0; i < count; i++ {
			i := i
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				results[i] = g.trial(seed+int64(i), entities)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// trial builds one candidate from scratch. It shares nothing mutable with other trials.
func (g *Generator) trial(seed int64, entities Entities) Candidate {
	rng := rand.New(rand.NewSource(seed))

	subjects := make([]*models.Subject, 0, len(entities.Subjects))
	for i := range entities.Subjects {
		s := entities.Subjects[i]
		subjects = append(subjects, &s)
	}
	faculty := make([]*models.Faculty, 0, len(entities.Faculty))
	for i := range entities.Faculty {
		f := entities.Faculty[i]
		faculty = append(faculty, &f)
	}
	rng.Shuffle(len(subjects), func(i, j int) { subjects[i], subjects[j] = subjects[j], subjects[i] })
	rng.Shuffle(len(faculty), func(i, j int) { faculty[i], faculty[j] = faculty[j], faculty[i] })

	labRoom, lectureRoom := pickRooms(entities.Classrooms)
	resolver := newFacultyResolver(faculty, g.cfg.FacultyFallback)
	grid := NewGrid(g.cfg.Days, g.cfg.PeriodsPerDay)
	loads := NewLoads(len(g.cfg.Days))

	cand := Candidate{
		ID:        uuid.NewString(),
		Seed:      seed,
		Unfilled:  make([]UnfilledDemand, 0),
		Fallbacks: make([]FallbackRecord, 0),
	}
	unfilledIdx := make(map[string]int)
	addUnfilled := func(s *models.Subject, periods int, reason string) {
		key := s.ID + "|" + reason
		if idx, ok := unfilledIdx[key]; ok {
			cand.Unfilled[idx].Periods += periods
			return
		}
		unfilledIdx[key] = len(cand.Unfilled)
		cand.Unfilled = append(cand.Unfilled, UnfilledDemand{
			SubjectID:   s.ID,
			SubjectName: s.Name,
			Type:        s.Type,
			Periods:     periods,
			Reason:      reason,
		})
	}
	resolvePrimary := func(s *models.Subject) *models.Faculty {
		f, src := resolver.primary(s)
		if src != ResolvedByID {
			cand.Fallbacks = append(cand.Fallbacks, fallbackRecord(s, false, f, src))
		}
		return f
	}

	labPlacer := NewLabPlacer(g.cfg, rng)
	for _, s := range subjects {
		if !s.IsLab() {
			continue
		}
		primary := resolvePrimary(s)
		if primary == nil {
			addUnfilled(s, models.LabBlockSize, ReasonNoFaculty)
			continue
		}
		var secondary *models.Faculty
		if s.HasSecondaryFaculty() {
			f, src := resolver.secondary(s)
			if src != ResolvedByID {
				cand.Fallbacks = append(cand.Fallbacks, fallbackRecord(s, true, f, src))
			}
			secondary = f
		}
		if labRoom == nil {
			addUnfilled(s, models.LabBlockSize, ReasonNoClassroom)
			continue
		}
		if labPlacer.Place(grid, loads, s, primary, secondary, labRoom) {
			cand.LabsPlaced++
			continue
		}
		addUnfilled(s, models.LabBlockSize, ReasonNoLabBlock)
	}

	theoryPlacer := NewTheoryPlacer(g.cfg)
	var instances, assignments []theoryAssignment
	for _, s := range subjects {
		if !s.IsTheory() {
			continue
		}
		hours := s.HoursPerWeek
		if hours <= 0 {
			hours = g.cfg.DefaultTheoryHours
		}
		f := resolvePrimary(s)
		if f == nil {
			addUnfilled(s, hours, ReasonNoFaculty)
			continue
		}
		if lectureRoom == nil {
			addUnfilled(s, hours, ReasonNoClassroom)
			continue
		}
		a := theoryAssignment{subject: s, faculty: f, room: lectureRoom}
		assignments = append(assignments, a)
		for i := 0; i < hours; i++ {
			instances = append(instances, a)
		}
	}
	rng.Shuffle(len(instances), func(i, j int) { instances[i], instances[j] = instances[j], instances[i] })
	for _, inst := range instances {
		if theoryPlacer.PlaceInstance(grid, loads, inst.subject, inst.faculty, inst.room, models.SlotTypeTheory) {
			cand.TheoryPlaced++
			continue
		}
		addUnfilled(inst.subject, 1, ReasonNoPeriod)
	}

	cand.ExtraPlaced = NewGapFiller(g.cfg, rng).Fill(grid, loads, assignments)

	cand.Score, cand.Conflicts = NewEvaluator(g.cfg).Evaluate(grid, subjects, faculty)
	cand.PlacementScore = cand.LabsPlaced*100 + cand.TheoryPlaced*10
	cand.Schedule = grid.Schedule()
	return cand
}

// pickRooms returns the first lab room and the first lecture room, each falling back to the
// first classroom.
func pickRooms(rooms []models.Classroom) (lab, lecture *models.Classroom) {
	if len(rooms) == 0 {
		return nil, nil
	}
	for i := range rooms {
		if lab == nil && rooms[i].IsLab() {
			lab = &rooms[i]
		}
		if lecture == nil && !rooms[i].IsLab() {
			lecture = &rooms[i]
		}
	}
	if lab == nil {
		lab = &rooms[0]
	}
	if lecture == nil {
		lecture = &rooms[0]
	}
	return lab, lecture
}
