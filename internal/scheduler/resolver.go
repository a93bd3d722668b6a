package scheduler

import (
	"github.com/samber/lo"

	"github.com/noah-isme/timetable-api/internal/models"
)

// ResolutionSource records how a subject's faculty was found.
type ResolutionSource string

const (
	ResolvedByID         ResolutionSource = "id"
	ResolvedByName       ResolutionSource = "name"
	ResolvedByDepartment ResolutionSource = "department"
	Unresolved           ResolutionSource = "unresolved"
)

// FallbackRecord flags a subject whose faculty was not resolved by stable id.
type FallbackRecord struct {
	SubjectID           string           `json:"subjectId"`
	SubjectName         string           `json:"subjectName"`
	Secondary           bool             `json:"secondary,omitempty"`
	RequestedFacultyID  string           `json:"requestedFacultyId,omitempty"`
	RequestedFaculty    string           `json:"requestedFaculty,omitempty"`
	ResolvedFacultyID   string           `json:"resolvedFacultyId,omitempty"`
	ResolvedFacultyName string           `json:"resolvedFacultyName,omitempty"`
	Source              ResolutionSource `json:"source"`
}

// facultyResolver maps subject faculty references to roster entries.
// The pool order drives the department fallback, so trials shuffle it for diversity.
type facultyResolver struct {
	pool   []*models.Faculty
	byID   map[string]*models.Faculty
	byName map[string]*models.Faculty
	policy FallbackPolicy
}

func newFacultyResolver(pool []*models.Faculty, policy FallbackPolicy) *facultyResolver {
	eligible := lo.Filter(pool, func(f *models.Faculty, _ int) bool {
		return f != nil && !f.IsPlaceholder()
	})
	r := &facultyResolver{
		pool:   eligible,
		byID:   make(map[string]*models.Faculty, len(eligible)),
		byName: make(map[string]*models.Faculty, len(eligible)),
		policy: policy,
	}
	for _, f := range eligible {
		if f.ID != "" {
			r.byID[f.ID] = f
		}
		if _, seen := r.byName[f.Name]; !seen {
			r.byName[f.Name] = f
		}
	}
	return r
}

// primary resolves the main faculty: id, exact name, then department when allowed.
func (r *facultyResolver) primary(subject *models.Subject) (*models.Faculty, ResolutionSource) {
	if f, src := r.direct(subject.FacultyID, subject.FacultyName); f != nil {
		return f, src
	}
	if r.policy != FallbackDepartment {
		return nil, Unresolved
	}
	f, ok := lo.Find(r.pool, func(f *models.Faculty) bool {
		return f.DepartmentID == subject.DepartmentID
	})
	if !ok {
		return nil, Unresolved
	}
	return f, ResolvedByDepartment
}

// secondary resolves a co-teacher by id or name only. It never takes the department fallback.
func (r *facultyResolver) secondary(subject *models.Subject) (*models.Faculty, ResolutionSource) {
	if !subject.HasSecondaryFaculty() {
		return nil, Unresolved
	}
	return r.direct(subject.SecondaryFacultyID, subject.SecondaryFacultyName)
}

func (r *facultyResolver) direct(id, name string) (*models.Faculty, ResolutionSource) {
	if id != "" {
		if f, ok := r.byID[id]; ok {
			return f, ResolvedByID
		}
	}
	if name != "" && !models.IsPlaceholderFacultyName(name) {
		if f, ok := r.byName[name]; ok {
			return f, ResolvedByName
		}
	}
	return nil, Unresolved
}

func fallbackRecord(subject *models.Subject, secondary bool, f *models.Faculty, src ResolutionSource) FallbackRecord {
	rec := FallbackRecord{
		SubjectID:          subject.ID,
		SubjectName:        subject.Name,
		Secondary:          secondary,
		RequestedFacultyID: subject.FacultyID,
		RequestedFaculty:   subject.FacultyName,
		Source:             src,
	}
	if secondary {
		rec.RequestedFacultyID = subject.SecondaryFacultyID
		rec.RequestedFaculty = subject.SecondaryFacultyName
	}
	if f != nil {
		rec.ResolvedFacultyID = f.ID
		rec.ResolvedFacultyName = f.Name
	}
	return rec
}
