// Package roster is the set of students enrolled in a course.
package roster

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/programme-lv/grader/internal/subm"
)

type Student struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

type Roster struct {
	ids   mapset.Set[string]
	names map[string]string
}

// New builds a roster. Student ids must be valid submission student ids and
// unique.
func New(students []Student) (*Roster, error) {
	r := &Roster{
		ids:   mapset.NewThreadUnsafeSet[string](),
		names: make(map[string]string, len(students)),
	}
	for _, s := range students {
		if !subm.ValidStudentID(s.ID) {
			return nil, fmt.Errorf("invalid student id %q in roster", s.ID)
		}
		if !r.ids.Add(s.ID) {
			return nil, fmt.Errorf("duplicate student id %q in roster", s.ID)
		}
		r.names[s.ID] = s.Name
	}
	return r, nil
}

func (r *Roster) Contains(studentID string) bool {
	return r.ids.Contains(studentID)
}

// NameOf returns the student's name or an empty string for unknown ids.
func (r *Roster) NameOf(studentID string) string {
	return r.names[studentID]
}

func (r *Roster) Len() int {
	return r.ids.Cardinality()
}

// IDs returns the student ids in lexical order.
func (r *Roster) IDs() []string {
	ids := r.ids.ToSlice()
	sort.Strings(ids)
	return ids
}
