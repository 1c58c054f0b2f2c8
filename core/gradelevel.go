package core

// GradeLevel is the cohort/year classification used to auto-match students
// to subjects.
type GradeLevel string

const (
	GradeYear1 GradeLevel = "year_1"
	GradeYear2 GradeLevel = "year_2"
	GradeYear3 GradeLevel = "year_3"
)

var GradeLevels = []GradeLevel{GradeYear1, GradeYear2, GradeYear3}

func (g GradeLevel) Valid() bool {
	for _, lvl := range GradeLevels {
		if g == lvl {
			return true
		}
	}
	return false
}

func (g GradeLevel) String() string { return string(g) }
