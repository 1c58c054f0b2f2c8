package school

// StatusCode is the derived lifecycle state of a student-activity pair. It is
// always computed from the grade row's nullability, never persisted.
type StatusCode string

const (
	StatusPending   StatusCode = "pending"
	StatusSubmitted StatusCode = "submitted"
	StatusGraded    StatusCode = "graded"
)

// Status is the tagged result of deriving a pair's state: SubmittedBy is set
// for submitted, Grade for graded.
type Status struct {
	Code        StatusCode `json:"code"`
	SubmittedBy string     `json:"submitted_by,omitempty"`
	Grade       *float64   `json:"grade,omitempty"`
}

// DeriveStatus maps an ActivityGrade row (or its absence) to a Status.
// Grade presence takes precedence: a graded row is always reported as graded
// even when submission metadata is also present. A row with neither grade nor
// submitter derives pending; the API never produces such a row.
func DeriveStatus(g *ActivityGrade) Status {
	switch {
	case g == nil:
		return Status{Code: StatusPending}
	case g.Grade.Valid:
		grade := g.Grade.Float64
		return Status{Code: StatusGraded, Grade: &grade}
	case g.SubmittedBy.Valid:
		return Status{Code: StatusSubmitted, SubmittedBy: g.SubmittedBy.String}
	default:
		return Status{Code: StatusPending}
	}
}
