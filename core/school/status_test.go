package school

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name string
		row  *ActivityGrade
		want Status
	}{
		{name: "no row is pending", row: nil, want: Status{Code: StatusPending}},
		{
			name: "empty row is pending",
			row:  &ActivityGrade{},
			want: Status{Code: StatusPending},
		},
		{
			name: "submission only",
			row:  &ActivityGrade{SubmittedBy: null.StringFrom("stud-1")},
			want: Status{Code: StatusSubmitted, SubmittedBy: "stud-1"},
		},
		{
			name: "grade only, teacher graded without a submission",
			row:  &ActivityGrade{Grade: null.Float64From(14.5), GradedBy: null.StringFrom("teach-1")},
			want: Status{Code: StatusGraded, Grade: floatPtr(14.5)},
		},
		{
			name: "grade wins over submission",
			row:  &ActivityGrade{Grade: null.Float64From(9), SubmittedBy: null.StringFrom("stud-1")},
			want: Status{Code: StatusGraded, Grade: floatPtr(9)},
		},
		{
			name: "zero grade is still graded",
			row:  &ActivityGrade{Grade: null.Float64From(0), SubmittedBy: null.StringFrom("stud-1")},
			want: Status{Code: StatusGraded, Grade: floatPtr(0)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.row))
		})
	}
}

func floatPtr(f float64) *float64 { return &f }
