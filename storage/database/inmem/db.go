// Package inmem offers map-backed repository implementations for tests.
// They emulate the database's uniqueness constraints so service-level
// behavior matches Postgres.
package inmem

import (
	"context"
	"sync"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type DB struct {
	mu sync.RWMutex

	users           map[string]*user.User
	profiles        map[string]*user.Profile
	subjects        map[string]*school.Subject
	teacherSubjects map[school.TeacherSubject]bool
	enrollments     map[string]*school.Enrollment
	activities      map[string]*school.Activity
	grades          map[string]*school.ActivityGrade
}

func NewDB() *DB {
	return &DB{
		users:           make(map[string]*user.User),
		profiles:        make(map[string]*user.Profile),
		subjects:        make(map[string]*school.Subject),
		teacherSubjects: make(map[school.TeacherSubject]bool),
		enrollments:     make(map[string]*school.Enrollment),
		activities:      make(map[string]*school.Activity),
		grades:          make(map[string]*school.ActivityGrade),
	}
}

var _ core.Transactor = (*DB)(nil)

// WithinTx runs fn directly; there are no real transactions in memory.
func (db *DB) WithinTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	return fn(nil)
}
