package core

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx so that repository
	// methods can run against the base pool or inside a transaction.
	DBExecutor interface {
		sqlx.ExtContext
	}

	// Transactor runs fn within a single all-or-nothing transaction: any error
	// returned by fn (or a cancelled context) rolls back everything fn wrote.
	// Repositories receive the transaction through their optional exec argument.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(exec DBExecutor) error) error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
