package school

import (
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

func NewServiceMock(db core.Transactor, repo Repository, users user.Repository, log core.Logger) Service {
	return &service{
		db:     db,
		repo:   repo,
		users:  users,
		access: NewAccess(repo),
		log:    log,
	}
}
