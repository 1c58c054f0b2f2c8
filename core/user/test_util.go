package user

import (
	"context"

	"github.com/trezcool/shule/core"
)

type serviceMock struct {
	service
}

func NewServiceMock(db core.Transactor, repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &serviceMock{
		service: service{
			db:      db,
			repo:    repo,
			mailSvc: mailSvc,
			tokens:  NewTokenGenerator(conf),
			conf:    conf,
			log:     noopLogger{},
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Fatal(string, ...interface{}) {}
