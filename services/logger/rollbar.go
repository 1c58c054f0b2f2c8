package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// RollbarLogger ships records to Rollbar and mirrors them on a standard
// logger for local visibility.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) { rollbar.SetEnabled(enabled) }

// report tags the record with the acting user when a user.User is passed in
// args; at most one user is attached per record and user args are not
// forwarded as payload.
func (l RollbarLogger) report(level func(...interface{}), msg string, args []interface{}) {
	payload := make([]interface{}, 0, len(args)+1)
	payload = append(payload, msg)
	var tagged bool
	for _, arg := range args {
		if usr, ok := arg.(user.User); ok {
			if !tagged {
				rollbar.SetPerson(usr.ID, usr.Name, usr.Email)
				tagged = true
			}
			continue
		}
		payload = append(payload, arg)
	}
	if !tagged {
		rollbar.ClearPerson()
	}
	level(payload...)

	l.std.Println(msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.report(rollbar.Debug, msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.report(rollbar.Info, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.report(rollbar.Warning, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.report(rollbar.Error, msg, args) }

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.Critical, msg, args)
	l.std.Fatal(msg)
}
