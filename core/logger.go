package core

// Logger is the app-wide logging interface. Implementations live in
// services/logger; args may carry errors, maps or a user for context.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
