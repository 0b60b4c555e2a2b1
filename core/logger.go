package core

// Logger is implemented by the error reporting services.
// args may carry errors, maps of extra data and the acting Actor.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Actor is the authenticated employee performing a request.
// It is resolved once by the transport layer and passed down explicitly.
type Actor struct {
	EmployeeID string
	Name       string
	Email      string
	Roles      []string
}

func (a Actor) IsZero() bool { return a.EmployeeID == "" }

// NopLogger discards everything.
type NopLogger struct{}

var _ Logger = (*NopLogger)(nil)

func (*NopLogger) Debug(string, ...interface{}) {}
func (*NopLogger) Info(string, ...interface{})  {}
func (*NopLogger) Warn(string, ...interface{})  {}
func (*NopLogger) Error(string, ...interface{}) {}
func (*NopLogger) Fatal(string, ...interface{}) {}
