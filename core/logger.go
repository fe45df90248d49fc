package core

// Person identifies the authenticated caller attached to an error report.
type Person struct {
	ID    string
	Name  string
	Email string
}

// Logger is any leveled logging service.
// A Person passed in `args` is attached to the report instead of being printed.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
