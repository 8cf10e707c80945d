// Package progress prints messages and progress for the commands.
package progress

// A Printer prints messages at different log levels and keeps a single
// status line that is rewritten in place on terminals.
// It must be safe to call its methods from concurrent goroutines.
type Printer interface {
	E(msg string, args ...interface{})
	P(msg string, args ...interface{})
	V(msg string, args ...interface{})
	VV(msg string, args ...interface{})

	// Status replaces the current status line.
	Status(line string)
	// ClearStatus finishes the status line, so that later messages start on
	// a line of their own.
	ClearStatus()
}

// NoopPrinter discards all messages
type NoopPrinter struct{}

var _ Printer = (*NoopPrinter)(nil)

func (*NoopPrinter) E(msg string, args ...interface{}) {}

func (*NoopPrinter) P(msg string, args ...interface{}) {}

func (*NoopPrinter) V(msg string, args ...interface{}) {}

func (*NoopPrinter) VV(msg string, args ...interface{}) {}

func (*NoopPrinter) Status(line string) {}

func (*NoopPrinter) ClearStatus() {}
