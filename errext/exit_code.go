package errext

import "errors"

// ExitCode is the code with which browserctl exits when an error carrying it
// reaches the top of a command.
type ExitCode uint8

const (
	// GenericError is used for every failure without a more specific code.
	GenericError ExitCode = 1
	// BrowserNotReady means the launched browser never accepted a control
	// connection.
	BrowserNotReady ExitCode = 3
	// NoEndpoint means no remote debugging endpoint answered on the port.
	NoEndpoint ExitCode = 4
	// NoActivePage means the browser has no page to operate on.
	NoActivePage ExitCode = 5
)

// HasExitCode is a wrapper around an error with an attached exit code.
type HasExitCode interface {
	error
	ExitCode() ExitCode
}

// WithExitCodeIfNone can attach an exit code to the given error, if it doesn't
// have one already. It won't do anything if the error already had an exit code
// attached. Similarly, if there is no error (i.e. the given error is nil), it
// also won't do anything.
func WithExitCodeIfNone(err error, exitCode ExitCode) error {
	if err == nil {
		return nil
	}
	var ecerr HasExitCode
	if errors.As(err, &ecerr) {
		return err
	}
	return withExitCode{err, exitCode}
}

type withExitCode struct {
	error
	exitCode ExitCode
}

func (wh withExitCode) Unwrap() error {
	return wh.error
}

func (wh withExitCode) ExitCode() ExitCode {
	return wh.exitCode
}

var _ HasExitCode = withExitCode{}

// Code returns the exit code attached to err, or GenericError.
func Code(err error) ExitCode {
	var ecerr HasExitCode
	if errors.As(err, &ecerr) {
		return ecerr.ExitCode()
	}
	return GenericError
}
