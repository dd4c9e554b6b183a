package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Startup reports failures that happen before the zap logger exists. Lines
// are plain text on stderr whatever logging.format is configured.
type Startup struct {
	out     io.Writer
	command string
}

func NewStartup(command string) *Startup {
	return &Startup{out: os.Stderr, command: command}
}

// Fail prints msg and err and returns them as one error. The result is marked
// as reported so main does not print it a second time.
func (s *Startup) Fail(msg string, err error) error {
	if err == nil {
		fmt.Fprintf(s.out, "%s: %s\n", s.command, msg)
		return reported{errors.New(msg)}
	}
	fmt.Fprintf(s.out, "%s: %s: %v\n", s.command, msg, err)
	return reported{fmt.Errorf("%s: %w", msg, err)}
}

type reported struct {
	error
}

func (r reported) Unwrap() error { return r.error }

// Reported tells whether err already went through Startup.Fail.
func Reported(err error) bool {
	var r reported
	return errors.As(err, &r)
}
