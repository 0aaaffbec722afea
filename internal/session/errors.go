package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gaps-closure/vscle/pkg/models"
)

// ErrSessionInProgress is returned when Run is called while another
// session on the same Coordinator still holds the socket address.
var ErrSessionInProgress = errors.New("an analysis session is already in progress")

// ConfigurationError reports that a session cannot start with the given
// input, e.g. an empty file list or an address that cannot be bound.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return "configuration error: " + e.Reason
	}
	return "configuration error: " + e.Reason + ": " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ProtocolError reports an analyzer exchange that did not produce a usable
// result: an undecodable payload, an unknown tag, or no message at all.
type ProtocolError struct {
	Msg string
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// AnalyzerReportedError carries the errors the analyzer returned.
type AnalyzerReportedError struct {
	Errors []models.AnalyzerError
}

func (e *AnalyzerReportedError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ae := range e.Errors {
		msgs = append(msgs, ae.String())
	}
	return "analyzer reported an error: " + strings.Join(msgs, "; ")
}

// Stage names the subprocess that failed.
type Stage string

const (
	StagePrebuild Stage = "prebuild"
	StageAnalyzer Stage = "analyzer"
)

// SubprocessError reports a prebuild or analyzer process that could not be
// started or exited non-zero.
type SubprocessError struct {
	Stage    Stage
	Command  string
	File     string // set for prebuild failures
	ExitCode int    // -1 when the process did not run to completion
	Output   string // tail of the combined output
	Err      error
}

func (e *SubprocessError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed", e.Stage)
	if e.File != "" {
		fmt.Fprintf(&b, " for %s", e.File)
	}
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, " with exit code %d", e.ExitCode)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		fmt.Fprintf(&b, ": %s", out)
	}
	return b.String()
}

func (e *SubprocessError) Unwrap() error {
	return e.Err
}
