package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"go.lsp.dev/protocol"
)

// ResultTag identifies the active variant of an AnalyzerResult.
type ResultTag string

const (
	TagSuccess  ResultTag = "Success"
	TagConflict ResultTag = "Conflict"
	TagError    ResultTag = "Error"
)

// ConflictName identifies a class of analyzer conflict.
type ConflictName string

const (
	ConflictInvalidJSON          ConflictName = "Invalid JSON"
	ConflictUndefinedLabel       ConflictName = "Undefined label"
	ConflictInsufficientEnclaves ConflictName = "Insufficient Enclaves"
	ConflictMissingEnclaves      ConflictName = "Missing Enclaves"
	ConflictUnresolvableControl  ConflictName = "Unresolvable Control Conflict"
	ConflictUnresolvableData     ConflictName = "Unresolvable Data Conflict"
)

// KnownConflictNames lists every conflict name the analyzer is known to emit.
var KnownConflictNames = []ConflictName{
	ConflictInvalidJSON,
	ConflictUndefinedLabel,
	ConflictInsufficientEnclaves,
	ConflictMissingEnclaves,
	ConflictUnresolvableControl,
	ConflictUnresolvableData,
}

// Known reports whether the name is one of KnownConflictNames.
func (n ConflictName) Known() bool {
	for _, k := range KnownConflictNames {
		if n == k {
			return true
		}
	}
	return false
}

// ConflictSource pins a conflict to a location in a source file.
type ConflictSource struct {
	File  string         `json:"file"`
	Range protocol.Range `json:"range"`
}

// UnmarshalJSON accepts either {file, range} or the {file, line, character}
// form, where line is one-based.
func (s *ConflictSource) UnmarshalJSON(data []byte) error {
	var raw struct {
		File      string          `json:"file"`
		Range     *protocol.Range `json:"range"`
		Line      *uint32         `json:"line"`
		Character *uint32         `json:"character"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.File = raw.File
	switch {
	case raw.Range != nil:
		s.Range = *raw.Range
	case raw.Line != nil:
		line := *raw.Line
		if line > 0 {
			line--
		}
		var char uint32
		if raw.Character != nil {
			char = *raw.Character
		}
		pos := protocol.Position{Line: line, Character: char}
		s.Range = protocol.Range{Start: pos, End: pos}
	default:
		s.Range = protocol.Range{}
	}
	return nil
}

// Conflict is an analyzer-detected incompatibility between label assignments.
type Conflict struct {
	Name        ConflictName     `json:"name"`
	Description string           `json:"description"`
	Sources     []ConflictSource `json:"sources"`
	Remedies    []string         `json:"remedies"`
}

// AnalyzerError is one error reported by the analyzer.
type AnalyzerError struct {
	Errno         int    `json:"errno"`
	ErrMessage    string `json:"errMessage"`
	CustomMessage string `json:"customMessage"`
}

// UnmarshalJSON accepts both camelCase and snake_case keys.
func (e *AnalyzerError) UnmarshalJSON(data []byte) error {
	var raw struct {
		Errno              int    `json:"errno"`
		ErrMessage         string `json:"errMessage"`
		ErrMessageSnake    string `json:"err_message"`
		CustomMessage      string `json:"customMessage"`
		CustomMessageSnake string `json:"custom_message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Errno = raw.Errno
	e.ErrMessage = firstNonEmpty(raw.ErrMessage, raw.ErrMessageSnake)
	e.CustomMessage = firstNonEmpty(raw.CustomMessage, raw.CustomMessageSnake)
	return nil
}

func (e AnalyzerError) String() string {
	if e.CustomMessage == "" {
		return fmt.Sprintf("%s (errno %d)", e.ErrMessage, e.Errno)
	}
	return fmt.Sprintf("%s (errno %d). %s", e.ErrMessage, e.Errno, e.CustomMessage)
}

// AnalyzerResult is the closed set of messages an analyzer can deliver:
// *SuccessResult, *ConflictResult or *ErrorResult.
type AnalyzerResult interface {
	Tag() ResultTag
	isAnalyzerResult()
}

// SuccessResult carries the topology of a conflict-free analysis.
type SuccessResult struct {
	Topology Topology
}

// ConflictResult carries one or more conflicts.
type ConflictResult struct {
	Conflicts []Conflict
}

// ErrorResult carries one or more analyzer errors.
type ErrorResult struct {
	Errors []AnalyzerError
}

func (*SuccessResult) Tag() ResultTag  { return TagSuccess }
func (*ConflictResult) Tag() ResultTag { return TagConflict }
func (*ErrorResult) Tag() ResultTag    { return TagError }

func (*SuccessResult) isAnalyzerResult()  {}
func (*ConflictResult) isAnalyzerResult() {}
func (*ErrorResult) isAnalyzerResult()    {}

var (
	ErrUnknownTag      = errors.New("unknown analyzer result tag")
	ErrMissingTopology = errors.New("success result without topology")
	ErrEmptyConflicts  = errors.New("conflict result without conflicts")
	ErrEmptyErrors     = errors.New("error result without errors")
)

type resultEnvelope struct {
	Result    ResultTag       `json:"result"`
	Topology  *Topology       `json:"topology,omitempty"`
	Conflicts []Conflict      `json:"conflicts,omitempty"`
	Errors    []AnalyzerError `json:"errors,omitempty"`
}

// DecodeAnalyzerResult parses an analyzer payload into its variant.
// Unknown tags and empty conflict/error lists are rejected.
func DecodeAnalyzerResult(data []byte) (AnalyzerResult, error) {
	var env resultEnvelope
	if err := json.Unmarshal(bytes.TrimSpace(data), &env); err != nil {
		return nil, err
	}

	switch env.Result {
	case TagSuccess:
		if env.Topology == nil {
			return nil, ErrMissingTopology
		}
		return &SuccessResult{Topology: *env.Topology}, nil
	case TagConflict:
		if len(env.Conflicts) == 0 {
			return nil, ErrEmptyConflicts
		}
		return &ConflictResult{Conflicts: env.Conflicts}, nil
	case TagError:
		if len(env.Errors) == 0 {
			return nil, ErrEmptyErrors
		}
		return &ErrorResult{Errors: env.Errors}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, env.Result)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
