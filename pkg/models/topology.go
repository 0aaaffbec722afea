package models

import "encoding/json"

// EnclaveAssignment is one symbol's assigned enclave level.
type EnclaveAssignment struct {
	Name  string `json:"name"`
	Level string `json:"level"`
	Line  string `json:"line"` // line number as reported by the analyzer, string-encoded
}

// Topology is the complete level-assignment table produced by one analysis.
type Topology struct {
	SourcePath       string              `json:"source_path"`
	Levels           []string            `json:"levels"`
	GlobalScopedVars []EnclaveAssignment `json:"global_scoped_vars"`
	Functions        []EnclaveAssignment `json:"functions"`
}

// topologyWire accepts both the snake_case artifact keys and the camelCase
// keys the reference analyzer emits over the socket.
type topologyWire struct {
	SourcePath            string              `json:"source_path"`
	SourcePathCamel       string              `json:"sourcePath"`
	Levels                []string            `json:"levels"`
	GlobalScopedVars      []EnclaveAssignment `json:"global_scoped_vars"`
	GlobalScopedVarsCamel []EnclaveAssignment `json:"globalScopedVars"`
	Functions             []EnclaveAssignment `json:"functions"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Topology) UnmarshalJSON(data []byte) error {
	var w topologyWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t.SourcePath = w.SourcePath
	if t.SourcePath == "" {
		t.SourcePath = w.SourcePathCamel
	}
	t.Levels = w.Levels
	t.GlobalScopedVars = w.GlobalScopedVars
	if t.GlobalScopedVars == nil {
		t.GlobalScopedVars = w.GlobalScopedVarsCamel
	}
	t.Functions = w.Functions
	return nil
}

// Assignments returns the function assignments, followed by the global
// variable assignments when includeGlobals is set.
func (t *Topology) Assignments(includeGlobals bool) []EnclaveAssignment {
	if t == nil {
		return nil
	}
	out := make([]EnclaveAssignment, 0, len(t.Functions)+len(t.GlobalScopedVars))
	out = append(out, t.Functions...)
	if includeGlobals {
		out = append(out, t.GlobalScopedVars...)
	}
	return out
}

// ReferencedLevels returns the distinct levels used by the assignments in
// first-encounter order.
func (t *Topology) ReferencedLevels(includeGlobals bool) []string {
	seen := make(map[string]struct{})
	var levels []string
	for _, a := range t.Assignments(includeGlobals) {
		if _, ok := seen[a.Level]; ok {
			continue
		}
		seen[a.Level] = struct{}{}
		levels = append(levels, a.Level)
	}
	return levels
}
