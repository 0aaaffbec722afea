package models

// String methods for the custom string types.
// toon serialization relies on fmt.Stringer.

// ResultTag
func (t ResultTag) String() string { return string(t) }

// ConflictName
func (n ConflictName) String() string { return string(n) }

// CommandKind
func (k CommandKind) String() string { return string(k) }
