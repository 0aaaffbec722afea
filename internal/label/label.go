// Package label finds CLE pragma tokens in C/C++ source text.
//
// Reference sites look like
//
//	#pragma cle begin LABEL
//	#pragma cle end LABEL
//	#pragma cle LABEL
//
// and definitions like
//
//	#pragma cle def LABEL { ... }
//
// where the definition body may continue over several lines, each ending
// in a backslash.
package label

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	referenceRe  = regexp.MustCompile(`#pragma\s+cle\s+(?:(begin|end)\s+)?(\w+)`)
	definitionRe = regexp.MustCompile(`#pragma\s+cle\s+def\s+(\w+)(\s+\{(?:.*\\\s*\n)*.*\})`)
	identifierRe = regexp.MustCompile(`^[A-Za-z_]\w*$`)
)

// Kind distinguishes the forms of a reference site.
type Kind string

const (
	KindBegin Kind = "begin"
	KindEnd   Kind = "end"
	KindApply Kind = "" // bare "#pragma cle LABEL"
)

// Position is a zero-based line and UTF-16 column, as editors count them.
type Position struct {
	Line      int
	Character int
}

// Reference is one reference site on a single line.
type Reference struct {
	Label string
	Kind  Kind
	Line  int
	// Start is where the pragma begins; End is the end of the line.
	Start Position
	End   Position
	// Text is the line from the pragma to the end of the line.
	Text string
}

// Definition is one "#pragma cle def" block.
type Definition struct {
	Label  string
	Offset int // byte offset of the match in the file
	Start  Position
	End    Position
	Text   string // the full matched block
}

// ParseReference extracts the reference on a single line. Definition lines
// are not references.
func ParseReference(line string) (Reference, bool) {
	line = strings.TrimRight(line, "\r")
	m := referenceRe.FindStringSubmatchIndex(line)
	if m == nil {
		return Reference{}, false
	}
	label := line[m[4]:m[5]]
	if m[2] < 0 {
		switch label {
		case "def", "begin", "end":
			return Reference{}, false
		}
	}
	var kind Kind
	if m[2] >= 0 {
		kind = Kind(line[m[2]:m[3]])
	}
	return Reference{
		Label: label,
		Kind:  kind,
		Start: Position{Character: utf16Len(line[:m[0]])},
		End:   Position{Character: utf16Len(line)},
		Text:  line[m[0]:],
	}, true
}

// ReferenceAt returns the reference on the given zero-based line of content.
func ReferenceAt(content []byte, line int) (Reference, bool) {
	text, ok := Line(content, line)
	if !ok {
		return Reference{}, false
	}
	ref, ok := ParseReference(text)
	if !ok {
		return Reference{}, false
	}
	ref.Line = line
	ref.Start.Line = line
	ref.End.Line = line
	return ref, true
}

// ScanReferences returns every reference site in content, in line order.
func ScanReferences(content []byte) []Reference {
	var refs []Reference
	for i, text := range lines(content) {
		ref, ok := ParseReference(text)
		if !ok {
			continue
		}
		ref.Line = i
		ref.Start.Line = i
		ref.End.Line = i
		refs = append(refs, ref)
	}
	return refs
}

// ScanLabel returns the reference sites for one label.
func ScanLabel(content []byte, label string) []Reference {
	var out []Reference
	for _, ref := range ScanReferences(content) {
		if ref.Label == label {
			out = append(out, ref)
		}
	}
	return out
}

// FindDefinitions returns every definition block in content, in file order.
func FindDefinitions(content []byte) []Definition {
	var defs []Definition
	for _, m := range definitionRe.FindAllSubmatchIndex(content, -1) {
		defs = append(defs, newDefinition(content, m))
	}
	return defs
}

// FindDefinition returns the first definition of label in content.
func FindDefinition(content []byte, label string) (Definition, bool) {
	for _, m := range definitionRe.FindAllSubmatchIndex(content, -1) {
		if string(content[m[2]:m[3]]) == label {
			return newDefinition(content, m), true
		}
	}
	return Definition{}, false
}

func newDefinition(content []byte, m []int) Definition {
	return Definition{
		Label:  string(content[m[2]:m[3]]),
		Offset: m[0],
		Start:  OffsetToPosition(content, m[0]),
		End:    OffsetToPosition(content, m[1]),
		Text:   string(content[m[0]:m[1]]),
	}
}

// OffsetToPosition converts a byte offset into a line and column by
// counting the newlines before it. Offsets past the end are clamped.
func OffsetToPosition(content []byte, offset int) Position {
	if offset > len(content) {
		offset = len(content)
	}
	if offset < 0 {
		offset = 0
	}
	before := content[:offset]
	line := bytes.Count(before, []byte{'\n'})
	lineStart := bytes.LastIndexByte(before, '\n') + 1
	return Position{Line: line, Character: utf16Len(string(before[lineStart:]))}
}

// PositionOffset is the inverse of OffsetToPosition. Lines and columns
// past the end are clamped.
func PositionOffset(content []byte, pos Position) int {
	offset := 0
	for range pos.Line {
		i := bytes.IndexByte(content[offset:], '\n')
		if i < 0 {
			return len(content)
		}
		offset += i + 1
	}
	end := len(content)
	if i := bytes.IndexByte(content[offset:], '\n'); i >= 0 {
		end = offset + i
	}
	for col := 0; offset < end && col < pos.Character; {
		r, size := utf8.DecodeRune(content[offset:end])
		if r >= 0x10000 {
			col += 2
		} else {
			col++
		}
		offset += size
	}
	return offset
}

// UTF16Column converts a byte column on a zero-based line, as tree-sitter
// reports it, to the UTF-16 column editors use.
func UTF16Column(content []byte, line, byteCol int) int {
	start := PositionOffset(content, Position{Line: line})
	end := min(start+byteCol, len(content))
	return utf16Len(string(content[start:end]))
}

// Line returns the zero-based line of content without its terminator.
func Line(content []byte, line int) (string, bool) {
	all := lines(content)
	if line < 0 || line >= len(all) {
		return "", false
	}
	return all[line], true
}

// Span locates label inside the text of a reference or definition and
// returns its UTF-16 start and end offsets relative to the text. The
// pragma keywords are skipped so a label spelled "cle" or "begin" is
// still found at its own position.
func Span(text, label string) (start, end int, ok bool) {
	idx := -1
	if m := definitionRe.FindStringSubmatchIndex(text); m != nil && text[m[2]:m[3]] == label {
		idx = m[2]
	} else if m := referenceRe.FindStringSubmatchIndex(text); m != nil && text[m[4]:m[5]] == label {
		idx = m[4]
	} else {
		idx = strings.Index(text, label)
	}
	if idx < 0 {
		return 0, 0, false
	}
	start = utf16Len(text[:idx])
	return start, start + utf16Len(label), true
}

// IsIdentifier reports whether s can be used as a label name.
func IsIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

func lines(content []byte) []string {
	split := strings.Split(string(content), "\n")
	for i, l := range split {
		split[i] = strings.TrimSuffix(l, "\r")
	}
	return split
}

func utf16Len(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
