package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
)

// Language represents a supported source language.
type Language string

const (
	LangC       Language = "c"
	LangCPP     Language = "cpp"
	LangUnknown Language = "unknown"
)

func (l Language) String() string { return string(l) }

// Parser wraps tree-sitter for C and C++ parsing.
// A Parser is not safe for concurrent use.
type Parser struct {
	parser *sitter.Parser
}

// ParseResult contains the parsed AST and metadata.
type ParseResult struct {
	Tree     *sitter.Tree
	Language Language
	Source   []byte
	Path     string
}

// New creates a new parser instance.
func New() *Parser {
	return &Parser{
		parser: sitter.NewParser(),
	}
}

// ParseFile parses a source file and returns the AST.
func (p *Parser) ParseFile(path string) (*ParseResult, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	lang := DetectLanguage(path)
	if lang == LangUnknown {
		return nil, fmt.Errorf("unsupported language for file: %s", path)
	}

	return p.Parse(source, lang, path)
}

// Parse parses source code with a specified language.
func (p *Parser) Parse(source []byte, lang Language, path string) (*ParseResult, error) {
	tsLang, err := GetTreeSitterLanguage(lang)
	if err != nil {
		return nil, err
	}

	p.parser.SetLanguage(tsLang)
	tree, err := p.parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}

	return &ParseResult{
		Tree:     tree,
		Language: lang,
		Source:   source,
		Path:     path,
	}, nil
}

// GetTreeSitterLanguage returns the tree-sitter language for a Language.
func GetTreeSitterLanguage(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangC:
		return c.GetLanguage(), nil
	case LangCPP:
		return cpp.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
}

// DetectLanguage determines the language from a file path. Only the
// extensions CLE annotations are recognised in are accepted.
func DetectLanguage(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".c", ".h":
		return LangC
	case ".cpp", ".hpp":
		return LangCPP
	default:
		return LangUnknown
	}
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// NodeVisitor is a function that visits AST nodes.
type NodeVisitor func(node *sitter.Node, source []byte) bool

// Walk traverses the AST calling visitor for each node.
func Walk(node *sitter.Node, source []byte, visitor NodeVisitor) {
	if node == nil {
		return
	}

	if !visitor(node, source) {
		return
	}

	for i := range int(node.ChildCount()) {
		Walk(node.Child(i), source, visitor)
	}
}

// FindNodesByType returns all nodes of a specific type.
func FindNodesByType(root *sitter.Node, source []byte, nodeType string) []*sitter.Node {
	var results []*sitter.Node
	Walk(root, source, func(node *sitter.Node, source []byte) bool {
		if node.Type() == nodeType {
			results = append(results, node)
		}
		return true
	})
	return results
}

// GetNodeText extracts the source text for a node.
// Returns empty string if node is nil or byte offsets are out of bounds.
func GetNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}

// Point is a zero-based row/column position.
type Point struct {
	Row    uint32 `json:"row"`
	Column uint32 `json:"column"`
}

// FunctionNode represents a parsed function definition.
type FunctionNode struct {
	Name  string `json:"name"`
	Start Point  `json:"start"`
	End   Point  `json:"end"`
}

// StartLine returns the one-based line the definition starts on.
func (f FunctionNode) StartLine() uint32 { return f.Start.Row + 1 }

// EndLine returns the one-based line the definition ends on.
func (f FunctionNode) EndLine() uint32 { return f.End.Row + 1 }

// GetFunctions extracts all function definitions from parsed code in
// source order.
func GetFunctions(result *ParseResult) []FunctionNode {
	var functions []FunctionNode
	for _, node := range FindNodesByType(result.Tree.RootNode(), result.Source, "function_definition") {
		if fn := extractFunction(node, result.Source); fn != nil {
			functions = append(functions, *fn)
		}
	}
	return functions
}

// GetGlobalDeclarations extracts variables declared at file scope. The
// returned nodes cover the whole declaration statement.
func GetGlobalDeclarations(result *ParseResult) []FunctionNode {
	var decls []FunctionNode
	root := result.Tree.RootNode()

	for i := range int(root.NamedChildCount()) {
		node := root.NamedChild(i)
		if node.Type() != "declaration" {
			continue
		}
		for j := range int(node.ChildCount()) {
			if node.FieldNameForChild(j) != "declarator" {
				continue
			}
			child := node.Child(j)
			// Prototypes are declarations too; skip them.
			if containsType(child, "function_declarator") {
				continue
			}
			name := declaratorName(child, result.Source)
			if name == "" {
				continue
			}
			decls = append(decls, FunctionNode{
				Name:  name,
				Start: toPoint(node.StartPoint()),
				End:   toPoint(node.EndPoint()),
			})
		}
	}

	return decls
}

func extractFunction(node *sitter.Node, source []byte) *FunctionNode {
	name := declaratorName(node.ChildByFieldName("declarator"), source)
	if name == "" {
		return nil
	}
	return &FunctionNode{
		Name:  name,
		Start: toPoint(node.StartPoint()),
		End:   toPoint(node.EndPoint()),
	}
}

// declaratorName follows nested declarators (pointer, function,
// parenthesized, init, array) down to the declared identifier.
func declaratorName(node *sitter.Node, source []byte) string {
	for node != nil {
		switch node.Type() {
		case "identifier", "field_identifier", "qualified_identifier",
			"destructor_name", "operator_name", "type_identifier":
			return GetNodeText(node, source)
		}
		next := node.ChildByFieldName("declarator")
		if next == nil && node.NamedChildCount() > 0 {
			// parenthesized_declarator has no field name
			next = node.NamedChild(0)
		}
		node = next
	}
	return ""
}

func containsType(node *sitter.Node, nodeType string) bool {
	found := false
	Walk(node, nil, func(n *sitter.Node, _ []byte) bool {
		if n.Type() == nodeType {
			found = true
		}
		return !found
	})
	return found
}

func toPoint(p sitter.Point) Point {
	return Point{Row: p.Row, Column: p.Column}
}
