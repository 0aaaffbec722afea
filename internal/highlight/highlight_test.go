package highlight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/gaps-closure/vscle/internal/cache"
	"github.com/gaps-closure/vscle/pkg/config"
	"github.com/gaps-closure/vscle/pkg/models"
	"github.com/gaps-closure/vscle/pkg/parser"
	"github.com/gaps-closure/vscle/pkg/source"
)

func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.SourceDirs = []string{dir}
	return cfg, dir
}

func fn(name string, startRow, endRow uint32) parser.FunctionNode {
	return parser.FunctionNode{
		Name:  name,
		Start: parser.Point{Row: startRow},
		End:   parser.Point{Row: endRow, Column: 1},
	}
}

func TestProjectTwoLevels(t *testing.T) {
	cfg, dir := testConfig(t)
	p := New(cfg)

	top := &models.Topology{
		Levels: []string{"low", "high"},
		Functions: []models.EnclaveAssignment{
			{Name: "get_low", Level: "low", Line: "3"},
			{Name: " get_high ", Level: "high", Line: "9"},
			{Name: "not_in_file", Level: "high", Line: "20"},
		},
	}
	defs := []parser.FunctionNode{fn("get_low", 2, 5), fn("get_high", 8, 12)}

	cmds, ok := p.Project(top, defs, filepath.Join(dir, "main.c"))
	require.True(t, ok)
	require.Len(t, cmds, 3)

	assert.Equal(t, models.ClearAll(), cmds[0])

	assert.Equal(t, models.CommandHighlight, cmds[1].Kind)
	assert.Equal(t, "#d2797930", cmds[1].Color)
	assert.Equal(t, &protocol.Range{
		Start: protocol.Position{Line: 2},
		End:   protocol.Position{Line: 5, Character: 1},
	}, cmds[1].Range)

	assert.Equal(t, "#79d2d230", cmds[2].Color)
	assert.Equal(t, "get_high", cmds[2].Name)
	assert.Equal(t, "high", cmds[2].Level)
}

func TestProjectOutsideSourceDirs(t *testing.T) {
	cfg, dir := testConfig(t)
	p := New(cfg)
	top := &models.Topology{Functions: []models.EnclaveAssignment{{Name: "f", Level: "x"}}}

	for _, path := range []string{
		filepath.Join(t.TempDir(), "other.c"),
		filepath.Join(dir, "sub", "nested.c"),
	} {
		cmds, ok := p.Project(top, []parser.FunctionNode{fn("f", 0, 1)}, path)
		assert.False(t, ok, path)
		assert.Nil(t, cmds, path)
	}
}

func TestProjectRelativeSourceDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg := config.DefaultConfig()
	cfg.SourceDirs = []string{"./src/"}
	p := New(cfg)

	_, ok := p.Project(&models.Topology{}, nil, filepath.Join(dir, "src", "a.c"))
	assert.True(t, ok)
}

func TestProjectEmptyTopologyOnlyClears(t *testing.T) {
	cfg, dir := testConfig(t)
	cmds, ok := New(cfg).Project(&models.Topology{}, []parser.FunctionNode{fn("f", 0, 1)}, filepath.Join(dir, "a.c"))
	require.True(t, ok)
	assert.Equal(t, []models.HighlightCommand{models.ClearAll()}, cmds)
}

func TestProjectGlobals(t *testing.T) {
	cfg, dir := testConfig(t)
	top := &models.Topology{
		GlobalScopedVars: []models.EnclaveAssignment{{Name: "secret", Level: "orange"}},
		Functions:        []models.EnclaveAssignment{{Name: "main", Level: "purple"}},
	}
	defs := []parser.FunctionNode{fn("main", 4, 8), fn("secret", 1, 1)}
	path := filepath.Join(dir, "a.c")

	cmds, _ := New(cfg).Project(top, defs, path)
	require.Len(t, cmds, 2)
	assert.Equal(t, "#d2797930", cmds[1].Color, "single level takes hue 0")

	cfg.Highlight.IncludeGlobals = true
	cmds, _ = New(cfg).Project(top, defs, path)
	require.Len(t, cmds, 3)
	assert.Equal(t, "secret", cmds[2].Name)
	assert.Equal(t, "#79d2d230", cmds[2].Color)
}

func TestPalette(t *testing.T) {
	colors := Palette([]string{"a", "b", "c"}, "FF")
	assert.Len(t, colors, 3)
	assert.Equal(t, "#d27979ff", colors["a"])
	for _, c := range colors {
		assert.Len(t, c, 9)
	}
	assert.Empty(t, Palette(nil, "30"))
}

func TestDefinitionRangeFallback(t *testing.T) {
	def := parser.FunctionNode{Name: "f", Start: parser.Point{Row: 3, Column: 2}}
	rng := definitionRange(def)
	assert.Equal(t, rng.Start, rng.End)
}

func TestLenses(t *testing.T) {
	cfg, _ := testConfig(t)
	top := &models.Topology{Functions: []models.EnclaveAssignment{
		{Name: "get_a", Level: "orange"},
		{Name: "missing", Level: "purple"},
	}}
	lenses := New(cfg).Lenses(top, []parser.FunctionNode{fn("get_a", 6, 9)})
	require.Len(t, lenses, 1)
	assert.Equal(t, "orange", lenses[0].Title)
	assert.Equal(t, uint32(6), lenses[0].Range.Start.Line)

	assert.Nil(t, New(cfg).Lenses(nil, nil))
}

const sample = `int secret = 1;

int get_a(void) {
    return secret;
}

int main(void) {
    return get_a();
}
`

func TestProjectFile(t *testing.T) {
	cfg, dir := testConfig(t)
	path := filepath.Join(dir, "example.c")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	c, err := cache.New(filepath.Join(t.TempDir(), "cache"), 1, true)
	require.NoError(t, err)
	p := New(cfg, WithCache(c))

	top := &models.Topology{Functions: []models.EnclaveAssignment{
		{Name: "get_a", Level: "orange"},
		{Name: "main", Level: "purple"},
	}}

	cmds, ok, err := p.ProjectFile(context.Background(), top, path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cmds, 3)
	assert.Equal(t, uint32(2), cmds[1].Range.Start.Line)
	assert.Equal(t, uint32(4), cmds[1].Range.End.Line)
	assert.Equal(t, uint32(6), cmds[2].Range.Start.Line)

	_, hit := c.Lookup(path, cache.HashBytes([]byte(sample)))
	assert.True(t, hit, "functions should be cached after projection")

	lenses, err := p.LensesFile(context.Background(), top, path)
	require.NoError(t, err)
	assert.Len(t, lenses, 2)
}

func TestProjectFileOverlay(t *testing.T) {
	cfg, dir := testConfig(t)
	path := filepath.Join(dir, "unsaved.c")
	overlay := source.NewOverlay(source.NewFilesystem())
	overlay.Set(path, []byte(sample))

	cfg.Highlight.IncludeGlobals = true
	top := &models.Topology{GlobalScopedVars: []models.EnclaveAssignment{{Name: "secret", Level: "orange"}}}

	cmds, ok, err := New(cfg, WithSource(overlay)).ProjectFile(context.Background(), top, path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cmds, 2)
	assert.Equal(t, "secret", cmds[1].Name)
	assert.Equal(t, uint32(0), cmds[1].Range.Start.Line)
}

func TestProjectFileOutsideSourceDir(t *testing.T) {
	cfg, _ := testConfig(t)
	cmds, ok, err := New(cfg).ProjectFile(context.Background(), &models.Topology{}, filepath.Join(t.TempDir(), "x.c"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, cmds)
}

func TestProjectIsIdempotent(t *testing.T) {
	cfg, dir := testConfig(t)
	p := New(cfg)
	top := &models.Topology{
		Levels: []string{"purple", "orange", "green"},
		Functions: []models.EnclaveAssignment{
			{Name: "c", Level: "green"},
			{Name: "a", Level: "orange"},
			{Name: "b", Level: "purple"},
			{Name: "d", Level: "orange"},
		},
	}
	defs := []parser.FunctionNode{fn("a", 0, 2), fn("b", 4, 6), fn("c", 8, 9), fn("d", 11, 15)}
	path := filepath.Join(dir, "main.c")

	first, ok := p.Project(top, defs, path)
	require.True(t, ok)
	second, ok := p.Project(top, defs, path)
	require.True(t, ok)
	assert.Equal(t, first, second)

	// A fresh projector assigns the same colors.
	third, _ := New(cfg).Project(top, defs, path)
	assert.Equal(t, first, third)

	levels := top.ReferencedLevels(false)
	assert.Equal(t, Palette(levels, "30"), Palette(levels, "30"))
}

func TestProjectFileRepeatsThroughCache(t *testing.T) {
	cfg, dir := testConfig(t)
	path := filepath.Join(dir, "example.c")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))
	c, err := cache.New(filepath.Join(t.TempDir(), "cache"), 1, true)
	require.NoError(t, err)
	p := New(cfg, WithCache(c))
	top := &models.Topology{Functions: []models.EnclaveAssignment{
		{Name: "main", Level: "purple"},
		{Name: "get_a", Level: "orange"},
	}}

	parsed, _, err := p.ProjectFile(context.Background(), top, path)
	require.NoError(t, err)
	cached, _, err := p.ProjectFile(context.Background(), top, path)
	require.NoError(t, err)
	assert.Equal(t, parsed, cached)
}

func TestProjectFileUsesUTF16Columns(t *testing.T) {
	cfg, dir := testConfig(t)
	path := filepath.Join(dir, "wide.c")
	// "/* é */ " is 8 bytes but 7 UTF-16 units.
	src := "/* é */ int f(void) { return 0; }\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))

	top := &models.Topology{Functions: []models.EnclaveAssignment{{Name: "f", Level: "orange"}}}
	cmds, ok, err := New(cfg).ProjectFile(context.Background(), top, path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cmds, 2)
	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 0, Character: 7},
		End:   protocol.Position{Line: 0, Character: 32},
	}, *cmds[1].Range)
}
