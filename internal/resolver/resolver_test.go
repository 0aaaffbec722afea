package resolver

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/gaps-closure/vscle/pkg/config"
	"github.com/gaps-closure/vscle/pkg/models"
	"github.com/gaps-closure/vscle/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	return resolved
}

func newResolver(t *testing.T, dirs ...string) *Resolver {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.SourceDirs = dirs
	return New(cfg)
}

// lines builds a file whose given zero-based line holds text.
func lines(at int, text string) string {
	var b strings.Builder
	for i := 0; i < at; i++ {
		b.WriteString("int filler_" + string(rune('a'+i%26)) + ";\n")
	}
	b.WriteString(text + "\n")
	return b.String()
}

func TestDefinitionScenario(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, filepath.Join(dir, "f.c"), lines(10, "#pragma cle begin secretA"))
	g := writeFile(t, filepath.Join(dir, "g.c"), lines(3, "#pragma cle def secretA { x = 1; }"))

	r := newResolver(t, dir)
	info, err := r.Definition(context.Background(), f, 10)
	require.NoError(t, err)

	assert.Equal(t, g, info.Path)
	assert.Equal(t, "secretA", info.Label)
	assert.Equal(t, "#pragma cle def secretA { x = 1; }", info.Text)
	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 3, Character: 0},
		End:   protocol.Position{Line: 3, Character: uint32(len(info.Text))},
	}, info.Range)
}

func TestDefaultSettingsSeeEverySubdirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0755))
	writeFile(t, filepath.Join(dir, ".gitignore"), "build/\nout/\n")
	f := writeFile(t, filepath.Join(dir, "f.c"), "#pragma cle begin secretA\n")
	g := writeFile(t, filepath.Join(dir, "build", "g.c"), "#pragma cle def secretA {}\n")
	h := writeFile(t, filepath.Join(dir, "out", "h.c"), "#pragma cle end secretA\n")

	cfg := config.DefaultConfig()
	cfg.SourceDirs = []string{dir}
	r := New(cfg)

	info, err := r.Definition(context.Background(), f, 0)
	require.NoError(t, err)
	assert.Equal(t, g, info.Path)

	occs, err := r.Occurrences(context.Background(), "secretA")
	require.NoError(t, err)
	var paths []string
	for _, o := range occs {
		paths = append(paths, o.Path)
	}
	assert.ElementsMatch(t, []string{f, h}, paths)
}

func TestDefinitionNotAReference(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, filepath.Join(dir, "f.c"), "int x;\n#pragma cle def A {}\n")

	r := newResolver(t, dir)
	_, err := r.Definition(context.Background(), f, 0)
	assert.ErrorIs(t, err, ErrNotFound)

	// A definition line is not itself a reference.
	_, err = r.Definition(context.Background(), f, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Definition(context.Background(), f, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDefinitionUndefinedLabel(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, filepath.Join(dir, "f.c"), "#pragma cle begin NOPE\n")

	_, err := newResolver(t, dir).Definition(context.Background(), f, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDefinitionUnreadableDocument(t *testing.T) {
	dir := t.TempDir()
	_, err := newResolver(t, dir).Definition(context.Background(), filepath.Join(dir, "gone.c"), 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDefinitionDeterministic(t *testing.T) {
	dir := t.TempDir()
	ref := writeFile(t, filepath.Join(dir, "main.c"), "#pragma cle begin DUP\n")
	first := writeFile(t, filepath.Join(dir, "a", "first.h"), "#pragma cle def DUP { \"level\": \"one\" }\n")
	writeFile(t, filepath.Join(dir, "b", "second.h"), "#pragma cle def DUP { \"level\": \"two\" }\n")
	writeFile(t, filepath.Join(dir, "z.c"), "#pragma cle def DUP { \"level\": \"three\" }\n")

	r := newResolver(t, dir)
	for range 10 {
		info, err := r.Definition(context.Background(), ref, 0)
		require.NoError(t, err)
		assert.Equal(t, first, info.Path)
		assert.Contains(t, info.Text, "one")
	}
}

func TestDefinitionFollowsSourceDirOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "x.h"), "#pragma cle def L { a }\n")
	second := writeFile(t, filepath.Join(root, "b", "y.h"), "#pragma cle def L { b }\n")

	r := newResolver(t, filepath.Join(root, "b"), filepath.Join(root, "a"))
	info, err := r.DefinitionOf(context.Background(), "L")
	require.NoError(t, err)
	assert.Equal(t, second, info.Path)
}

func TestOccurrences(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.c"), `#pragma cle def ORANGE {"level":"orange"}
#pragma cle begin ORANGE
int a;
#pragma cle end ORANGE
#pragma cle begin PURPLE
int p;
#pragma cle end PURPLE
`)
	b := writeFile(t, filepath.Join(dir, "sub", "b.c"), "  #pragma cle ORANGE\nint b;\n")

	r := newResolver(t, dir)
	occs, err := r.Occurrences(context.Background(), "ORANGE")
	require.NoError(t, err)
	require.Len(t, occs, 3)

	assert.Equal(t, a, occs[0].Path)
	assert.Equal(t, uint32(1), occs[0].Range.Start.Line)
	assert.Equal(t, a, occs[1].Path)
	assert.Equal(t, uint32(3), occs[1].Range.Start.Line)
	assert.Equal(t, b, occs[2].Path)
	assert.Equal(t, protocol.Position{Line: 0, Character: 2}, occs[2].Range.Start)
	for _, o := range occs {
		assert.Equal(t, "ORANGE", o.Label)
	}
}

func TestOccurrencesEmptyButValid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.c"), "int main(void) { return 0; }\n")

	occs, err := newResolver(t, dir).Occurrences(context.Background(), "GHOST")
	require.NoError(t, err)
	assert.NotNil(t, occs)
	assert.Empty(t, occs)
}

func TestOccurrencesNoSourceDirectories(t *testing.T) {
	occs, err := newResolver(t).Occurrences(context.Background(), "ANY")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, occs)

	// Directories that yield no files behave the same way.
	occs, err = newResolver(t, t.TempDir()).Occurrences(context.Background(), "ANY")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, occs)
}

func TestOccurrencesSkipsUnreadableFiles(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	dir := t.TempDir()
	locked := writeFile(t, filepath.Join(dir, "locked.c"), "#pragma cle begin X\n")
	ok := writeFile(t, filepath.Join(dir, "ok.c"), "#pragma cle begin X\n")
	require.NoError(t, os.Chmod(locked, 0))

	var logs bytes.Buffer
	cfg := config.DefaultConfig()
	cfg.SourceDirs = []string{dir}
	r := New(cfg, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	occs, err := r.Occurrences(context.Background(), "X")
	require.NoError(t, err)
	require.Len(t, occs, 1)
	assert.Equal(t, ok, occs[0].Path)
	assert.Contains(t, logs.String(), "skipping unreadable file")
	assert.Contains(t, logs.String(), "locked.c")
}

func TestRename(t *testing.T) {
	def := &models.CLEInfo{
		Range: protocol.Range{Start: protocol.Position{Line: 2, Character: 0}, End: protocol.Position{Line: 2, Character: 34}},
		Text:  "#pragma cle def secretA { x = 1; }",
		Path:  "/src/g.c",
		Label: "secretA",
	}
	occs := []models.CLEInfo{
		{
			Range: protocol.Range{Start: protocol.Position{Line: 10, Character: 4}, End: protocol.Position{Line: 10, Character: 29}},
			Text:  "#pragma cle begin secretA",
			Path:  "/src/f.c",
			Label: "secretA",
		},
		{
			Range: protocol.Range{Start: protocol.Position{Line: 12, Character: 0}, End: protocol.Position{Line: 12, Character: 23}},
			Text:  "#pragma cle end secretA",
			Path:  "/src/f.c",
			Label: "secretA",
		},
	}

	edit := Rename(def, occs, "secretB")
	require.Len(t, edit.Changes, 2)

	g := edit.Changes[DocumentURI("/src/g.c")]
	require.Len(t, g, 1)
	assert.Equal(t, protocol.TextEdit{
		Range: protocol.Range{
			Start: protocol.Position{Line: 2, Character: 16},
			End:   protocol.Position{Line: 2, Character: 23},
		},
		NewText: "secretB",
	}, g[0])

	f := edit.Changes[DocumentURI("/src/f.c")]
	require.Len(t, f, 2)
	assert.Equal(t, protocol.Position{Line: 10, Character: 22}, f[0].Range.Start)
	assert.Equal(t, protocol.Position{Line: 10, Character: 29}, f[0].Range.End)
	assert.Equal(t, protocol.Position{Line: 12, Character: 16}, f[1].Range.Start)
}

func TestRenameOmitsFilesWithoutEdits(t *testing.T) {
	edit := Rename(nil, nil, "X")
	assert.Empty(t, edit.Changes)

	broken := models.CLEInfo{Text: "no label", Path: "/src/h.c", Label: "ZZZ"}
	edit = Rename(nil, []models.CLEInfo{broken}, "X")
	_, present := edit.Changes[DocumentURI("/src/h.c")]
	assert.False(t, present)
}

func TestRenameAt(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, filepath.Join(dir, "f.c"), "#pragma cle begin A\nint x;\n#pragma cle end A\n")
	g := writeFile(t, filepath.Join(dir, "g.h"), "#pragma cle def A { }\n")
	writeFile(t, filepath.Join(dir, "h.c"), "int unrelated;\n")

	r := newResolver(t, dir)
	edit, err := r.RenameAt(context.Background(), f, 2, "B_2")
	require.NoError(t, err)

	require.Len(t, edit.Changes, 2)
	assert.Len(t, edit.Changes[DocumentURI(f)], 2)
	assert.Len(t, edit.Changes[DocumentURI(g)], 1)
	for _, edits := range edit.Changes {
		for _, e := range edits {
			assert.Equal(t, "B_2", e.NewText)
			assert.Equal(t, uint32(1), e.Range.End.Character-e.Range.Start.Character)
		}
	}

	_, err = r.RenameAt(context.Background(), f, 0, "not valid")
	var nameErr *InvalidNameError
	assert.True(t, errors.As(err, &nameErr))

	_, err = r.RenameAt(context.Background(), f, 1, "C")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHover(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, filepath.Join(dir, "f.c"), "#pragma cle begin H\n")
	writeFile(t, filepath.Join(dir, "defs.h"), "#pragma cle def H {\"level\":\"orange\"}\n")

	hover, err := newResolver(t, dir).Hover(context.Background(), f, 0)
	require.NoError(t, err)
	assert.Equal(t, protocol.Markdown, hover.Contents.Kind)
	assert.Equal(t, "```c\n#pragma cle def H {\"level\":\"orange\"}\n```", hover.Contents.Value)
}

func TestResolverUsesOverlay(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, filepath.Join(dir, "f.c"), "int x;\n")
	writeFile(t, filepath.Join(dir, "d.h"), "#pragma cle def LIVE { }\n")

	overlay := source.NewOverlay(source.NewFilesystem())
	overlay.Set(f, []byte("#pragma cle begin LIVE\n"))

	cfg := config.DefaultConfig()
	cfg.SourceDirs = []string{dir}
	r := New(cfg, WithSource(overlay))

	info, err := r.Definition(context.Background(), f, 0)
	require.NoError(t, err)
	assert.Equal(t, "LIVE", info.Label)

	occs, err := r.Occurrences(context.Background(), "LIVE")
	require.NoError(t, err)
	assert.Len(t, occs, 1)
}

func TestDefinitionsListsEveryLabel(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.c"), "#pragma cle def ORANGE {}\nint x;\n  #pragma cle def PURPLE { y }\n")
	b := writeFile(t, filepath.Join(dir, "b.c"), "#pragma cle begin ORANGE\n#pragma cle def ORANGE {}\n")

	defs, err := newResolver(t, dir).Definitions(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 3)
	assert.Equal(t, []string{"ORANGE", "PURPLE", "ORANGE"}, []string{defs[0].Label, defs[1].Label, defs[2].Label})
	assert.Equal(t, []string{a, a, b}, []string{defs[0].Path, defs[1].Path, defs[2].Path})
	assert.Equal(t, protocol.Position{Line: 2, Character: 2}, defs[1].Range.Start)

	_, err = newResolver(t).Definitions(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}
