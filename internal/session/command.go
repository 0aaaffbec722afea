package session

import (
	"context"
	"errors"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// Placeholders expanded in the analyzer command line.
const (
	placeholderURI    = "{uri}"
	placeholderFile   = "{file}"
	placeholderFiles  = "{files}"
	placeholderOutput = "{output}"
)

// ExpandCommand fills the placeholders of an analyzer command line.
// {uri} becomes the address the analyzer connects to, {file} the first
// input file, {files} every input file and {output} the output directory.
// Substituted values are shell quoted. A command without placeholders is
// returned unchanged.
func ExpandCommand(command, bindURI string, files []string, outputDir string) string {
	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = shellQuote(f)
	}
	first := ""
	if len(quoted) > 0 {
		first = quoted[0]
	}
	r := strings.NewReplacer(
		placeholderURI, shellQuote(ConnectEndpoint(bindURI)),
		placeholderFiles, strings.Join(quoted, " "),
		placeholderFile, first,
		placeholderOutput, shellQuote(outputDir),
	)
	return r.Replace(command)
}

// BindEndpoint rewrites a wildcard host so the endpoint can be listened on.
func BindEndpoint(endpoint string) string {
	return rewriteHost(endpoint, func(host string) string {
		if host == "*" || host == "" {
			return "0.0.0.0"
		}
		return host
	})
}

// ConnectEndpoint rewrites a wildcard host to localhost so a local process
// can dial the endpoint.
func ConnectEndpoint(endpoint string) string {
	return rewriteHost(endpoint, func(host string) string {
		switch host {
		case "*", "", "0.0.0.0", "::":
			return "localhost"
		}
		return host
	})
}

func rewriteHost(endpoint string, fn func(string) string) string {
	scheme, addr, ok := strings.Cut(endpoint, "://")
	if !ok || scheme != "tcp" {
		return endpoint
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return endpoint
	}
	return scheme + "://" + net.JoinHostPort(fn(host), port)
}

func shellQuote(s string) string {
	if runtime.GOOS == "windows" {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=@+,", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// shellCommand runs command through the platform shell.
func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}

// exitCode extracts the exit status of a finished process, or -1.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// withEnv returns the inherited environment plus extra bindings.
func withEnv(extra ...string) []string {
	return append(os.Environ(), extra...)
}

// tailBuffer keeps the last max bytes written to it.
// It is safe for concurrent use.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
