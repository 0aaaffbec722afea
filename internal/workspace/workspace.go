// Package workspace holds the process-wide state shared by the commands and
// the MCP server: the settings, the last topology and the active document.
package workspace

import (
	"errors"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/gaps-closure/vscle/internal/artifact"
	"github.com/gaps-closure/vscle/internal/session"
	"github.com/gaps-closure/vscle/pkg/config"
	"github.com/gaps-closure/vscle/pkg/models"
)

// ErrNoTopology is returned when no session has produced a topology and no
// artifact exists on disk.
var ErrNoTopology = errors.New("no topology available; run an analysis first")

// State is a last-write-wins container. Every read observes the most
// recent write.
type State struct {
	cfg *config.Config

	mu       sync.RWMutex
	topology *models.Topology
	active   string
	logger   *slog.Logger
}

// Option configures a State.
type Option func(*State)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *State) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a State holding cfg.
func New(cfg *config.Config, opts ...Option) *State {
	s := &State{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the settings the State was created with. They are fixed
// for its lifetime.
func (s *State) Config() *config.Config {
	return s.cfg
}

// SetTopology replaces the live topology wholesale.
func (s *State) SetTopology(top *models.Topology) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topology = top
}

// Topology returns the live topology, falling back to the persisted
// artifact when no session has produced one yet. The artifact is read on
// every call and never kept.
func (s *State) Topology() (*models.Topology, error) {
	s.mu.RLock()
	top, cfg := s.topology, s.cfg
	s.mu.RUnlock()
	if top != nil {
		return top, nil
	}

	path := cfg.TopologyPath()
	top, err := artifact.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoTopology
	}
	if err != nil {
		s.logger.Warn("failed to read topology artifact", "path", path, "error", err)
		return nil, ErrNoTopology
	}
	return top, nil
}

// SetActiveDocument records the document the user is looking at.
func (s *State) SetActiveDocument(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = path
}

// ActiveDocument returns the recorded document, or "".
func (s *State) ActiveDocument() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Apply records a session outcome. Only a successful outcome changes the
// topology; conflicts leave the previous one in place.
func (s *State) Apply(out *session.Outcome) {
	if out.Succeeded() {
		s.SetTopology(out.Topology)
	}
}
