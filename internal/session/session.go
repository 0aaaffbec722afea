// Package session runs one conflict-analysis session: optional prebuild
// steps, a ZeroMQ reply socket, the analyzer subprocess and the exchange of
// a single result message between them.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/gaps-closure/vscle/internal/artifact"
	"github.com/gaps-closure/vscle/pkg/config"
	"github.com/gaps-closure/vscle/pkg/models"
)

const (
	// maxOutput bounds the subprocess output kept for error reports.
	maxOutput = 8 << 10

	// ackTimeout bounds the wait for the acknowledgement frame.
	ackTimeout = 500 * time.Millisecond

	// waitDelay bounds the wait for output pipes after a process is killed.
	waitDelay = 2 * time.Second

	msgUnparseable = "could not parse analyzer result"
)

// ackFrame is sent back to the analyzer after a result is received.
var ackFrame = []byte(`{"result":"ack"}`)

// Outcome is the result of a session that did not fail: either a topology
// or the conflict diagnostics.
type Outcome struct {
	Topology    *models.Topology    `json:"topology,omitempty"`
	Diagnostics []models.Diagnostic `json:"diagnostics,omitempty"`
}

// Succeeded reports whether the analyzer produced a topology.
func (o *Outcome) Succeeded() bool {
	return o != nil && o.Topology != nil
}

// Coordinator runs analysis sessions. A Coordinator owns the configured
// socket address, so at most one session runs on it at a time.
type Coordinator struct {
	cfg        *config.Config
	logger     *slog.Logger
	onPrebuild func(file string)
	busy       atomic.Bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for subprocess and socket events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPrebuildProgress registers a callback invoked after each successful
// prebuild step.
func WithPrebuildProgress(fn func(file string)) Option {
	return func(c *Coordinator) {
		c.onPrebuild = fn
	}
}

// New creates a Coordinator for cfg.
func New(cfg *config.Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run analyzes files. It returns an Outcome for Success and Conflict
// results, and one of ConfigurationError, ProtocolError,
// AnalyzerReportedError or SubprocessError otherwise.
func (c *Coordinator) Run(ctx context.Context, files []string) (*Outcome, error) {
	if len(files) == 0 {
		return nil, &ConfigurationError{Reason: "no source files to analyze"}
	}
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrSessionInProgress
	}
	defer c.busy.Store(false)

	start := time.Now()
	if err := c.prebuild(ctx, files); err != nil {
		return nil, err
	}

	payload, err := c.exchange(ctx, files)
	if err != nil {
		return nil, err
	}

	result, err := decodeResult(payload)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("analysis finished", "result", result.Tag(), "files", len(files), "elapsed", time.Since(start))

	return c.dispatch(result)
}

func (c *Coordinator) prebuild(ctx context.Context, files []string) error {
	if strings.TrimSpace(c.cfg.Prebuild) == "" {
		return nil
	}
	wd := c.cfg.EffectiveWorkingDir()

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		out := newTailBuffer(maxOutput)
		cmd := shellCommand(ctx, c.cfg.Prebuild)
		cmd.Dir = wd
		cmd.Env = withEnv("SRC_FILE="+f, "WORKING_DIR="+wd)
		cmd.Stdout = out
		cmd.Stderr = out
		cmd.WaitDelay = waitDelay

		c.logger.Debug("running prebuild", "file", f)
		if err := cmd.Run(); err != nil {
			return &SubprocessError{
				Stage:    StagePrebuild,
				Command:  c.cfg.Prebuild,
				File:     f,
				ExitCode: exitCode(err),
				Output:   out.String(),
				Err:      err,
			}
		}
		if c.onPrebuild != nil {
			c.onPrebuild(f)
		}
	}
	return nil
}

type received struct {
	data []byte
	err  error
}

// exchange binds the socket, starts the analyzer and waits until it has both
// delivered a message and exited cleanly.
func (c *Coordinator) exchange(ctx context.Context, files []string) ([]byte, error) {
	sockCtx, cancelSock := context.WithCancel(ctx)
	sock := zmq4.NewRep(sockCtx)
	var closeOnce sync.Once
	closeSocket := func() {
		closeOnce.Do(func() {
			cancelSock()
			if err := sock.Close(); err != nil {
				c.logger.Debug("socket close", "error", err)
			}
		})
	}
	defer closeSocket()

	endpoint := BindEndpoint(c.cfg.ZMQURI)
	if err := sock.Listen(endpoint); err != nil {
		return nil, &ConfigurationError{Reason: "cannot bind " + endpoint, Err: err}
	}

	procCtx, kill := context.WithCancel(ctx)
	defer kill()

	command := ExpandCommand(c.cfg.Analyzer.Command, c.cfg.ZMQURI, files, c.cfg.OutputPath)
	out := newTailBuffer(maxOutput)
	cmd := shellCommand(procCtx, command)
	cmd.Dir = c.cfg.EffectiveWorkingDir()
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = waitDelay

	c.logger.Debug("starting analyzer", "command", command, "endpoint", endpoint)
	if err := cmd.Start(); err != nil {
		return nil, &SubprocessError{Stage: StageAnalyzer, Command: command, ExitCode: -1, Err: err}
	}

	exitCh := make(chan error, 1)
	go func() {
		exitCh <- cmd.Wait()
	}()

	msgCh := make(chan received, 1)
	go func() {
		msg, err := sock.Recv()
		msgCh <- received{data: msg.Bytes(), err: err}
	}()

	var (
		payload []byte
		gotMsg  bool
		exited  bool
		grace   <-chan time.Time
	)
	for !gotMsg || !exited {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case err := <-exitCh:
			exitCh = nil
			exited = true
			if err != nil {
				return nil, &SubprocessError{
					Stage:    StageAnalyzer,
					Command:  command,
					ExitCode: exitCode(err),
					Output:   out.String(),
					Err:      err,
				}
			}
			if !gotMsg {
				c.logger.Debug("analyzer exited before delivering, waiting", "grace", c.cfg.Analyzer.ResultGrace)
				grace = time.After(c.cfg.Analyzer.ResultGrace)
			}

		case r := <-msgCh:
			msgCh = nil
			if r.err != nil {
				return nil, &ProtocolError{Msg: "failed to receive analyzer result", Err: r.err}
			}
			gotMsg = true
			grace = nil
			payload = r.data
			if c.cfg.Analyzer.Ack {
				c.acknowledge(sock)
			}

		case <-grace:
			return nil, &ProtocolError{Msg: "analyzer exited without delivering a result"}
		}
	}
	return payload, nil
}

// acknowledge answers the analyzer's request so a peer waiting for a reply
// can exit. Delivery is best effort.
func (c *Coordinator) acknowledge(sock zmq4.Socket) {
	done := make(chan error, 1)
	go func() {
		done <- sock.Send(zmq4.NewMsg(ackFrame))
	}()
	select {
	case err := <-done:
		if err != nil {
			c.logger.Debug("acknowledgement not delivered", "error", err)
		}
	case <-time.After(ackTimeout):
		c.logger.Debug("acknowledgement timed out")
	}
}

func decodeResult(payload []byte) (models.AnalyzerResult, error) {
	if err := ValidatePayload(payload); err != nil {
		return nil, &ProtocolError{Msg: msgUnparseable, Err: err}
	}
	result, err := models.DecodeAnalyzerResult(payload)
	if err != nil {
		return nil, &ProtocolError{Msg: msgUnparseable, Err: err}
	}
	return result, nil
}

func (c *Coordinator) dispatch(result models.AnalyzerResult) (*Outcome, error) {
	switch r := result.(type) {
	case *models.SuccessResult:
		top := r.Topology
		if c.cfg.Analyzer.Persist {
			path := c.cfg.TopologyPath()
			if err := artifact.Write(path, &top); err != nil {
				c.logger.Warn("failed to persist topology", "path", path, "error", err)
			}
		}
		return &Outcome{Topology: &top}, nil
	case *models.ConflictResult:
		for _, conflict := range r.Conflicts {
			if !conflict.Name.Known() {
				c.logger.Warn("unrecognized conflict name", "name", conflict.Name)
			}
		}
		return &Outcome{Diagnostics: ConflictDiagnostics(r.Conflicts)}, nil
	case *models.ErrorResult:
		return nil, &AnalyzerReportedError{Errors: r.Errors}
	default:
		return nil, &ProtocolError{Msg: msgUnparseable, Err: fmt.Errorf("%w: %T", models.ErrUnknownTag, result)}
	}
}

// IsSessionError reports whether err is one of the session failure types.
func IsSessionError(err error) bool {
	var (
		cfgErr  *ConfigurationError
		protErr *ProtocolError
		anErr   *AnalyzerReportedError
		subErr  *SubprocessError
	)
	return errors.As(err, &cfgErr) || errors.As(err, &protErr) ||
		errors.As(err, &anErr) || errors.As(err, &subErr) ||
		errors.Is(err, ErrSessionInProgress)
}
