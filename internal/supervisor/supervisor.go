// Package supervisor owns the lifetime of agent OS processes, one per
// session. Each process streams NDJSON on stdout; the supervisor decodes the
// stream and republishes it on the event bus, so everything downstream (UI,
// broker, store) sees one message shape.
package supervisor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentdeck/agentdeck/internal/common/config"
	apperrors "github.com/agentdeck/agentdeck/internal/common/errors"
	"github.com/agentdeck/agentdeck/internal/common/logger"
	"github.com/agentdeck/agentdeck/internal/events"
	"github.com/agentdeck/agentdeck/internal/events/bus"
	"github.com/agentdeck/agentdeck/pkg/claudecode"
)

// inputBufferSize bounds queued interactive messages per process.
const inputBufferSize = 16

// StartOptions configure one agent launch.
type StartOptions struct {
	SessionID   string
	Prompt      string
	Cwd         string
	ResumeID    string
	Profile     string
	Interactive bool
}

type agentProcess struct {
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	startedAt   time.Time
	interactive bool

	// inputCh bridges SendInput to the process stdin in interactive mode;
	// nil in --print mode where stdin closes right after start.
	inputCh chan string

	inputMu     sync.Mutex
	inputClosed bool

	// readers tracks the stdout/stderr pumps. cmd.Wait closes the pipes,
	// so the exit watcher must not call it until both have drained.
	readers sync.WaitGroup
}

// sendInput queues one line for the stdin writer. Fails once the bridge is
// closed or the buffer is full.
func (p *agentProcess) sendInput(line string) error {
	p.inputMu.Lock()
	defer p.inputMu.Unlock()
	if p.inputClosed || p.inputCh == nil {
		return apperrors.BadRequest("agent process does not accept input")
	}
	select {
	case p.inputCh <- line:
		return nil
	default:
		return apperrors.InternalError("agent input buffer full", nil)
	}
}

// closeInput signals the agent to finish by ending its stdin.
func (p *agentProcess) closeInput() {
	p.inputMu.Lock()
	defer p.inputMu.Unlock()
	if p.inputClosed {
		return
	}
	p.inputClosed = true
	if p.inputCh != nil {
		close(p.inputCh)
		return
	}
	if p.stdin != nil {
		_ = p.stdin.Close()
	}
}

// Supervisor launches and tracks agent processes.
type Supervisor struct {
	cfg      config.AgentConfig
	bus      bus.EventBus
	logger   *logger.Logger
	profiles Profiles

	mu    sync.Mutex
	procs map[string]*agentProcess
}

// New creates a Supervisor, loading launch profiles from cfg.ProfilesPath
// when one is configured.
func New(cfg config.AgentConfig, eventBus bus.EventBus, log *logger.Logger) (*Supervisor, error) {
	profiles, err := LoadProfiles(cfg.ProfilesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load launch profiles: %w", err)
	}
	return &Supervisor{
		cfg:      cfg,
		bus:      eventBus,
		logger:   log.WithFields(zap.String("component", "supervisor")),
		profiles: profiles,
		procs:    make(map[string]*agentProcess),
	}, nil
}

// Start launches an agent process for the session. A session with a live
// process fails with already exists; the incumbent is never touched.
func (s *Supervisor) Start(ctx context.Context, opts StartOptions) error {
	if opts.SessionID == "" {
		return apperrors.BadRequest("session_id is required")
	}
	if opts.Prompt == "" && !opts.Interactive {
		return apperrors.BadRequest("prompt is required")
	}

	profile, err := s.profiles.Lookup(opts.Profile)
	if err != nil {
		return err
	}

	proc := &agentProcess{
		startedAt:   time.Now(),
		interactive: opts.Interactive,
	}
	if opts.Interactive {
		proc.inputCh = make(chan string, inputBufferSize)
	}

	// Reserve the slot before spawning so a concurrent duplicate Start
	// observes it. A failed spawn releases the reservation below.
	s.mu.Lock()
	if _, exists := s.procs[opts.SessionID]; exists {
		s.mu.Unlock()
		return apperrors.AlreadyExists(fmt.Sprintf("agent process already running for session %s", opts.SessionID))
	}
	s.procs[opts.SessionID] = proc
	s.mu.Unlock()

	if err := s.spawn(proc, opts, profile); err != nil {
		s.mu.Lock()
		delete(s.procs, opts.SessionID)
		s.mu.Unlock()
		return err
	}

	s.logger.Info("agent process started",
		zap.String("session_id", opts.SessionID),
		zap.String("binary", proc.cmd.Path),
		zap.Bool("interactive", opts.Interactive),
		zap.Bool("resume", opts.ResumeID != ""))
	return nil
}

func (s *Supervisor) spawn(proc *agentProcess, opts StartOptions, profile *Profile) error {
	binary := s.resolveBinary(profile)

	args := []string{"--print", "--output-format", "stream-json", "--verbose"}
	if opts.Interactive {
		args = append(args, "--input-format", "stream-json")
	}
	if opts.ResumeID != "" {
		args = append(args, "--resume", opts.ResumeID)
	}
	if profile != nil {
		args = append(args, profile.Args...)
	}
	if opts.Prompt != "" {
		args = append(args, opts.Prompt)
	}

	cmd := exec.Command(binary, args...)
	cmd.Dir = opts.Cwd
	cmd.Env = buildEnv(profile)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return apperrors.InternalError("failed to pipe stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return apperrors.InternalError("failed to pipe stdout", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return apperrors.InternalError("failed to pipe stderr", err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		_ = stderr.Close()
		return apperrors.InternalError(fmt.Sprintf("failed to start agent binary %s", binary), err)
	}

	proc.cmd = cmd
	proc.stdin = stdin

	if opts.Interactive {
		go s.pumpStdin(opts.SessionID, proc)
	} else {
		// --print mode takes the whole prompt on argv; close stdin so the
		// agent runs a single turn and exits.
		_ = stdin.Close()
	}

	proc.readers.Add(2)
	go func() {
		defer proc.readers.Done()
		s.pumpStdout(opts.SessionID, stdout)
	}()
	go func() {
		defer proc.readers.Done()
		s.pumpStderr(opts.SessionID, stderr)
	}()
	go s.watchExit(opts.SessionID, proc)
	return nil
}

// buildEnv merges launch overrides over the inherited environment. The TERM
// and locale pins keep agent output stable regardless of the daemon's own
// environment.
func buildEnv(profile *Profile) []string {
	env := append(os.Environ(),
		"TERM=xterm-256color",
		"LANG=en_US.UTF-8",
		"LC_ALL=en_US.UTF-8",
	)
	if profile != nil {
		for key, value := range profile.Env {
			env = append(env, key+"="+value)
		}
	}
	return env
}

// resolveBinary picks the agent binary: explicit config override, then the
// profile, then the first configured candidate that exists, then PATH.
func (s *Supervisor) resolveBinary(profile *Profile) string {
	if s.cfg.Binary != "" {
		return s.cfg.Binary
	}
	if profile != nil {
		if profile.Binary != "" {
			return profile.Binary
		}
		for _, candidate := range profile.Candidates {
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	for _, candidate := range s.cfg.Candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "claude"
}

// Stop requests a cooperative shutdown: the registry entry goes away
// immediately and the agent sees EOF on stdin. The exit watcher still emits
// the final done event when the process finishes.
func (s *Supervisor) Stop(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	proc, ok := s.procs[sessionID]
	if ok {
		delete(s.procs, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return apperrors.NotFound(fmt.Sprintf("no running agent process for session %s", sessionID))
	}

	proc.closeInput()

	event := bus.NewEvent(events.SessionStopped, "supervisor", map[string]interface{}{
		"session_id": sessionID,
	})
	if err := s.bus.Publish(ctx, events.BuildSessionStoppedSubject(sessionID), event); err != nil {
		s.logger.Error("failed to publish session stopped event",
			zap.String("session_id", sessionID), zap.Error(err))
	}

	s.logger.Info("agent process stop requested", zap.String("session_id", sessionID))
	return nil
}

// SendInput delivers one user message to a running interactive process.
func (s *Supervisor) SendInput(ctx context.Context, sessionID, text string) error {
	s.mu.Lock()
	proc, ok := s.procs[sessionID]
	s.mu.Unlock()
	if !ok {
		return apperrors.NotFound(fmt.Sprintf("no running agent process for session %s", sessionID))
	}
	if !proc.interactive {
		return apperrors.NotFound(fmt.Sprintf("agent process for session %s is not interactive", sessionID))
	}

	line, err := json.Marshal(map[string]interface{}{
		"type": "user",
		"message": map[string]interface{}{
			"role": "user",
			"content": []map[string]interface{}{
				{"type": "text", "text": text},
			},
		},
	})
	if err != nil {
		return apperrors.InternalError("failed to encode user message", err)
	}
	return proc.sendInput(string(line))
}

// IsRunning reports whether the session has a live agent process.
func (s *Supervisor) IsRunning(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.procs[sessionID]
	return ok
}

// ListRunning returns the session IDs with live processes, sorted.
func (s *Supervisor) ListRunning() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.procs))
	for id := range s.procs {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Shutdown stops every running process cooperatively.
func (s *Supervisor) Shutdown(ctx context.Context) {
	for _, id := range s.ListRunning() {
		if err := s.Stop(ctx, id); err != nil && !apperrors.IsNotFound(err) {
			s.logger.Error("failed to stop agent process during shutdown",
				zap.String("session_id", id), zap.Error(err))
		}
	}
}

// pumpStdin writes queued interactive messages as NDJSON lines, closing the
// process stdin once the bridge closes.
func (s *Supervisor) pumpStdin(sessionID string, proc *agentProcess) {
	defer func() {
		_ = proc.stdin.Close()
	}()
	for line := range proc.inputCh {
		if _, err := io.WriteString(proc.stdin, line+"\n"); err != nil {
			s.logger.Warn("failed to write agent input",
				zap.String("session_id", sessionID), zap.Error(err))
			return
		}
	}
}

// pumpStdout decodes the NDJSON stream and republishes every message.
func (s *Supervisor) pumpStdout(sessionID string, stdout io.Reader) {
	log := s.logger.WithSessionID(sessionID)
	scanner := claudecode.NewScanner(stdout, claudecode.WithMalformedLineFunc(func(line string, err error) {
		log.Warn("malformed agent stream line",
			zap.String("line", truncate(line, 512)),
			zap.Error(err))
	}))

	ctx := context.Background()
	for scanner.Scan() {
		msg := scanner.Message()
		event := bus.NewEvent(events.SessionMessage, "supervisor", map[string]interface{}{
			"session_id": sessionID,
			"message":    msg,
		})
		if err := s.bus.Publish(ctx, events.BuildSessionMessageSubject(sessionID), event); err != nil {
			log.Error("failed to publish session message", zap.Error(err))
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn("agent stdout closed with error", zap.Error(err))
	}
}

// pumpStderr republishes raw stderr lines for the UI's error pane.
func (s *Supervisor) pumpStderr(sessionID string, stderr io.Reader) {
	log := s.logger.WithSessionID(sessionID)
	ctx := context.Background()

	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		log.Warn("agent stderr", zap.String("error", line))
		event := bus.NewEvent(events.SessionStderr, "supervisor", map[string]interface{}{
			"session_id": sessionID,
			"error":      line,
		})
		if err := s.bus.Publish(ctx, events.BuildSessionStderrSubject(sessionID), event); err != nil {
			log.Error("failed to publish session stderr", zap.Error(err))
		}
	}
}

// watchExit waits for the process, frees the registry slot, and emits the
// done event. Removal happens before the event so a Start racing with the
// event sees a free slot.
func (s *Supervisor) watchExit(sessionID string, proc *agentProcess) {
	proc.readers.Wait()
	err := proc.cmd.Wait()

	s.mu.Lock()
	if current, ok := s.procs[sessionID]; ok && current == proc {
		delete(s.procs, sessionID)
	}
	s.mu.Unlock()

	proc.closeInput()

	var exitCode interface{}
	if state := proc.cmd.ProcessState; state != nil && state.Exited() {
		exitCode = state.ExitCode()
	}
	// exitCode stays null when the process died on a signal.

	log := s.logger.WithSessionID(sessionID)
	if err != nil {
		log.Warn("agent process exited with error", zap.Error(err))
	} else {
		log.Info("agent process exited", zap.Any("exit_code", exitCode))
	}

	event := bus.NewEvent(events.SessionDone, "supervisor", map[string]interface{}{
		"session_id": sessionID,
		"exit_code":  exitCode,
	})
	if pubErr := s.bus.Publish(context.Background(), events.BuildSessionDoneSubject(sessionID), event); pubErr != nil {
		log.Error("failed to publish session done event", zap.Error(pubErr))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
