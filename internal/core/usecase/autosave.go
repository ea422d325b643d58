package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
)

const DefaultAutosaveInterval = 30 * time.Second

// AutosaveScheduler fires a best-effort save on a fixed interval. A tick is
// a no-op unless the response changed since the last save, no save attempt
// has errored since the last successful manual save, and autosave has not
// been paused by a manual save.
type AutosaveScheduler struct {
	machine  *SubmissionMachine
	ws       *Workspace
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	stopped chan struct{}
	running bool
}

func NewAutosaveScheduler(machine *SubmissionMachine, ws *Workspace, interval time.Duration, logger *slog.Logger) *AutosaveScheduler {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AutosaveScheduler{
		machine:  machine,
		ws:       ws,
		interval: interval,
		logger:   logger,
	}
}

// Run ticks until ctx is done or Stop is called. A save already in flight
// is never cancelled by stopping.
func (s *AutosaveScheduler) Run(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	stopped := make(chan struct{})
	s.stopped = stopped
	s.mu.Unlock()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopped:
			return
		case <-ticker.C:
			// Detached so that a stop does not cancel the request.
			if _, err := s.Tick(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("autosave_failed", "error", err)
			}
		}
	}
}

func (s *AutosaveScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && s.stopped != nil {
		close(s.stopped)
		s.stopped = nil
	}
}

// Tick performs one scheduling decision. It reports whether a save request
// was issued.
func (s *AutosaveScheduler) Tick(ctx context.Context) (bool, error) {
	if !s.ready() {
		return false, nil
	}
	if err := s.machine.save(ctx, s.ws, saveAuto); err != nil {
		issued := !domain.IsKind(err, domain.ErrNoLanguageSelected) && !domain.IsKind(err, domain.ErrInvalidState) &&
			!domain.IsKind(err, domain.ErrValidation)
		return issued, err
	}
	return true, nil
}

func (s *AutosaveScheduler) ready() bool {
	ws := s.ws
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.finalizedLocked() || ws.autosaveOff || ws.saveErrored || !CanSave(ws.policy, ws.text) {
		return false
	}
	return HasChanged(ws.currentLocked(), ws.saved)
}
