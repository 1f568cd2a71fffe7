// internal/station/station.go
package station

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tamzrod/token-programmer/internal/presence"
	"github.com/tamzrod/token-programmer/internal/publish"
	"github.com/tamzrod/token-programmer/internal/status"
	"github.com/tamzrod/token-programmer/internal/token"
)

// Station runs one Job per insertion and keeps the status block and the
// indicator lamps in step with presence and job verdicts.
type Station struct {
	state   *presence.State
	manager *token.Manager
	job     *Job
	tracker *status.Tracker

	writer    publish.StatusWriter
	indicator Indicator
	onResult  func(Result)
	log       *slog.Logger
	tick      time.Duration
}

// Option configures a Station.
type Option func(*Station)

// WithStatusWriter publishes every snapshot change.
func WithStatusWriter(w publish.StatusWriter) Option {
	return func(s *Station) { s.writer = w }
}

// WithIndicator mirrors every snapshot change on lamps.
func WithIndicator(i Indicator) Option {
	return func(s *Station) { s.indicator = i }
}

// WithResultHook is called after every job.
func WithResultHook(fn func(Result)) Option {
	return func(s *Station) { s.onResult = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Station) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTick sets the seconds_in_error period. Default 1s.
func WithTick(d time.Duration) Option {
	return func(s *Station) {
		if d > 0 {
			s.tick = d
		}
	}
}

// New wires a station. The caller runs the presence debouncer.
func New(state *presence.State, m *token.Manager, job *Job, opts ...Option) (*Station, error) {
	if state == nil {
		return nil, errors.New("station: presence state required")
	}
	if m == nil {
		return nil, errors.New("station: manager required")
	}
	if job == nil {
		return nil, errors.New("station: job required")
	}
	s := &Station{
		state:   state,
		manager: m,
		job:     job,
		tracker: status.NewTracker(),
		log:     slog.Default(),
		tick:    time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Snapshot returns the current status snapshot.
func (s *Station) Snapshot() status.Snapshot {
	return s.tracker.Snapshot()
}

// Run handles presence changes until ctx ends. A token already inserted
// when Run starts is programmed immediately.
func (s *Station) Run(ctx context.Context) error {
	// Full block write on start (identity re-assert).
	s.tracker.Idle()
	s.publish(true)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.Handle(ctx)

	for {
		select {
		case <-ctx.Done():
			if s.indicator != nil {
				_ = s.indicator.Show(status.Snapshot{})
			}
			return nil

		case <-s.state.Changes():
			s.Handle(ctx)

		case <-ticker.C:
			// seconds_in_error increments on the ticker only
			s.publish(s.tracker.Tick())
		}
	}
}

// Handle consumes one pending presence change. On insertion it runs the
// job and returns its result; ran is false otherwise.
func (s *Station) Handle(ctx context.Context) (res Result, ran bool) {
	kind, changed, err := s.manager.Refresh()
	if !changed {
		return Result{}, false
	}

	if errors.Is(err, token.ErrRemoved) || (err == nil && kind == token.KindNone) {
		s.log.Info("station: token removed")
		s.publish(s.tracker.Removed())
		return Result{}, false
	}

	if err != nil {
		// classification failed: report it as a failed job
		s.log.Warn("station: classification failed", "err", err)
		s.tracker.Inserted(token.KindNone, 0)
		s.tracker.JobStarted()
		s.publish(s.tracker.JobFinished(err, token.RegionNone))
		return Result{Err: err}, false
	}

	size := uint32(0)
	if dev, derr := s.manager.Device(); derr == nil {
		size = dev.Geometry().MemSize
	}
	s.tracker.Inserted(kind, size)
	s.tracker.JobStarted()
	s.publish(true)

	res = s.job.Run(ctx)
	s.publish(s.tracker.JobFinished(res.Err, res.Region))

	if s.onResult != nil {
		s.onResult(res)
	}
	return res, true
}

// publish delivers the current snapshot when changed.
func (s *Station) publish(changed bool) {
	if !changed {
		return
	}
	snap := s.tracker.Snapshot()

	if s.indicator != nil {
		if err := s.indicator.Show(snap); err != nil {
			s.log.Warn("station: indicator failed", "err", err)
		}
	}
	if s.writer != nil {
		if err := s.writer.WriteStatus(snap); err != nil {
			s.log.Warn("station: status write failed", "err", err)
		}
	}
}
