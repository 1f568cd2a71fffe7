// internal/station/job.go
package station

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tamzrod/token-programmer/internal/image"
	"github.com/tamzrod/token-programmer/internal/token"
	"github.com/tamzrod/token-programmer/internal/verify"
)

// Phase names a step of a programming job.
type Phase string

const (
	PhaseClassify Phase = "classify"
	PhaseErase    Phase = "erase"
	PhaseProgram  Phase = "program"
	PhaseProtect  Phase = "protect"
	PhaseDone     Phase = "done"
)

// Progress is reported at every phase change and after every chunk.
type Progress struct {
	JobID uuid.UUID
	Phase Phase
	Done  int
	Total int
}

// Result is the outcome of one job.
type Result struct {
	ID      uuid.UUID
	Kind    token.Kind
	Size    uint32
	Image   string // image checksum prefix
	Bytes   int
	Region  token.Region
	Err     error
	Elapsed time.Duration
}

func (r Result) OK() bool { return r.Err == nil }

// Job programs the current image into the inserted token:
// classify, check kind, erase, program with read-back, protect.
type Job struct {
	manager *token.Manager
	images  *image.Store
	harness *verify.Harness

	addr        uint32
	requireKind token.Kind
	eraseFirst  bool
	protect     string
	progress    func(Progress)
	log         *slog.Logger
}

// JobOption configures a Job.
type JobOption func(*Job)

// WithProgress sets a progress callback.
func WithProgress(fn func(Progress)) JobOption {
	return func(j *Job) { j.progress = fn }
}

// WithJobLogger sets the logger.
func WithJobLogger(l *slog.Logger) JobOption {
	return func(j *Job) {
		if l != nil {
			j.log = l
		}
	}
}

// WithProtect applies the named region after a successful program.
func WithProtect(region string) JobOption {
	return func(j *Job) { j.protect = region }
}

// WithRequireKind fails the job on any other token kind.
// KindNone accepts both.
func WithRequireKind(k token.Kind) JobOption {
	return func(j *Job) { j.requireKind = k }
}

// WithAddress sets where the image starts on the token.
func WithAddress(addr uint32) JobOption {
	return func(j *Job) { j.addr = addr }
}

// WithEraseFirst controls erasing the target range before programming.
// Flash programming only clears bits, so disabling it is for EEPROM lines
// or pre-erased stock.
func WithEraseFirst(on bool) JobOption {
	return func(j *Job) { j.eraseFirst = on }
}

// NewJob binds the engine pieces a job needs.
func NewJob(m *token.Manager, images *image.Store, h *verify.Harness, opts ...JobOption) (*Job, error) {
	if m == nil {
		return nil, errors.New("station: manager required")
	}
	if images == nil {
		return nil, errors.New("station: image store required")
	}
	if h == nil {
		h = verify.New()
	}
	j := &Job{
		manager:    m,
		images:     images,
		harness:    h,
		eraseFirst: true,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Run executes one job against the currently inserted token.
func (j *Job) Run(ctx context.Context) Result {
	start := time.Now()
	res := Result{ID: uuid.New()}
	log := j.log.With("job", res.ID.String())

	res.Err = j.run(ctx, &res, log)
	res.Elapsed = time.Since(start)

	if res.Err != nil {
		log.Warn("station: job failed", "kind", res.Kind.String(), "bytes", res.Bytes, "elapsed", res.Elapsed, "err", res.Err)
	} else {
		log.Info("station: job passed", "kind", res.Kind.String(), "bytes", res.Bytes, "elapsed", res.Elapsed, "image", res.Image)
	}
	j.report(res.ID, PhaseDone, res.Bytes, res.Bytes)
	return res
}

func (j *Job) run(ctx context.Context, res *Result, log *slog.Logger) error {
	img, err := j.images.Current()
	if err != nil {
		return err
	}
	res.Image = img.Short()

	// ---- classify ----
	j.report(res.ID, PhaseClassify, 0, len(img.Data))
	dev, err := j.device()
	if err != nil {
		return err
	}
	geo := dev.Geometry()
	res.Kind, res.Size = geo.Kind, geo.MemSize

	if j.requireKind != token.KindNone && geo.Kind != j.requireKind {
		return fmt.Errorf("%w: inserted %s, job requires %s", token.ErrWrongKind, geo.Kind, j.requireKind)
	}
	if uint64(j.addr)+uint64(len(img.Data)) > uint64(geo.MemSize) {
		return &token.RangeError{Addr: j.addr, Len: uint64(len(img.Data)), MemSize: geo.MemSize}
	}

	var region token.Region
	if j.protect != "" {
		if region, err = geo.ParseRegion(j.protect); err != nil {
			return err
		}
	}

	// a protected token refuses the program; clear it first
	if cur, err := dev.ProtectedRegion(); err != nil {
		return err
	} else if cur != token.RegionNone {
		log.Info("station: clearing protection", "region", geo.RegionName(cur))
		if err := dev.ProtectRegion(token.RegionNone); err != nil {
			return err
		}
	}

	// ---- erase ----
	if j.eraseFirst {
		j.report(res.ID, PhaseErase, 0, len(img.Data))
		if err := dev.Erase(j.addr, uint32(len(img.Data))); err != nil {
			return err
		}
	}

	// ---- program + read-back ----
	h := j.harness.With(verify.WithProgressCallback(func(p verify.Progress) {
		j.report(res.ID, PhaseProgram, p.Done, p.Total)
	}))
	st, err := h.Program(ctx, dev, j.addr, img.Data)
	res.Bytes = st.Bytes
	if err != nil {
		return err
	}
	if st.Retries > 0 {
		log.Info("station: program needed retries", "retries", st.Retries)
	}

	// ---- protect ----
	if region != token.RegionNone {
		j.report(res.ID, PhaseProtect, res.Bytes, len(img.Data))
		if err := dev.ProtectRegion(region); err != nil {
			return err
		}
	}
	got, err := dev.ProtectedRegion()
	if err != nil {
		return err
	}
	res.Region = got
	if got != region {
		return fmt.Errorf("%w: protect %s reads back as %s", verify.ErrVerifyMismatch, geo.RegionName(region), geo.RegionName(got))
	}
	return nil
}

// device returns the bound token, classifying it if nothing is bound yet.
func (j *Job) device() (token.Device, error) {
	dev, err := j.manager.Device()
	if errors.Is(err, token.ErrNoToken) {
		return j.manager.Classify()
	}
	return dev, err
}

func (j *Job) report(id uuid.UUID, phase Phase, done, total int) {
	if j.progress != nil {
		j.progress(Progress{JobID: id, Phase: phase, Done: done, Total: total})
	}
}
