package autofill

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagefinder/api/schemas"
	"github.com/xkilldash9x/pagefinder/internal/browser/dom"
	"github.com/xkilldash9x/pagefinder/internal/config"
	"github.com/xkilldash9x/pagefinder/internal/matcher"
)

// Status messages recorded in AutofillStatus.Error.
const (
	MsgNoFields  = "no form fields detected"
	MsgDisabled  = "autofill disabled"
	MsgCancelled = "autofill cancelled"
)

// FieldSource expands a region into fields. The classifier satisfies it.
type FieldSource interface {
	Classify(ctx context.Context, region schemas.FormRegion) ([]schemas.Field, error)
}

// UpdateFunc observes every status change of a run.
type UpdateFunc func(schemas.AutofillStatus)

// Runner executes fill passes over a region, one field at a time.
type Runner struct {
	page     dom.PagePrimitives
	fields   FieldSource
	executor *Executor
	cfg      config.AutofillConfig
	logger   *zap.Logger

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	status schemas.AutofillStatus
	// current is the RunID of the latest run. Updates from older runs are dropped.
	current string
}

// NewRunner wires a runner over page.
func NewRunner(page dom.PagePrimitives, fields FieldSource, cfg config.AutofillConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		page:     page,
		fields:   fields,
		executor: NewExecutor(page, cfg.FieldTimeout, logger),
		cfg:      cfg,
		logger:   logger.Named("autofill"),
		sleep:    sleepContext,
	}
}

// Status returns the latest status.
func (r *Runner) Status() schemas.AutofillStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// AutofillForm classifies region and fills every field that resolves to a profile
// value, pausing after each attempt. The final status is returned and also
// delivered through onUpdate, which receives every intermediate state until a
// newer run starts.
func (r *Runner) AutofillForm(ctx context.Context, region schemas.FormRegion, profile schemas.UserProfile, onUpdate UpdateFunc) (status schemas.AutofillStatus) {
	logger := r.logger.With(zap.Int("region", region.Index))
	publish := func() {
		r.mu.Lock()
		superseded := r.current != status.RunID
		if !superseded {
			r.status = status
		}
		r.mu.Unlock()
		if superseded {
			logger.Debug("Dropped update from superseded run.")
			return
		}
		if onUpdate != nil {
			onUpdate(status)
		}
	}

	status = schemas.AutofillStatus{
		RunID:             uuid.NewString(),
		Active:            true,
		TargetRegionIndex: region.Index,
	}
	logger = logger.With(zap.String("run_id", status.RunID))
	r.mu.Lock()
	r.current = status.RunID
	r.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			logger.Error("Panic during autofill.", zap.Any("panic_value", p))
			status.Fail(fmt.Sprintf("%v", p))
			publish()
		}
	}()

	if !profile.Preferences.AutofillEnabled {
		status.Fail(MsgDisabled)
		publish()
		return status
	}
	publish()

	fields, err := r.fields.Classify(ctx, region)
	if err != nil {
		status.Fail(err.Error())
		publish()
		return status
	}
	if len(fields) == 0 {
		status.Fail(MsgNoFields)
		publish()
		return status
	}
	status.FieldsFound = len(fields)
	publish()

	delay := r.delay(profile)
	for _, f := range fields {
		if ctx.Err() != nil {
			logger.Info("Autofill cancelled.", zap.Int("filled", status.FieldsFilled))
			status.Fail(MsgCancelled)
			publish()
			return status
		}

		field, ok := matcher.Match(f, profile)
		if !ok {
			continue
		}
		value, ok := matcher.ResolveValue(field, profile)
		if !ok {
			continue
		}

		if r.executor.Fill(ctx, field, value) {
			status.FieldsFilled++
			publish()
		}
		if delay > 0 {
			if err := r.sleep(ctx, delay); err != nil {
				status.Fail(MsgCancelled)
				publish()
				return status
			}
		}
	}

	status.Active = false
	status.Completed = true
	publish()
	logger.Info("Autofill completed.", zap.Int("found", status.FieldsFound), zap.Int("filled", status.FieldsFilled))

	if profile.Preferences.AutomaticSubmit && status.FieldsFilled > 0 {
		clicked, err := r.page.ClickNextOrSubmit(ctx, region.Path)
		if err != nil {
			logger.Warn("Could not advance form.", zap.Error(err))
		} else if !clicked {
			logger.Debug("No next or submit control found.")
		}
	}
	return status
}

// delay is the profile pacing clamped to the configured ceiling. A profile
// without a timeout uses the configured default.
func (r *Runner) delay(profile schemas.UserProfile) time.Duration {
	ms := profile.FillDelayMs()
	if profile.Preferences.FillTimeout == 0 && r.cfg.DefaultFillTimeoutMs > 0 {
		ms = r.cfg.DefaultFillTimeoutMs
	}
	if r.cfg.MaxFillTimeoutMs > 0 && ms > r.cfg.MaxFillTimeoutMs {
		ms = r.cfg.MaxFillTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
