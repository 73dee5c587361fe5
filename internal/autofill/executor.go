// Package autofill writes profile values into classified fields.
package autofill

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagefinder/api/schemas"
	"github.com/xkilldash9x/pagefinder/internal/browser/dom"
)

// Executor applies a single value to a single live field.
type Executor struct {
	page    dom.PagePrimitives
	timeout time.Duration
	logger  *zap.Logger
}

// NewExecutor creates an Executor. A positive timeout bounds each page round trip.
func NewExecutor(page dom.PagePrimitives, timeout time.Duration, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{page: page, timeout: timeout, logger: logger.Named("executor")}
}

// Fill dispatches on the field's input type. It reports false when the field's
// path no longer resolves or the page call fails; neither is returned as an error.
func (e *Executor) Fill(ctx context.Context, f schemas.Field, value string) bool {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var (
		ok  bool
		err error
	)
	switch f.InputType {
	case "select-one":
		ok, err = e.page.ExecuteSelect(ctx, f.Path, value)
	case "checkbox":
		ok, err = e.page.ExecuteCheck(ctx, f.Path, truthy(value))
	case "radio":
		ok, err = e.page.ExecuteRadio(ctx, f.Path, value)
	default:
		ok, err = e.page.ExecuteFill(ctx, f.Path, value)
	}
	if err != nil {
		e.logger.Debug("Fill failed.", zap.String("path", f.Path), zap.String("type", f.InputType), zap.Error(err))
		return false
	}
	if !ok {
		e.logger.Debug("Field did not resolve.", zap.String("path", f.Path))
	}
	return ok
}

// truthy interprets a profile value as a checkbox state. Recognised boolean
// spellings are honoured; any other non-empty string is true.
func truthy(value string) bool {
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value != ""
}
