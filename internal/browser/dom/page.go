// browser/dom/page.go
package dom

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Evaluator runs a zero-argument function source in the page and returns its JSON result.
type Evaluator interface {
	Evaluate(ctx context.Context, fn string) ([]byte, error)
}

// ScriptPage implements PagePrimitives by evaluating scripts through an Evaluator.
type ScriptPage struct {
	eval   Evaluator
	logger *zap.Logger
}

var _ PagePrimitives = (*ScriptPage)(nil)

// NewScriptPage wraps eval.
func NewScriptPage(eval Evaluator, logger *zap.Logger) *ScriptPage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScriptPage{eval: eval, logger: logger.Named("dom")}
}

// literal renders v as a JavaScript literal.
func literal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// call evaluates fn and decodes its result into res.
func (p *ScriptPage) call(ctx context.Context, fn string, res any) error {
	raw, err := p.eval.Evaluate(ctx, fn)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, res); err != nil {
		return fmt.Errorf("failed to decode script result: %w", err)
	}
	return nil
}

func (p *ScriptPage) GetDOMSnapshot(ctx context.Context) (*html.Node, error) {
	var markup string
	if err := p.call(ctx, snapshotJS, &markup); err != nil {
		return nil, fmt.Errorf("failed to capture DOM snapshot: %w", err)
	}
	return ParseString(markup)
}

func (p *ScriptPage) GetCurrentURL(ctx context.Context) (string, error) {
	var u string
	if err := p.call(ctx, urlJS, &u); err != nil {
		return "", err
	}
	return u, nil
}

func (p *ScriptPage) Measure(ctx context.Context, paths []string) ([]Geometry, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	var out []Geometry
	if err := p.call(ctx, fmt.Sprintf(measureJS, literal(paths)), &out); err != nil {
		return nil, fmt.Errorf("failed to measure elements: %w", err)
	}
	if len(out) != len(paths) {
		return nil, fmt.Errorf("measured %d elements, expected %d", len(out), len(paths))
	}
	return out, nil
}

func (p *ScriptPage) FormAtPoint(ctx context.Context, x, y float64) (string, error) {
	var path string
	if err := p.call(ctx, fmt.Sprintf(formAtPointJS, x, y), &path); err != nil {
		return "", err
	}
	return path, nil
}

func (p *ScriptPage) ScrollTo(ctx context.Context, x, y float64) error {
	var ok bool
	return p.call(ctx, fmt.Sprintf(scrollToJS, x, y), &ok)
}

func (p *ScriptPage) execute(ctx context.Context, kind, script string) (bool, error) {
	var ok bool
	if err := p.call(ctx, script, &ok); err != nil {
		p.logger.Debug("Page command failed.", zap.String("command", kind), zap.Error(err))
		return false, err
	}
	return ok, nil
}

func (p *ScriptPage) ExecuteSelect(ctx context.Context, path, value string) (bool, error) {
	return p.execute(ctx, "select", fmt.Sprintf(selectJS, literal(path), literal(value)))
}

func (p *ScriptPage) ExecuteCheck(ctx context.Context, path string, checked bool) (bool, error) {
	return p.execute(ctx, "check", fmt.Sprintf(checkJS, literal(path), checked))
}

func (p *ScriptPage) ExecuteRadio(ctx context.Context, path, value string) (bool, error) {
	return p.execute(ctx, "radio", fmt.Sprintf(radioJS, literal(path), literal(value)))
}

func (p *ScriptPage) ExecuteFill(ctx context.Context, path, value string) (bool, error) {
	return p.execute(ctx, "fill", fmt.Sprintf(fillJS, literal(path), literal(value)))
}

func (p *ScriptPage) ClickNextOrSubmit(ctx context.Context, scope string) (bool, error) {
	return p.execute(ctx, "click-next", fmt.Sprintf(clickNextJS, literal(scope)))
}
