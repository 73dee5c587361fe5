// internal/discovery/locator_test.go
package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagefinder/api/schemas"
	"github.com/xkilldash9x/pagefinder/internal/browser/dom"
	"github.com/xkilldash9x/pagefinder/internal/browser/dom/domtest"
	"github.com/xkilldash9x/pagefinder/internal/config"
)

const applicationPage = `<html><body>
<form id="login"><input name="user"><input name="pass" type="password"></form>
<div class="card rjsf" data-form-id="schema"><input name="a"></div>
<div id="wrap"><fieldset id="addr"><legend>Address</legend><input name="street"></fieldset></div>
<div class="group"><input name="x"><input name="y"><select name="z"></select></div>
<div class="empty"><input type="hidden" name="token"><input type="hidden" name="t2"><input type="hidden" name="t3"></div>
</body></html>`

var defaultDiscovery = config.DiscoveryConfig{MinWidth: 50, MinHeight: 50}

func TestLocate_UnionFilterAndKinds(t *testing.T) {
	page := domtest.NewFakePage(applicationPage)
	page.Place("//form", dom.Geometry{X: 0, Y: 10, Width: 400, Height: 200, VisibleInputs: 2})
	page.Place("//div[contains(@class,'rjsf')]", dom.Geometry{X: 0, Y: 220, Width: 400, Height: 100, VisibleInputs: 1})
	page.Place("//div[@id='wrap']", dom.Geometry{Width: 40, Height: 40, VisibleInputs: 1})
	page.Place("//fieldset", dom.Geometry{X: 5, Y: 330, Width: 390, Height: 120, VisibleInputs: 1})
	groupPath := dom.GenerateUniqueXPath(htmlquery.FindOne(page.Doc(), "//div[@class='group']"))
	page.Geometry[groupPath] = dom.Geometry{Found: true, Width: 400, Height: 90, Display: "block", Visibility: "visible", Opacity: 0, VisibleInputs: 3}

	regions, err := NewLocator(page, defaultDiscovery, nil).Locate(context.Background())
	require.NoError(t, err)

	want := []schemas.FormRegion{
		{Index: 0, ID: "login", Kind: schemas.KindTraditional, ElementTag: "form", VisibleInputCount: 2,
			Box: schemas.BoundingBox{X: 0, Y: 10, Width: 400, Height: 200}, Path: `//*[@id='login']`},
		{Index: 1, ID: "schema", Kind: schemas.KindReactSchema, ElementTag: "div", ClassNames: "card rjsf", VisibleInputCount: 1,
			Box: schemas.BoundingBox{X: 0, Y: 220, Width: 400, Height: 100}, Path: "/html[1]/body[1]/div[1]"},
		{Index: 2, ID: "addr", Kind: schemas.KindFieldset, ElementTag: "fieldset", VisibleInputCount: 1,
			Box: schemas.BoundingBox{X: 5, Y: 330, Width: 390, Height: 120}, Path: `//*[@id='addr']`},
	}
	if diff := cmp.Diff(want, regions); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}

	for _, r := range regions {
		assert.GreaterOrEqual(t, r.VisibleInputCount, 1)
		assert.GreaterOrEqual(t, r.Box.Width, 50.0)
		assert.GreaterOrEqual(t, r.Box.Height, 50.0)
	}
}

func TestLocate_FallbackIDUsesFilteredIndex(t *testing.T) {
	page := domtest.NewFakePage(`<html><body>
		<form class="first"><input></form>
		<form class="second"><input></form>
	</body></html>`)
	page.Place("//form[@class='second']", dom.Geometry{Width: 100, Height: 100, VisibleInputs: 1})

	regions, err := NewLocator(page, defaultDiscovery, nil).Locate(context.Background())
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, 0, regions[0].Index)
	assert.Equal(t, "form-0", regions[0].ID)
}

func TestLocate_ZeroVisibleInputsDiscarded(t *testing.T) {
	page := domtest.NewFakePage(`<html><body><form id="f"><input type="hidden"></form></body></html>`)
	page.Place("//form", dom.Geometry{Width: 300, Height: 300, VisibleInputs: 0})

	regions, err := NewLocator(page, defaultDiscovery, nil).Locate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestLocate_FailingStrategiesContributeNothing(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	page := domtest.NewFakePage(applicationPage)
	page.Place("//form", dom.Geometry{Width: 300, Height: 300, VisibleInputs: 2})

	panicky := FuncStrategy{Label: "panicky", Fn: func(*html.Node) ([]*html.Node, error) { panic("bad heuristic") }}
	broken := XPathStrategy{Label: "broken", Expr: "//["}
	failing := FuncStrategy{Label: "failing", Fn: func(*html.Node) ([]*html.Node, error) { return nil, errors.New("nope") }}

	l := NewLocator(page, defaultDiscovery, zap.New(core),
		WithStrategies(panicky, broken, failing, XPathStrategy{Label: StrategyTraditionalForm, Expr: "//form"}))
	regions, err := l.Locate(context.Background())
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, "login", regions[0].ID)

	assert.Equal(t, 1, logs.FilterMessage("Form strategy panicked.").Len())
	assert.Equal(t, 2, logs.FilterMessage("Form strategy failed.").Len())
}

func TestLocate_ProbeFailureIsEmpty(t *testing.T) {
	page := domtest.NewFakePage(applicationPage)
	page.SnapErr = errors.New("navigation interrupted")

	regions, err := NewLocator(page, defaultDiscovery, nil).Locate(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, regions)
	assert.Empty(t, regions)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewLocator(page, defaultDiscovery, nil).Locate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultStrategies(t *testing.T) {
	doc, err := dom.ParseString(`<html><body>
		<div id="a"><fieldset id="fs"><legend>L</legend></fieldset></div>
		<fieldset id="nolegend"></fieldset>
		<fieldset><legend>No id</legend></fieldset>
		<div id="wd-cntryFields-1"></div>
		<div class="form-group field-object"></div>
		<div class="form-group"></div>
		<div id="addr"><div id="inner"><input autocomplete="address-line1"></div></div>
		<div id="three"><input><input type="HIDDEN"><select></select><textarea></textarea></div>
		<div class="notrjsf"></div><section class="x rjsf"></section>
	</body></html>`)
	require.NoError(t, err)

	ids := func(nodes []*html.Node) []string {
		var out []string
		for _, n := range nodes {
			v := dom.Attr(n, "id")
			if v == "" {
				v = dom.Tag(n) + "." + dom.Attr(n, "class")
			}
			out = append(out, v)
		}
		return out
	}

	expected := map[string][]string{
		StrategyTraditionalForm: nil,
		StrategySchemaForm:      {"section.x rjsf"},
		StrategyFieldset:        {"a", "fs"},
		StrategyInputGroup:      {"three"},
		StrategyPlatformPattern: {"wd-cntryFields-1", "div.form-group field-object"},
		StrategyAddressPattern:  {"addr", "inner"},
	}

	strategies := DefaultStrategies()
	require.Len(t, strategies, 6)
	for _, s := range strategies {
		t.Run(s.Name(), func(t *testing.T) {
			nodes, err := s.Find(doc)
			require.NoError(t, err)
			assert.Equal(t, expected[s.Name()], ids(nodes))
		})
	}
}

func TestKindOf(t *testing.T) {
	doc, err := dom.ParseString(`<html><body>
		<form class="rjsf" id="f"></form><fieldset class="rjsf" id="fr"></fieldset>
		<fieldset id="fs"></fieldset><div id="d"></div></body></html>`)
	require.NoError(t, err)

	tests := map[string]schemas.RegionKind{
		"f":  schemas.KindTraditional,
		"fr": schemas.KindReactSchema,
		"fs": schemas.KindFieldset,
		"d":  schemas.KindContainer,
	}
	for id, kind := range tests {
		n := htmlquery.FindOne(doc, "//*[@id='"+id+"']")
		assert.Equal(t, kind, KindOf(n), id)
	}
}
