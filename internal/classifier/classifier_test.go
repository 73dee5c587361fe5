package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagefinder/api/schemas"
	"github.com/xkilldash9x/pagefinder/internal/browser/dom"
	"github.com/xkilldash9x/pagefinder/internal/browser/dom/domtest"
)

const signupPage = `<html><body>
<form id="signup">
  <label for="fn">First Name</label><input id="fn" name="f1">
  <label>ZIP Code <input name="p" value="90210"></label>
  <label>Surname</label><input name="x1">
  <label>Phone</label><div><input name="x2"></div>
  <input aria-label="Email address" name="x3">
  <input placeholder="Town" name="x4">
  <input name="how_did_you_hear">
  <input autocomplete="family-name" name="first_name">
  <input type="EMAIL" name="contact">
  <input type="hidden" name="csrf">
  <input name="gone" style="display:none">
  <input name="ghost" style="visibility: hidden">
  <input name="attr-hidden" hidden>
  <select name="state" required>
    <option value="">Choose</option>
    <option value="CA" selected>  California </option>
    <option>Texas</option>
  </select>
  <textarea name="notes" aria-required="true">hello</textarea>
  <input type="checkbox" name="terms" value="yes" checked>
  <input type="fancy" name="unknown_type">
</form>
<div class="container" id="side"><input name="city"></div>
<input name="outside">
</body></html>`

func signupRegion(page *domtest.FakePage) schemas.FormRegion {
	return schemas.FormRegion{
		Index: 0, ID: "signup", Kind: schemas.KindTraditional, ElementTag: "form",
		Path: dom.GenerateUniqueXPath(mustFind(page, "//form")),
	}
}

func TestClassify_TraditionalForm(t *testing.T) {
	page := domtest.NewFakePage(signupPage)
	page.Place("//input[@id='fn']", dom.Geometry{X: 10, Y: 20, Width: 200, Height: 30})

	fields, err := New(page, nil).Classify(context.Background(), signupRegion(page))
	require.NoError(t, err)

	byName := map[string]schemas.Field{}
	var names []string
	for _, f := range fields {
		byName[f.Name] = f
		names = append(names, f.Name)
	}

	assert.Equal(t, []string{
		"f1", "p", "x1", "x2", "x3", "x4", "how_did_you_hear", "first_name", "contact",
		"state", "notes", "terms", "unknown_type",
	}, names, "hidden controls and controls outside the form are excluded")

	tests := []struct {
		name     string
		label    string
		semantic schemas.SemanticType
	}{
		{"f1", "First Name", schemas.FirstName},
		{"p", "ZIP Code", schemas.ZipCode},
		{"x1", "Surname", schemas.LastName},
		{"x2", "Phone", schemas.Phone},
		{"x3", "Email address", schemas.Email},
		{"x4", "Town", schemas.City},
		{"how_did_you_hear", "how_did_you_hear", schemas.Source},
		{"first_name", "first_name", schemas.LastName},
		{"contact", "contact", schemas.Email},
		{"state", "state", schemas.State},
		{"notes", "notes", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := byName[tt.name]
			require.True(t, ok)
			assert.Equal(t, tt.label, f.Label)
			assert.Equal(t, tt.semantic, f.SemanticType)
		})
	}

	fn := byName["f1"]
	assert.Equal(t, "input", fn.ElementTag)
	assert.Equal(t, "text", fn.InputType)
	assert.Equal(t, `//*[@id='fn']`, fn.Path)
	assert.Equal(t, schemas.Position{X: 110, Y: 35}, fn.Position)

	state := byName["state"]
	assert.Equal(t, "select-one", state.InputType)
	assert.True(t, state.Required)
	assert.Equal(t, "CA", state.CurrentValue)
	assert.Equal(t, []schemas.SelectOption{
		{Value: "", Text: "Choose"},
		{Value: "CA", Text: "California", Selected: true},
		{Value: "Texas", Text: "Texas"},
	}, state.Options)

	notes := byName["notes"]
	assert.Equal(t, "textarea", notes.InputType)
	assert.True(t, notes.Required)
	assert.Equal(t, "hello", notes.CurrentValue)

	assert.Equal(t, "email", byName["contact"].InputType)
	assert.Equal(t, "checkbox", byName["terms"].InputType)
	assert.Equal(t, "text", byName["unknown_type"].InputType)
	assert.Equal(t, "90210", byName["p"].CurrentValue)
}

func TestClassify_RegionResolution(t *testing.T) {
	ctx := context.Background()

	t.Run("Hit Test", func(t *testing.T) {
		page := domtest.NewFakePage(signupPage)
		page.HitPath = `//*[@id='side']`
		region := schemas.FormRegion{Kind: schemas.KindContainer, ID: "signup", Box: schemas.BoundingBox{Width: 100, Height: 100}}

		fields, err := New(page, nil).Classify(ctx, region)
		require.NoError(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, "city", fields[0].Name)
	})

	t.Run("ID Fallback", func(t *testing.T) {
		page := domtest.NewFakePage(signupPage)
		region := schemas.FormRegion{Kind: schemas.KindContainer, ID: "side"}

		fields, err := New(page, nil).Classify(ctx, region)
		require.NoError(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, schemas.City, fields[0].SemanticType)
	})

	t.Run("Captured Path", func(t *testing.T) {
		page := domtest.NewFakePage(signupPage)
		region := schemas.FormRegion{
			Kind: schemas.KindContainer, ID: "form-7",
			Path: dom.GenerateUniqueXPath(mustFind(page, "//div[@id='side']")),
		}

		fields, err := New(page, nil).Classify(ctx, region)
		require.NoError(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, "city", fields[0].Name)
	})

	t.Run("Body Fallback", func(t *testing.T) {
		page := domtest.NewFakePage(signupPage)
		region := schemas.FormRegion{Kind: schemas.KindFieldset, ID: "form-3"}

		fields, err := New(page, nil).Classify(ctx, region)
		require.NoError(t, err)
		assert.Len(t, fields, 15)
		assert.Equal(t, "outside", fields[len(fields)-1].Name)
	})

	t.Run("Stale Traditional Path Falls Back To Body", func(t *testing.T) {
		page := domtest.NewFakePage(`<html><body><input name="only"></body></html>`)
		region := schemas.FormRegion{Kind: schemas.KindTraditional, Path: `//*[@id='vanished']`}

		fields, err := New(page, nil).Classify(ctx, region)
		require.NoError(t, err)
		require.Len(t, fields, 1)
	})

	t.Run("Probe Failure", func(t *testing.T) {
		page := domtest.NewFakePage(signupPage)
		page.SnapErr = errors.New("target closed")

		fields, err := New(page, nil).Classify(ctx, signupRegion(page))
		require.NoError(t, err)
		assert.Empty(t, fields)
	})
}

func TestLabelChain(t *testing.T) {
	doc, err := dom.ParseString(`<html><body>
		<label for="a"></label><label>Wrapped <input id="a" value="Wrapped"></label>
		<label>Before</label><input id="b">
		<label>Parent Prev</label><span><input id="c"></span>
		<span></span><label></label><input id="d" placeholder="ph" aria-label="aria">
		<input id="e" name="just_name">
		<input id="f">
	</body></html>`)
	require.NoError(t, err)

	tests := map[string]string{
		"a": "",
		"b": "Before",
		"c": "Parent Prev",
		"d": "aria",
		"e": "just_name",
		"f": "",
	}
	for id, expected := range tests {
		n := mustQuery(t, doc, "//*[@id='"+id+"']")
		assert.Equal(t, expected, label(doc, n, dom.Attr(n, "value")), id)
	}
}

func mustFind(page *domtest.FakePage, xpath string) *html.Node {
	n := htmlquery.FindOne(page.Doc(), xpath)
	if n == nil {
		panic("missing " + xpath)
	}
	return n
}

func mustQuery(t *testing.T, doc *html.Node, xpath string) *html.Node {
	t.Helper()
	n := query(doc, xpath)
	require.NotNil(t, n, xpath)
	return n
}
