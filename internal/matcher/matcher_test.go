package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagefinder/api/schemas"
)

func profileWith(info map[schemas.SemanticType]string) schemas.UserProfile {
	p := schemas.DefaultUserProfile()
	for k, v := range info {
		p.PersonalInfo[k] = v
	}
	return p
}

func selectField(t schemas.SemanticType, opts ...schemas.SelectOption) schemas.Field {
	return schemas.Field{ElementTag: "select", InputType: "select-one", SemanticType: t, Options: opts}
}

func opt(value, text string) schemas.SelectOption {
	return schemas.SelectOption{Value: value, Text: text}
}

func TestResolveValue_PlainFields(t *testing.T) {
	p := profileWith(map[schemas.SemanticType]string{
		schemas.FirstName: "Ada",
		schemas.ZipCode:   "94107",
		schemas.City:      "",
	})

	v, ok := ResolveValue(schemas.Field{InputType: "text", SemanticType: schemas.FirstName}, p)
	require.True(t, ok)
	assert.Equal(t, "Ada", v)

	_, ok = ResolveValue(schemas.Field{InputType: "text", SemanticType: schemas.City}, p)
	assert.False(t, ok, "empty profile values are skipped")

	_, ok = ResolveValue(schemas.Field{InputType: "text"}, p)
	assert.False(t, ok)
}

func TestResolveValue_Country(t *testing.T) {
	tests := []struct {
		name    string
		country string
		opts    []schemas.SelectOption
		want    string
		ok      bool
	}{
		{"Exact Text", "Canada", []schemas.SelectOption{opt("", "Choose"), opt("CA", " canada ")}, "CA", true},
		{"Exact Value", "de", []schemas.SelectOption{opt("DE", "Germany")}, "DE", true},
		{"Partial", "United States", []schemas.SelectOption{opt("US", "United States of America")}, "US", true},
		{"Partial Skips Empty Placeholder", "United States", []schemas.SelectOption{opt("", ""), opt("US", "United States of America")}, "US", true},
		{"US Spelling", "USA", []schemas.SelectOption{opt("", "Select"), opt("840", "America (the)")}, "840", true},
		{"No Option Falls Back To Profile Value", "France", []schemas.SelectOption{opt("DE", "Germany")}, "France", true},
		{"Empty Profile", "", []schemas.SelectOption{opt("DE", "Germany")}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := profileWith(map[schemas.SemanticType]string{schemas.Country: tt.country})
			v, ok := ResolveValue(selectField(schemas.Country, tt.opts...), p)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestResolveValue_State(t *testing.T) {
	tests := []struct {
		name  string
		state string
		opts  []schemas.SelectOption
		want  string
	}{
		{"Abbreviation To Name", "CA", []schemas.SelectOption{opt("", "Select"), opt("California", "California")}, "California"},
		{"Lowercase Abbreviation", "tx", []schemas.SelectOption{opt("48", "Texas")}, "48"},
		{"Name To Abbreviation", "New York", []schemas.SelectOption{opt("NY", "NY")}, "NY"},
		{"District", "DC", []schemas.SelectOption{opt("dc", "District of Columbia")}, "dc"},
		{"Exact", "Ohio", []schemas.SelectOption{opt("OH", "Ohio")}, "OH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := profileWith(map[schemas.SemanticType]string{schemas.State: tt.state})
			v, ok := ResolveValue(selectField(schemas.State, tt.opts...), p)
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}

	t.Run("Unknown Falls Back To Profile Value", func(t *testing.T) {
		p := profileWith(map[schemas.SemanticType]string{schemas.State: "Bavaria"})
		v, ok := ResolveValue(selectField(schemas.State, opt("CA", "California")), p)
		require.True(t, ok)
		assert.Equal(t, "Bavaria", v)
	})
}

func TestResolveValue_Source(t *testing.T) {
	p := schemas.DefaultUserProfile()

	v, ok := ResolveValue(selectField(schemas.Source,
		opt("", "Select one"), opt("fr", "A friend told me"), opt("li", "LinkedIn post")), p)
	require.True(t, ok)
	assert.Equal(t, "li", v, "LinkedIn precedes Friend in priority")

	v, ok = ResolveValue(selectField(schemas.Source, opt("", "Select one"), opt("tv", "Television")), p)
	require.True(t, ok)
	assert.Equal(t, "tv", v)

	_, ok = ResolveValue(schemas.Field{InputType: "text", SemanticType: schemas.Source}, p)
	assert.False(t, ok)
}

func TestMatch_RecoversUntypedFields(t *testing.T) {
	p := profileWith(map[schemas.SemanticType]string{
		schemas.MiddleName:     "B",
		schemas.PhoneExtension: "42",
		schemas.Email:          "ada@example.com",
	})

	f, ok := Match(schemas.Field{Name: "MI"}, p)
	require.True(t, ok)
	assert.Equal(t, schemas.MiddleName, f.SemanticType)

	f, ok = Match(schemas.Field{Label: "Ext."}, p)
	require.True(t, ok)
	assert.Equal(t, schemas.PhoneExtension, f.SemanticType)

	_, ok = Match(schemas.Field{Name: "city"}, p)
	assert.False(t, ok, "types without a profile value are not considered")

	_, ok = Match(schemas.Field{}, p)
	assert.False(t, ok)

	typed := schemas.Field{SemanticType: schemas.City}
	f, ok = Match(typed, p)
	require.True(t, ok)
	assert.Equal(t, typed, f)
}

func TestStateTable(t *testing.T) {
	assert.Len(t, stateNames, 51)
	assert.Len(t, stateAbbreviations, 51)
	assert.Equal(t, "DC", stateAbbreviations["district of columbia"])
	for _, typ := range schemas.AllSemanticTypes {
		assert.NotEmpty(t, fieldMappings[typ], typ)
	}
}
