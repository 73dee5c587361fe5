package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/pagefinder/api/schemas"
)

func TestFromAutocomplete(t *testing.T) {
	tests := []struct {
		value string
		want  schemas.SemanticType
		ok    bool
	}{
		{"given-name", schemas.FirstName, true},
		{"section-billing FAMILY-NAME", schemas.LastName, true},
		{"shipping street-address", schemas.Address1, true},
		{"address-line1", schemas.Address1, true},
		{"address-line2", schemas.Address2, true},
		{"tel-national", schemas.Phone, true},
		{"address-level2", schemas.City, true},
		{"address-level1", schemas.State, true},
		{"postal-code", schemas.ZipCode, true},
		{"country-name", schemas.Country, true},
		{"off", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := FromAutocomplete(tt.value)
		assert.Equal(t, tt.ok, ok, tt.value)
		assert.Equal(t, tt.want, got, tt.value)
	}
}

func TestFromAttributes(t *testing.T) {
	tests := []struct {
		name  string
		field schemas.Field
		want  schemas.SemanticType
	}{
		{"Label Wins Over Later Pattern", schemas.Field{Label: "First name", Name: "email"}, schemas.FirstName},
		{"Pattern Order Before Attribute Order", schemas.Field{Label: "Email", Name: "lname"}, schemas.LastName},
		{"Address Line One", schemas.Field{Name: "address_line_1"}, schemas.Address1},
		{"Suite", schemas.Field{Placeholder: "Apt or Suite"}, schemas.Address2},
		{"Postcode", schemas.Field{ID: "postcode"}, schemas.ZipCode},
		{"Province", schemas.Field{Label: "Province"}, schemas.State},
		{"Nation", schemas.Field{Name: "nation"}, schemas.Country},
		{"Referral", schemas.Field{Label: "How did you hear about us?"}, schemas.Source},
		{"Source Ignores Placeholder", schemas.Field{Name: "q1", Placeholder: "referral code"}, ""},
		{"Email Input Type", schemas.Field{Name: "q2", InputType: "email"}, schemas.Email},
		{"Nothing", schemas.Field{Name: "q3"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Infer(tt.field))
		})
	}
}

func TestInfer_AutocompletePrecedesAttributes(t *testing.T) {
	f := schemas.Field{Label: "First name", Autocomplete: "family-name"}
	assert.Equal(t, schemas.LastName, Infer(f))
}
