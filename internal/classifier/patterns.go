package classifier

import (
	"regexp"
	"strings"

	"github.com/xkilldash9x/pagefinder/api/schemas"
)

// autocompleteRule maps autocomplete tokens to a semantic type. A rule matches when
// the attribute contains any of its tokens.
type autocompleteRule struct {
	tokens []string
	typ    schemas.SemanticType
}

var autocompleteRules = []autocompleteRule{
	{[]string{"given-name"}, schemas.FirstName},
	{[]string{"family-name"}, schemas.LastName},
	{[]string{"email"}, schemas.Email},
	{[]string{"tel"}, schemas.Phone},
	{[]string{"street-address", "address-line1"}, schemas.Address1},
	{[]string{"address-line2"}, schemas.Address2},
	{[]string{"address-level2"}, schemas.City},
	{[]string{"address-level1"}, schemas.State},
	{[]string{"postal-code"}, schemas.ZipCode},
	{[]string{"country"}, schemas.Country},
}

// FromAutocomplete resolves a type from an autocomplete attribute value.
func FromAutocomplete(autocomplete string) (schemas.SemanticType, bool) {
	ac := strings.ToLower(autocomplete)
	if ac == "" {
		return "", false
	}
	for _, rule := range autocompleteRules {
		for _, tok := range rule.tokens {
			if strings.Contains(ac, tok) {
				return rule.typ, true
			}
		}
	}
	return "", false
}

// Pattern is one entry of the attribute regex table.
type Pattern struct {
	Type schemas.SemanticType
	Re   *regexp.Regexp
	// SkipPlaceholder excludes the placeholder from the tested attributes.
	SkipPlaceholder bool
}

// Patterns is the ordered attribute table. The first type whose expression matches
// any of label, name, id or placeholder wins.
var Patterns = []Pattern{
	{Type: schemas.FirstName, Re: regexp.MustCompile(`(?i)first|given|fname`)},
	{Type: schemas.LastName, Re: regexp.MustCompile(`(?i)last|surname|family|lname`)},
	{Type: schemas.Email, Re: regexp.MustCompile(`(?i)email|e-mail`)},
	{Type: schemas.Phone, Re: regexp.MustCompile(`(?i)phone|mobile|cell|tel`)},
	{Type: schemas.Address1, Re: regexp.MustCompile(`(?i)address.*1|address.*line.*1|street`)},
	{Type: schemas.Address2, Re: regexp.MustCompile(`(?i)address.*2|address.*line.*2|apt|unit|suite`)},
	{Type: schemas.City, Re: regexp.MustCompile(`(?i)city|town|municipality`)},
	{Type: schemas.State, Re: regexp.MustCompile(`(?i)state|province|region`)},
	{Type: schemas.ZipCode, Re: regexp.MustCompile(`(?i)zip|postal.*code|postcode`)},
	{Type: schemas.Country, Re: regexp.MustCompile(`(?i)country|nation`)},
	{Type: schemas.Source, Re: regexp.MustCompile(`(?i)source|referral|referred|how.*did.*you.*hear|how.*did.*you.*find`), SkipPlaceholder: true},
}

// FromAttributes runs the pattern table over the field's descriptive attributes.
// An input of type email is an email field even when no attribute matches.
func FromAttributes(f schemas.Field) (schemas.SemanticType, bool) {
	for _, p := range Patterns {
		attrs := []string{f.Label, f.Name, f.ID}
		if !p.SkipPlaceholder {
			attrs = append(attrs, f.Placeholder)
		}
		for _, a := range attrs {
			if a != "" && p.Re.MatchString(a) {
				return p.Type, true
			}
		}
		if p.Type == schemas.Email && f.InputType == "email" {
			return schemas.Email, true
		}
	}
	return "", false
}

// Infer applies autocomplete first, then the attribute table.
func Infer(f schemas.Field) schemas.SemanticType {
	if t, ok := FromAutocomplete(f.Autocomplete); ok {
		return t
	}
	if t, ok := FromAttributes(f); ok {
		return t
	}
	return ""
}
