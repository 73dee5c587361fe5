// Package matcher maps user profile data onto classified fields.
package matcher

import (
	"strings"

	"github.com/xkilldash9x/pagefinder/api/schemas"
)

// Recover assigns a type to a field the classifier left untyped by testing the
// field's attributes against every type that has a profile value. Types are
// tried in enumeration order and the first match wins.
func Recover(f schemas.Field, profile schemas.UserProfile) (schemas.SemanticType, bool) {
	attrs := f.Attributes()
	if len(attrs) == 0 {
		return "", false
	}
	for _, t := range schemas.AllSemanticTypes {
		if _, ok := profile.Value(t); !ok {
			continue
		}
		for _, re := range fieldMappings[t] {
			for _, a := range attrs {
				if re.MatchString(a) {
					return t, true
				}
			}
		}
	}
	return "", false
}

// Match returns f with its semantic type resolved, recovering one when missing.
// ok is false when the field should be skipped.
func Match(f schemas.Field, profile schemas.UserProfile) (schemas.Field, bool) {
	if f.HasSemanticType() {
		return f, true
	}
	t, ok := Recover(f, profile)
	if !ok {
		return f, false
	}
	f.SemanticType = t
	return f, true
}

// ResolveValue returns the value to write into f. Single-choice selects with a
// country, state or source type are resolved against their option list; all other
// fields take the profile value for their type.
func ResolveValue(f schemas.Field, profile schemas.UserProfile) (string, bool) {
	if f.InputType == "select-one" && len(f.Options) > 0 {
		var (
			v  string
			ok bool
		)
		switch f.SemanticType {
		case schemas.Country:
			v, ok = matchCountry(f.Options, profile.PersonalInfo[schemas.Country])
		case schemas.State:
			v, ok = matchState(f.Options, profile.PersonalInfo[schemas.State])
		case schemas.Source:
			v, ok = matchSource(f.Options)
		}
		if ok {
			return v, true
		}
	}
	if !f.HasSemanticType() {
		return "", false
	}
	return profile.Value(f.SemanticType)
}

func exact(opts []schemas.SelectOption, want string) (string, bool) {
	want = strings.ToLower(want)
	for _, o := range opts {
		if strings.ToLower(strings.TrimSpace(o.Text)) == want || strings.ToLower(strings.TrimSpace(o.Value)) == want {
			return o.Value, true
		}
	}
	return "", false
}

// contains reports a substring relation in either direction. Empty strings never match.
func contains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func matchCountry(opts []schemas.SelectOption, country string) (string, bool) {
	if country == "" {
		return "", false
	}
	if v, ok := exact(opts, country); ok {
		return v, true
	}
	c := strings.ToLower(country)
	for _, o := range opts {
		if contains(strings.ToLower(o.Text), c) || contains(strings.ToLower(o.Value), c) {
			return o.Value, true
		}
	}
	if usSpellings[c] {
		for _, o := range opts {
			if unitedStates.MatchString(o.Text) || unitedStates.MatchString(o.Value) {
				return o.Value, true
			}
		}
	}
	return "", false
}

func matchState(opts []schemas.SelectOption, state string) (string, bool) {
	if state == "" {
		return "", false
	}
	if v, ok := exact(opts, state); ok {
		return v, true
	}
	if len(state) == 2 {
		if name, ok := stateNames[strings.ToUpper(state)]; ok {
			if v, ok := exact(opts, name); ok {
				return v, true
			}
		}
	}
	if abbr, ok := stateAbbreviations[strings.ToLower(state)]; ok {
		if v, ok := exact(opts, abbr); ok {
			return v, true
		}
	}
	return "", false
}

func matchSource(opts []schemas.SelectOption) (string, bool) {
	for _, src := range commonSources {
		s := strings.ToLower(src)
		for _, o := range opts {
			if strings.Contains(strings.ToLower(o.Text), s) {
				return o.Value, true
			}
		}
	}
	for _, o := range opts {
		if o.Value != "" {
			return o.Value, true
		}
	}
	return "", false
}
