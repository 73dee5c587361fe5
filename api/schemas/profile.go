package schemas

// DefaultFillTimeoutMs is the pacing delay used when no profile exists.
const DefaultFillTimeoutMs = 500

// MaxFillTimeoutMs caps the per-field pacing delay.
const MaxFillTimeoutMs = 2000

// Preferences controls how the autofill runner behaves.
type Preferences struct {
	AutofillEnabled bool `json:"autofillEnabled"`
	AutomaticSubmit bool `json:"automaticSubmit"`
	// FillTimeout is the delay in milliseconds after every attempted fill.
	FillTimeout int `json:"fillTimeout"`
}

// UserProfile is owned by the host application. The engine reads it and never mutates it.
type UserProfile struct {
	PersonalInfo map[SemanticType]string `json:"personalInfo"`
	Preferences  Preferences             `json:"preferences"`
}

// DefaultUserProfile returns the profile used when the store holds none.
func DefaultUserProfile() UserProfile {
	return UserProfile{
		PersonalInfo: map[SemanticType]string{},
		Preferences: Preferences{
			AutofillEnabled: true,
			AutomaticSubmit: false,
			FillTimeout:     DefaultFillTimeoutMs,
		},
	}
}

// Value returns the non-empty personal info value for t.
func (p UserProfile) Value(t SemanticType) (string, bool) {
	v, ok := p.PersonalInfo[t]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// FillDelayMs returns the pacing delay clamped to [0, MaxFillTimeoutMs]. An
// unset timeout of 0 falls back to DefaultFillTimeoutMs.
func (p UserProfile) FillDelayMs() int {
	d := p.Preferences.FillTimeout
	if d == 0 {
		return DefaultFillTimeoutMs
	}
	if d < 0 {
		return 0
	}
	if d > MaxFillTimeoutMs {
		return MaxFillTimeoutMs
	}
	return d
}
