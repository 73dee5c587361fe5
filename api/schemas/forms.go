package schemas

import "strings"

// -- Form Region Schemas --

// RegionKind classifies how a form region was recognised.
type RegionKind string

const (
	KindTraditional RegionKind = "traditional"
	KindReactSchema RegionKind = "react-schema"
	KindFieldset    RegionKind = "fieldset"
	KindContainer   RegionKind = "container"
)

// BoundingBox is a region's rectangle in document coordinates (viewport rect plus scroll offset).
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// FormRegion is a detected container of related input elements. Index is only stable
// within a single scan pass; identity across passes is positional.
type FormRegion struct {
	Index             int         `json:"index"`
	ID                string      `json:"id"`
	Kind              RegionKind  `json:"type"`
	ElementTag        string      `json:"element"`
	ClassNames        string      `json:"classes"`
	VisibleInputCount int         `json:"inputCount"`
	Box               BoundingBox `json:"box"`
	ManuallySelected  bool        `json:"isManuallySelected"`
	// Path is the unique XPath of the region element at discovery time.
	Path string `json:"path,omitempty"`
}

// -- Field Schemas --

// SelectOption is one <option> of a select field.
type SelectOption struct {
	Value    string `json:"value"`
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
}

// Position is the center point of a field in document coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Field is one interactive element inside a form region.
type Field struct {
	ElementTag   string         `json:"element"`
	InputType    string         `json:"type"`
	Name         string         `json:"name"`
	ID           string         `json:"id"`
	Label        string         `json:"label"`
	Placeholder  string         `json:"placeholder"`
	Required     bool           `json:"required"`
	Autocomplete string         `json:"autocomplete"`
	ClassName    string         `json:"className"`
	CurrentValue string         `json:"value"`
	SemanticType SemanticType   `json:"semanticType,omitempty"`
	Options      []SelectOption `json:"options"`
	Position     Position       `json:"position"`
	// Path must resolve to exactly one live element at fill time.
	Path string `json:"path"`
}

// HasSemanticType reports whether the classifier (or matcher) resolved a type.
func (f Field) HasSemanticType() bool {
	return f.SemanticType != ""
}

// Attributes returns the non-empty descriptive strings of the field, lowercased,
// in label, name, id, placeholder order.
func (f Field) Attributes() []string {
	attrs := make([]string, 0, 4)
	for _, s := range []string{f.Label, f.Name, f.ID, f.Placeholder} {
		if s != "" {
			attrs = append(attrs, strings.ToLower(s))
		}
	}
	return attrs
}

// -- Semantic Types --

// SemanticType is the inferred real world meaning of a field.
type SemanticType string

const (
	FirstName        SemanticType = "firstName"
	MiddleName       SemanticType = "middleName"
	LastName         SemanticType = "lastName"
	Email            SemanticType = "email"
	Phone            SemanticType = "phone"
	PhoneCountryCode SemanticType = "phoneCountryCode"
	PhoneExtension   SemanticType = "phoneExtension"
	Address1         SemanticType = "address1"
	Address2         SemanticType = "address2"
	City             SemanticType = "city"
	State            SemanticType = "state"
	ZipCode          SemanticType = "zipCode"
	Country          SemanticType = "country"
	Source           SemanticType = "source"
)

// AllSemanticTypes lists the closed enumeration in declaration order.
var AllSemanticTypes = []SemanticType{
	FirstName, MiddleName, LastName, Email, Phone, PhoneCountryCode, PhoneExtension,
	Address1, Address2, City, State, ZipCode, Country, Source,
}

// IsValid reports whether s is a member of the enumeration.
func (s SemanticType) IsValid() bool {
	for _, t := range AllSemanticTypes {
		if t == s {
			return true
		}
	}
	return false
}
