package matcher

import (
	"regexp"
	"strings"

	"github.com/xkilldash9x/pagefinder/api/schemas"
)

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile("(?i)" + e)
	}
	return out
}

// fieldMappings drives the recovery pass for fields the classifier left untyped.
// It is broader than the classifier table and covers every semantic type.
var fieldMappings = map[schemas.SemanticType][]*regexp.Regexp{
	schemas.FirstName:        patterns(`first.*name`, `given.*name`, `^name$`, `^fname$`, `^first$`),
	schemas.MiddleName:       patterns(`middle.*name`, `^mname$`, `^middle$`, `^mi$`),
	schemas.LastName:         patterns(`last.*name`, `surname`, `family.*name`, `^lname$`, `^last$`),
	schemas.Email:            patterns(`email`, `e-mail`, `^mail$`),
	schemas.Phone:            patterns(`phone`, `telephone`, `mobile`, `cell`),
	schemas.PhoneCountryCode: patterns(`country.*code`, `phone.*country`, `country.*phone`),
	schemas.PhoneExtension:   patterns(`ext`, `extension`),
	schemas.Address1:         patterns(`address.*1`, `address.*line.*1`, `street.*address`, `^address$`, `^addr$`, `^street$`),
	schemas.Address2:         patterns(`address.*2`, `address.*line.*2`, `apt`, `apartment`, `unit`, `suite`),
	schemas.City:             patterns(`city`, `town`, `municipality`),
	schemas.State:            patterns(`state`, `province`, `region`),
	schemas.ZipCode:          patterns(`zip`, `postal.*code`, `postcode`),
	schemas.Country:          patterns(`country`, `nation`),
	schemas.Source:           patterns(`source`, `referral`, `referred`, `how.*did.*you.*hear`, `how.*did.*you.*find`),
}

// stateNames maps USPS abbreviations to full names for the 50 states and DC.
var stateNames = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho",
	"IL": "Illinois", "IN": "Indiana", "IA": "Iowa", "KS": "Kansas",
	"KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi",
	"MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma",
	"OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah",
	"VT": "Vermont", "VA": "Virginia", "WA": "Washington", "WV": "West Virginia",
	"WI": "Wisconsin", "WY": "Wyoming", "DC": "District of Columbia",
}

var stateAbbreviations = func() map[string]string {
	out := make(map[string]string, len(stateNames))
	for abbr, name := range stateNames {
		out[strings.ToLower(name)] = abbr
	}
	return out
}()

// commonSources is tried in order against "how did you hear about us" options.
var commonSources = []string{
	"Internet", "Social Media", "Website", "Job Board", "LinkedIn", "Indeed",
	"Referral", "Friend", "Recruiter", "Career Fair", "Other",
}

var unitedStates = regexp.MustCompile(`(?i)united states|america|usa|us`)

var usSpellings = map[string]bool{
	"usa": true, "us": true, "united states": true, "united states of america": true,
}
