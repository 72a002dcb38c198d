package sources

import (
	"regexp"
	"strings"
)

// stateSlugs maps two-letter state abbreviations to the hyphenated slugs the
// directory uses in listing URLs.
var stateSlugs = map[string]string{
	"AL": "alabama", "AK": "alaska", "AZ": "arizona", "AR": "arkansas", "CA": "california",
	"CO": "colorado", "CT": "connecticut", "DE": "delaware", "FL": "florida", "GA": "georgia",
	"HI": "hawaii", "ID": "idaho", "IL": "illinois", "IN": "indiana", "IA": "iowa",
	"KS": "kansas", "KY": "kentucky", "LA": "louisiana", "ME": "maine", "MD": "maryland",
	"MA": "massachusetts", "MI": "michigan", "MN": "minnesota", "MS": "mississippi", "MO": "missouri",
	"MT": "montana", "NE": "nebraska", "NV": "nevada", "NH": "new-hampshire", "NJ": "new-jersey",
	"NM": "new-mexico", "NY": "new-york", "NC": "north-carolina", "ND": "north-dakota", "OH": "ohio",
	"OK": "oklahoma", "OR": "oregon", "PA": "pennsylvania", "RI": "rhode-island", "SC": "south-carolina",
	"SD": "south-dakota", "TN": "tennessee", "TX": "texas", "UT": "utah", "VT": "vermont",
	"VA": "virginia", "WA": "washington", "WV": "west-virginia", "WI": "wisconsin", "WY": "wyoming",
}

// specialtySlugs maps common specialty names to their directory URL slugs.
// Anything not listed falls back to hyphenation.
var specialtySlugs = map[string]string{
	"family medicine":                      "family-medicine",
	"internal medicine":                    "internal-medicine",
	"pediatrics":                           "pediatrics",
	"cardiology":                           "cardiology",
	"dermatology":                          "dermatology",
	"orthopedic surgery":                   "orthopedic-surgery",
	"neurology":                            "neurology",
	"psychiatry":                           "psychiatry",
	"obstetrics and gynecology":            "obstetrics-gynecology",
	"oncology":                             "oncology",
	"ophthalmology":                        "ophthalmology",
	"otolaryngology":                       "otolaryngology",
	"urology":                              "urology",
	"radiology":                            "radiology",
	"anesthesiology":                       "anesthesiology",
	"emergency medicine":                   "emergency-medicine",
	"pathology":                            "pathology",
	"physical medicine and rehabilitation": "physical-medicine-rehabilitation",
	"plastic surgery":                      "plastic-surgery",
	"general surgery":                      "general-surgery",
}

// FallbackStateSlugs is tried in order when no state can be derived from any
// known address.
var FallbackStateSlugs = []string{"idaho", "california", "texas", "florida", "new-york"}

var stateAbbrevPattern = regexp.MustCompile(`\b[A-Z]{2}\b`)

// StateSlugFromAddress derives a directory state slug from a free-text
// address: first by two-letter abbreviation (last one in the string, which
// is usually the state), then by full state name. Empty when nothing
// matches.
func StateSlugFromAddress(address string) string {
	if address == "" {
		return ""
	}

	matches := stateAbbrevPattern.FindAllString(strings.ToUpper(address), -1)
	for i := len(matches) - 1; i >= 0; i-- {
		if slug, ok := stateSlugs[matches[i]]; ok {
			return slug
		}
	}

	addressLower := strings.ToLower(address)
	for _, slug := range stateSlugs {
		if strings.Contains(addressLower, strings.ReplaceAll(slug, "-", " ")) {
			return slug
		}
	}

	return ""
}

// SpecialtySlug maps a free-text specialty to its directory URL slug.
func SpecialtySlug(specialty string) string {
	if specialty == "" {
		return "family-medicine"
	}
	key := strings.ToLower(strings.TrimSpace(specialty))
	if slug, ok := specialtySlugs[key]; ok {
		return slug
	}
	slug := strings.ReplaceAll(key, " ", "-")
	return strings.ReplaceAll(slug, "&", "and")
}

// ParseName splits a provider name into first and last parts, accepting both
// "First Last" and "Last, First" forms.
func ParseName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if i := strings.Index(name, ","); i >= 0 {
		return strings.TrimSpace(name[i+1:]), strings.TrimSpace(name[:i])
	}
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	first = parts[0]
	if len(parts) > 1 {
		last = parts[len(parts)-1]
	}
	return first, last
}
