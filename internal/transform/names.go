package transform

import (
	"regexp"
	"strings"
)

var titlePrefixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(sen\.|senator|rep\.|representative|hon\.|honorable)\s+`),
	regexp.MustCompile(`(?i)^(mr\.|mrs\.|ms\.|dr\.)\s+`),
	regexp.MustCompile(`(?i)^(the\s+)?(right\s+)?(honourable|honorable)\s+`),
}

// SplitPoliticianName splits a full display name into first and last name,
// stripping common honorific prefixes first (§4.3 step 1). A single-token
// name returns it as the first name with an empty last name; three or more
// tokens take the first and last token, discarding any middle names.
func SplitPoliticianName(fullName string) (first, last string) {
	name := strings.TrimSpace(fullName)
	for _, re := range titlePrefixes {
		name = re.ReplaceAllString(name, "")
	}
	name = strings.TrimSpace(name)

	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	case 2:
		return fields[0], fields[1]
	default:
		return fields[0], fields[len(fields)-1]
	}
}

// placeholderName matches names the normalizer must never strip honorifics
// from, since doing so could turn a sentinel value into a plausible-looking
// real name.
var placeholderName = regexp.MustCompile(`(?i)^(placeholder|unknown|pending|tbd|n/a)`)

// stateDistrictPattern extracts a leading two-letter state code from a
// "CA-11"-style district string.
var stateDistrictPattern = regexp.MustCompile(`^([A-Z]{2})\d+$`)

// honorificPrefixes lists every honorific the politician normalizer strips.
// It overlaps titlePrefixes and adds the congressional titles congressman
// and congresswoman; it does not cover mrs., ms., or honorable.
var honorificPrefixes = regexp.MustCompile(`(?i)^(hon\.|mr\.|dr\.|sen\.|rep\.|senator|representative|congressman|congresswoman)\s+`)

// canonicalRoles rewrites non-canonical role strings the normalizer batch
// job encounters in older rows (§4.3 "Politician normalizer").
var canonicalRoles = map[string]string{
	"us_house_representative": "Representative",
	"rep":                     "Representative",
	"house":                   "Representative",
	"senate":                  "Senator",
}

// NormalizeRole rewrites role to its canonical display form if it is one of
// the known non-canonical aliases, otherwise returns it unchanged.
func NormalizeRole(role string) string {
	if canonical, ok := canonicalRoles[strings.ToLower(role)]; ok {
		return canonical
	}
	return role
}

// StripHonorific removes a leading honorific from name unless name matches
// one of the placeholder sentinel patterns the normalizer must leave alone.
func StripHonorific(name string) string {
	if placeholderName.MatchString(name) {
		return name
	}
	return strings.TrimSpace(honorificPrefixes.ReplaceAllString(name, ""))
}

// StateFromDistrict extracts the two-letter state code from a "CA-11"-style
// district string, or "" if district doesn't match that shape.
func StateFromDistrict(district string) string {
	if m := stateDistrictPattern.FindStringSubmatch(strings.ToUpper(district)); m != nil {
		return m[1]
	}
	return ""
}
