package gematria

import "sort"

// Scheme name constants
const (
	SchemeOrdinal          = "ordinal"
	SchemeReduction        = "reduction"
	SchemeReverse          = "reverse"
	SchemeReverseReduction = "reverse_reduction"
	SchemePrime            = "prime"
	SchemeSumerian         = "sumerian"
)

// SchemeDefinition describes one letter-to-value mapping
type SchemeDefinition struct {
	Name        string       `json:"name"`
	Label       string       `json:"label"`
	Description string       `json:"description"`
	Values      map[rune]int `json:"-"`
}

// DefaultEnabledSchemes is the scheme set used when no setting is stored
var DefaultEnabledSchemes = []string{SchemeOrdinal, SchemeReduction, SchemeReverse}

// DefaultIgnorePattern strips everything that is not an uppercase letter
// after normalization.
const DefaultIgnorePattern = "[^A-Z]"

// primes holds the first 26 prime numbers, one per letter
var primes = []int{
	2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41,
	43, 47, 53, 59, 61, 67, 71, 73, 79, 83, 89, 97, 101,
}

var schemeRegistry = buildSchemeRegistry()

func buildSchemeRegistry() map[string]*SchemeDefinition {
	ordinal := make(map[rune]int, 26)
	reduction := make(map[rune]int, 26)
	reverse := make(map[rune]int, 26)
	reverseReduction := make(map[rune]int, 26)
	prime := make(map[rune]int, 26)
	sumerian := make(map[rune]int, 26)

	for i := 0; i < 26; i++ {
		letter := rune('A' + i)
		ord := i + 1
		rev := 26 - i

		ordinal[letter] = ord
		reduction[letter] = (ord-1)%9 + 1
		reverse[letter] = rev
		reverseReduction[letter] = (rev-1)%9 + 1
		prime[letter] = primes[i]
		sumerian[letter] = ord * 6
	}

	return map[string]*SchemeDefinition{
		SchemeOrdinal: {
			Name:        SchemeOrdinal,
			Label:       "English Ordinal",
			Description: "A=1 through Z=26",
			Values:      ordinal,
		},
		SchemeReduction: {
			Name:        SchemeReduction,
			Label:       "Full Reduction",
			Description: "Ordinal values reduced to 1-9",
			Values:      reduction,
		},
		SchemeReverse: {
			Name:        SchemeReverse,
			Label:       "Reverse Ordinal",
			Description: "Z=1 through A=26",
			Values:      reverse,
		},
		SchemeReverseReduction: {
			Name:        SchemeReverseReduction,
			Label:       "Reverse Full Reduction",
			Description: "Reverse ordinal values reduced to 1-9",
			Values:      reverseReduction,
		},
		SchemePrime: {
			Name:        SchemePrime,
			Label:       "Prime",
			Description: "A=2, B=3, each letter the next prime",
			Values:      prime,
		},
		SchemeSumerian: {
			Name:        SchemeSumerian,
			Label:       "Sumerian",
			Description: "Ordinal values multiplied by 6",
			Values:      sumerian,
		},
	}
}

// GetScheme returns the definition for a scheme name, or nil when unknown
func GetScheme(name string) *SchemeDefinition {
	return schemeRegistry[name]
}

// AvailableSchemes returns all scheme definitions sorted by label
func AvailableSchemes() []*SchemeDefinition {
	defs := make([]*SchemeDefinition, 0, len(schemeRegistry))
	for _, def := range schemeRegistry {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Label < defs[j].Label
	})
	return defs
}

// ValidSchemeNames filters names down to known schemes, preserving order
func ValidSchemeNames(names []string) []string {
	valid := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := schemeRegistry[name]; ok {
			valid = append(valid, name)
		}
	}
	return valid
}
