package gematria

import (
	"regexp"
	"strings"
	"sync"
)

var (
	patternMu    sync.Mutex
	patternCache = make(map[string]*regexp.Regexp)
)

func compilePattern(pattern string) *regexp.Regexp {
	if pattern == "" {
		pattern = DefaultIgnorePattern
	}

	patternMu.Lock()
	defer patternMu.Unlock()

	if re, ok := patternCache[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = regexp.MustCompile(DefaultIgnorePattern)
	}
	patternCache[pattern] = re
	return re
}

// Normalize uppercases text and strips all characters matching ignorePattern
func Normalize(text, ignorePattern string) string {
	upper := strings.ToUpper(text)
	return compilePattern(ignorePattern).ReplaceAllString(upper, "")
}

// Compute sums the per-letter values of the named scheme over the normalized
// text. Characters without a mapping contribute 0. Unknown schemes yield 0.
func Compute(text, scheme, ignorePattern string) int {
	def := GetScheme(scheme)
	if def == nil {
		return 0
	}

	total := 0
	for _, r := range Normalize(text, ignorePattern) {
		total += def.Values[r]
	}
	return total
}

// ComputeAll normalizes once and computes every requested scheme
func ComputeAll(text string, schemes []string, ignorePattern string) map[string]int {
	normalized := Normalize(text, ignorePattern)

	result := make(map[string]int, len(schemes))
	for _, scheme := range schemes {
		def := GetScheme(scheme)
		if def == nil {
			continue
		}
		total := 0
		for _, r := range normalized {
			total += def.Values[r]
		}
		result[scheme] = total
	}
	return result
}

// DigitalRoot reduces n to a single digit by iterative digit summing.
// Works on the absolute value; 0 stays 0.
func DigitalRoot(n int) int {
	if n < 0 {
		n = -n
	}
	for n >= 10 {
		sum := 0
		for n > 0 {
			sum += n % 10
			n /= 10
		}
		n = sum
	}
	return n
}

// FactorSignature returns the prime factorization of n as an ordered multiset
// (trial division up to sqrt). Values below 2 get an empty signature.
func FactorSignature(n int) []int {
	if n < 2 {
		return nil
	}

	factors := []int{}
	for n%2 == 0 {
		factors = append(factors, 2)
		n /= 2
	}
	for f := 3; f*f <= n; f += 2 {
		for n%f == 0 {
			factors = append(factors, f)
			n /= f
		}
	}
	if n > 1 {
		factors = append(factors, n)
	}
	return factors
}

// TokenCount counts whitespace-separated tokens in the raw text
func TokenCount(text string) int {
	return len(strings.Fields(text))
}
