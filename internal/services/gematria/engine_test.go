package gematria

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		pattern  string
		expected string
	}{
		{"lowercase", "cat", "", "CAT"},
		{"punctuation stripped", "Hello, World!", "", "HELLOWORLD"},
		{"digits stripped", "Area 51", "", "AREA"},
		{"empty", "", "", ""},
		{"keep digits pattern", "Area 51", "[^A-Z0-9]", "AREA51"},
		{"invalid pattern falls back", "Cat 9!", "[unclosed", "CAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input, tt.pattern))
		})
	}
}

func TestComputeOrdinal(t *testing.T) {
	// C=3, A=1, T=20
	assert.Equal(t, 24, Compute("CAT", SchemeOrdinal, ""))
	assert.Equal(t, 24, Compute("cat", SchemeOrdinal, ""))
	assert.Equal(t, 24, Compute("c-a-t!", SchemeOrdinal, ""))
}

func TestComputeAllSchemes(t *testing.T) {
	schemes := []string{
		SchemeOrdinal, SchemeReduction, SchemeReverse,
		SchemeReverseReduction, SchemePrime, SchemeSumerian,
	}

	values := ComputeAll("CAT", schemes, "")

	assert.Equal(t, 24, values[SchemeOrdinal])
	// C=3, A=1, T=2
	assert.Equal(t, 6, values[SchemeReduction])
	// C=24, A=26, T=7
	assert.Equal(t, 57, values[SchemeReverse])
	// C=6, A=8, T=7
	assert.Equal(t, 21, values[SchemeReverseReduction])
	// C=5, A=2, T=71
	assert.Equal(t, 78, values[SchemePrime])
	assert.Equal(t, 144, values[SchemeSumerian])
}

func TestComputeAllEmptyText(t *testing.T) {
	values := ComputeAll("", []string{SchemeOrdinal, SchemePrime}, "")
	assert.Equal(t, 0, values[SchemeOrdinal])
	assert.Equal(t, 0, values[SchemePrime])
}

func TestComputeUnknownScheme(t *testing.T) {
	assert.Equal(t, 0, Compute("CAT", "klingon", ""))

	values := ComputeAll("CAT", []string{"klingon"}, "")
	assert.Empty(t, values)
}

func TestDigitalRoot(t *testing.T) {
	assert.Equal(t, 0, DigitalRoot(0))
	assert.Equal(t, 6, DigitalRoot(24))
	assert.Equal(t, 3, DigitalRoot(93))
	assert.Equal(t, 1, DigitalRoot(1000))
	assert.Equal(t, 7, DigitalRoot(-16))

	// Nonzero input always lands in 1..9
	for n := 1; n < 2000; n++ {
		root := DigitalRoot(n)
		assert.GreaterOrEqual(t, root, 1)
		assert.LessOrEqual(t, root, 9)
	}
}

func TestFactorSignature(t *testing.T) {
	assert.Nil(t, FactorSignature(0))
	assert.Nil(t, FactorSignature(1))
	assert.Equal(t, []int{2}, FactorSignature(2))
	assert.Equal(t, []int{2, 2, 3}, FactorSignature(12))
	assert.Equal(t, []int{3, 31}, FactorSignature(93))
	assert.Equal(t, []int{97}, FactorSignature(97))
}

func TestDefaultEnabledSchemes(t *testing.T) {
	assert.Equal(t, []string{SchemeOrdinal, SchemeReduction, SchemeReverse}, DefaultEnabledSchemes)
	for _, name := range DefaultEnabledSchemes {
		assert.NotNil(t, GetScheme(name))
	}
}

func TestAvailableSchemesSortedByLabel(t *testing.T) {
	defs := AvailableSchemes()
	assert.Len(t, defs, 6)
	for i := 1; i < len(defs); i++ {
		assert.LessOrEqual(t, defs[i-1].Label, defs[i].Label)
	}
}

func TestValidSchemeNames(t *testing.T) {
	valid := ValidSchemeNames([]string{"ordinal", "klingon", "prime"})
	assert.Equal(t, []string{"ordinal", "prime"}, valid)
}
