package input_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid-justin/cadcore/pkg/input"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"simple", "LINE 0 0 10 10", []string{"LINE", "0", "0", "10", "10"}},
		{"commas", "RECTANGLE 0,0 10,5", []string{"RECTANGLE", "0", "0", "10", "5"}},
		{"quoted", `TEXT "Hello World" 0 0`, []string{"TEXT", "Hello World", "0", "0"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := input.Tokenize(tc.in)
			if tc.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestParser_ParsePointOptionalZ(t *testing.T) {
	p := input.NewParser("1 2 3")

	pt, err := p.ParsePoint()
	require.NoError(t, err)
	assert.Equal(t, input.Point{X: 1, Y: 2, Z: 3}, pt)
	assert.False(t, p.HasMore())
}

func TestParser_ParsePointNonNumericZLeftInStream(t *testing.T) {
	p := input.NewParser("1 2 LAYER0")

	pt, err := p.ParsePoint()
	require.NoError(t, err)
	assert.Equal(t, input.Point{X: 1, Y: 2, Z: 0}, pt)

	rest, ok := p.Next()
	require.True(t, ok)
	assert.Equal(t, "LAYER0", rest)
}

func TestParser_ParseOption(t *testing.T) {
	p := input.NewParser("COLOR=RED BOLD")

	key, value, err := p.ParseOption()
	require.NoError(t, err)
	assert.Equal(t, "COLOR", key)
	assert.Equal(t, "RED", value)

	key, value, err = p.ParseOption()
	require.NoError(t, err)
	assert.Equal(t, "BOLD", key)
	assert.Equal(t, "true", value)
}

func TestParser_MissingTokensReturnErrors(t *testing.T) {
	p := input.NewParser("")

	_, err := p.ParsePoint()
	assert.Error(t, err)

	_, err = p.ParseDistance()
	assert.Error(t, err)

	_, err = p.ParseInteger()
	assert.Error(t, err)
}
