package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/figprep/figprep/internal/document"
)

func TestHintsOnly_ExtractFigures(t *testing.T) {
	pages := []PageInput{
		{
			PageNumber: 1,
			Rotation:   90,
			Hints: []document.Hint{
				{Kind: document.HintFigureLabel, Text: "FIG.1"},
				{Kind: document.HintComponent, Text: "10"},
				{Kind: document.HintComponent, Text: "2"},
				{Kind: document.HintComponent, Text: "10"},
				{Kind: document.HintComponent, Text: "10a"},
				{Kind: document.HintText, Text: "bracket"},
			},
		},
		{
			PageNumber: 2,
			Hints:      []document.Hint{},
		},
	}

	figs, err := NewHintsOnly().ExtractFigures(t.Context(), pages)
	require.NoError(t, err)
	require.Len(t, figs, 2)

	assert.Equal(t, 1, figs[0].Page)
	assert.Equal(t, "FIG.1", figs[0].Label)
	assert.Equal(t, 90, figs[0].Rotation)
	assert.Equal(t, []string{"2", "10", "10a"}, figs[0].Components)

	assert.Equal(t, 2, figs[1].Page)
	assert.Empty(t, figs[1].Label)
	assert.Empty(t, figs[1].Components)
}

func TestSortComponents_NumericAware(t *testing.T) {
	components := []string{"W1", "10'", "10", "2", "G", "10a"}
	sortComponents(components)
	assert.Equal(t, []string{"2", "10", "10'", "10a", "G", "W1"}, components)
}
