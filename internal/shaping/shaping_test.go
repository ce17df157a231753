package shaping

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShapeFull_CompleteTextUnchanged(t *testing.T) {
	tests := []string{
		"The river in your dream speaks of change.",
		"Is this the path you want?",
		"Trust the process!",
		"The stars whisper…",
		`She said "begin again."`,
		"Your number is 7 (the seeker.)",
		"Love is near ✨",
		"A new chapter opens ❤️",
	}

	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, in, ShapeFull("  "+in+"\n", 80))
		})
	}
}

func TestShapeFull_CompleteTextKeepsSpacing(t *testing.T) {
	in := "The river rises.\n\n\nThe bridge holds."
	assert.Equal(t, in, ShapeFull("\n"+in+"  ", 80))
}

func TestShapeFull_RepairCollapsesBlankLines(t *testing.T) {
	got := ShapeFull("The river rises.\n\n\n\nThe bridge holds. The far bank", 10)
	assert.Equal(t, "The river rises.\n\nThe bridge holds.", got)
}

func TestShapeFull_Idempotent(t *testing.T) {
	inputs := []string{
		"Your path is 7 and it reveals",
		"The moon favors rest. Water reflects what you hide. Tomorrow the tide",
		"Done.",
	}
	for _, in := range inputs {
		once := ShapeFull(in, 20)
		assert.Equal(t, once, ShapeFull(once, 20), in)
	}
}

func TestShapeFull_ShortFragmentGetsEllipsis(t *testing.T) {
	got := ShapeFull("Your path is 7 and it reveals", 80)
	assert.Equal(t, "Your path is 7 and it reveals...", got)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestShapeFull_RepairsToLastSentence(t *testing.T) {
	raw := "The moon favors rest. Water reflects what you hide. Tomorrow the tide"

	t.Run("long enough to keep", func(t *testing.T) {
		assert.Equal(t, "The moon favors rest. Water reflects what you hide.", ShapeFull(raw, 20))
	})

	t.Run("too short after repair", func(t *testing.T) {
		assert.Equal(t, raw+"...", ShapeFull(raw, 80))
	})
}

func TestShapeFull_BoundaryNeedsFollowingSpace(t *testing.T) {
	raw := "Your life path number 7.5 suggests a seeker who"
	assert.Equal(t, raw+"...", ShapeFull(raw, 5))
}

func TestShapeFull_TrailingPunctuationTrimmedBeforeEllipsis(t *testing.T) {
	assert.Equal(t, "Venus moves into your sign, and...", ShapeFull("Venus moves into your sign, and,", 80))
}

func TestShapeFull_StripsCodeFences(t *testing.T) {
	raw := "```json\n{\"sign\":\"leo\"}\n```\nLeo shines brightest when generous."
	assert.Equal(t, "Leo shines brightest when generous.", ShapeFull(raw, 80))

	assert.Equal(t, "Fire signs lead.", ShapeFull("```markdown\nFire signs lead.", 80))
}

func TestShapeFull_NeverEmpty(t *testing.T) {
	assert.Equal(t, Ellipsis, ShapeFull("```\ncode only\n```", 80))
	assert.Equal(t, Ellipsis, ShapeFull("   ", 80))
}

func TestShapeTeaser_KeepsThreeSentences(t *testing.T) {
	raw := "Your dream is rich. The water is emotion. The bridge is transition. The key number is 4. Act on it."
	got := ShapeTeaser(raw, "Unlock the full reading.")

	assert.Equal(t, "Your dream is rich. The water is emotion. The bridge is transition...\n\nUnlock the full reading.", got)
	assert.NotContains(t, got, "number is 4")
	assert.NotContains(t, got, "Act on it")
}

func TestShapeTeaser_FewerSentences(t *testing.T) {
	got := ShapeTeaser("Venus favors you! Wait for the sign?", "HOOK")
	assert.Equal(t, "Venus favors you. Wait for the sign?\n\nHOOK", got)
}

func TestShapeTeaser_UnterminatedLead(t *testing.T) {
	got := ShapeTeaser("Your path number whispers of", "HOOK")
	assert.Equal(t, "Your path number whispers of...\n\nHOOK", got)
}

func TestShapeTeaser_NoSentences(t *testing.T) {
	assert.Equal(t, "...\n\nHOOK", ShapeTeaser("...", "HOOK"))
	assert.Equal(t, "...", ShapeTeaser("", ""))
}

func TestShapeTeaser_LeadIsPrefixOfRawSentences(t *testing.T) {
	raw := "One. Two! Three? Four. Five."
	got := ShapeTeaser(raw, "")
	assert.Equal(t, "One. Two. Three...", got)
}

func TestIsTerminated(t *testing.T) {
	assert.True(t, IsTerminated("Yes."))
	assert.True(t, IsTerminated("Yes.)  "))
	assert.True(t, IsTerminated("Stars ⭐"))
	assert.False(t, IsTerminated("Yes,"))
	assert.False(t, IsTerminated("Number 7"))
	assert.False(t, IsTerminated(""))
	assert.False(t, IsTerminated("a ^"))
}
