package catalog

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fusion/internal/card"
	"github.com/roach88/fusion/internal/ir"
)

func recipe(result string, ingredients ...string) Recipe {
	return Recipe{Ingredients: card.FromStrings(ingredients), Result: card.ID(result)}
}

func TestTryMatch_OrderIndependent(t *testing.T) {
	c, report := Build([]Recipe{
		recipe("Steam", "Fire", "Water"),
		recipe("Golem", "Earth", "Fire", "Water"),
	})
	require.Equal(t, 2, report.Loaded)

	pairs := [][]card.ID{{"Fire", "Water"}, {"Water", "Fire"}}
	for _, p := range pairs {
		got, ok := c.TryMatch(p...)
		require.True(t, ok, "pair %v", p)
		assert.Equal(t, card.ID("Steam"), got)
	}

	triples := [][]card.ID{
		{"Earth", "Fire", "Water"}, {"Earth", "Water", "Fire"},
		{"Fire", "Earth", "Water"}, {"Fire", "Water", "Earth"},
		{"Water", "Earth", "Fire"}, {"Water", "Fire", "Earth"},
	}
	for _, p := range triples {
		got, ok := c.TryMatch(p...)
		require.True(t, ok, "triple %v", p)
		assert.Equal(t, card.ID("Golem"), got)
	}
}

func TestTryMatch_CaseInsensitive(t *testing.T) {
	c, _ := Build([]Recipe{recipe("Steam", "Fire", "Water")})

	a, okA := c.TryMatch("Fire", "Water")
	b, okB := c.TryMatch("FIRE", "water")

	assert.True(t, okA)
	assert.True(t, okB)
	assert.Equal(t, a, b)
}

func TestTryMatch_NoMatch(t *testing.T) {
	c, _ := Build([]Recipe{recipe("Steam", "Fire", "Water")})

	testCases := []struct {
		name string
		ids  []card.ID
	}{
		{"unknown pair", []card.ID{"Fire", "Earth"}},
		{"single", []card.ID{"Fire"}},
		{"none", nil},
		{"four", []card.ID{"Fire", "Water", "Earth", "Air"}},
		{"subset of pair", []card.ID{"Fire", "Fire"}},
		{"invalid id", []card.ID{"Fire", ""}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := c.TryMatch(tc.ids...)
			assert.False(t, ok)
			assert.Empty(t, got)
		})
	}
}

func TestTryMatch_PairDoesNotMatchTriple(t *testing.T) {
	c, _ := Build([]Recipe{
		recipe("C", "A", "B"),
		recipe("E", "A", "B", "D"),
	})

	got, ok := c.TryMatch("A", "B")
	require.True(t, ok)
	assert.Equal(t, card.ID("C"), got)

	got, ok = c.TryMatch("B", "D", "A")
	require.True(t, ok)
	assert.Equal(t, card.ID("E"), got)
}

func TestTryMatch_DuplicateIngredients(t *testing.T) {
	c, _ := Build([]Recipe{recipe("Inferno", "Fire", "fire")})

	got, ok := c.TryMatch("FIRE", "Fire")
	require.True(t, ok)
	assert.Equal(t, card.ID("Inferno"), got)
}

func TestBuild_FirstSeenWins(t *testing.T) {
	c, report := Build([]Recipe{
		recipe("X", "A", "B"),
		recipe("Y", "B", "A"),
	})

	got, ok := c.TryMatch("A", "B")
	require.True(t, ok)
	assert.Equal(t, card.ID("X"), got, "first-seen entry must win")

	assert.Equal(t, 1, report.Loaded)
	require.Len(t, report.Duplicates, 1)
	dup := report.Duplicates[0]
	assert.Equal(t, 1, dup.Index)
	assert.Equal(t, ErrCodeDuplicateKey, dup.Code)
	assert.True(t, IsDuplicateKey(dup))
	assert.Contains(t, dup.Message, "recipe 0")
}

func TestBuild_FirstSeenWins_CaseVariant(t *testing.T) {
	c, report := Build([]Recipe{
		recipe("X", "fire", "water"),
		recipe("Y", "WATER", "Fire"),
	})

	got, _ := c.TryMatch("Water", "Fire")
	assert.Equal(t, card.ID("X"), got)
	assert.Len(t, report.Duplicates, 1)
}

func TestBuild_SkipsInvalid(t *testing.T) {
	invalidResult := recipe(card.KeySeparator, "P", "Q")

	recipes := []Recipe{
		{Ingredients: nil, Result: "X"},         // 0: no ingredients
		recipe("X", "A"),                        // 1: too few
		recipe("X", "A", "B", "C", "D"),         // 2: too many
		recipe("", "A", "B"),                    // 3: missing result
		recipe("X", "A", ""),                    // 4: invalid ingredient
		recipe("X", "A", "B"+card.KeySeparator), // 5: separator in id
		recipe("Steam", "Fire", "Water"),        // 6: ok
		invalidResult,                           // 7: invalid result
	}

	c, report := Build(recipes)

	assert.Equal(t, 8, report.Total)
	assert.Equal(t, 1, report.Loaded)
	assert.Equal(t, 7, report.Skipped())
	require.Len(t, report.Invalid, 7)

	for i, issue := range report.Invalid {
		assert.Equal(t, ErrCodeInvalidRecipe, issue.Code)
		assert.True(t, IsInvalidRecipe(issue))
		if i < 6 {
			assert.Equal(t, i, issue.Index)
		}
	}
	assert.Equal(t, 7, report.Invalid[6].Index)

	got, ok := c.TryMatch("Water", "Fire")
	require.True(t, ok)
	assert.Equal(t, card.ID("Steam"), got)
}

func TestBuild_InvalidDoesNotClaimKey(t *testing.T) {
	c, report := Build([]Recipe{
		recipe("", "A", "B"),
		recipe("C", "A", "B"),
	})

	got, ok := c.TryMatch("A", "B")
	require.True(t, ok)
	assert.Equal(t, card.ID("C"), got)
	assert.Empty(t, report.Duplicates)
}

func TestBuild_LogsSkippedEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	_, report := BuildWithOptions([]Recipe{
		recipe("X", "A", "B"),
		recipe("Y", "A", "B"),
		recipe("", "C", "D"),
	}, BuildOptions{Logger: logger})

	assert.Equal(t, 2, report.Skipped())
	out := buf.String()
	assert.Contains(t, out, "ignoring duplicate recipe")
	assert.Contains(t, out, "skipping invalid recipe")
	assert.Contains(t, out, "level=WARN")
}

func TestBuild_Idempotent(t *testing.T) {
	recipes := []Recipe{
		recipe("X", "A", "B"),
		recipe("Y", "B", "A"),
		recipe("Z", "A", "B", "C"),
	}

	c1, r1 := Build(recipes)
	c2, r2 := Build(recipes)

	assert.Equal(t, c1.Entries(), c2.Entries())
	assert.Equal(t, r1, r2)
}

func TestBuild_CopiesInput(t *testing.T) {
	recipes := []Recipe{recipe("X", "A", "B")}
	c, _ := Build(recipes)

	recipes[0].Ingredients[0] = "Z"

	entries := c.Entries()
	assert.Equal(t, card.ID("A"), entries[0].Ingredients[0])

	entries[0].Ingredients[0] = "Q"
	assert.Equal(t, card.ID("A"), c.Entries()[0].Ingredients[0])
}

func TestReportIssues_InputOrder(t *testing.T) {
	_, report := Build([]Recipe{
		recipe("X", "A", "B"), // ok
		recipe("Y", "A", "B"), // dup
		recipe("", "C", "D"),  // invalid
		recipe("Z", "B", "A"), // dup
		recipe("W", "E"),      // invalid
	})

	issues := report.Issues()
	require.Len(t, issues, 4)
	idx := make([]int, len(issues))
	for i, is := range issues {
		idx[i] = is.Index
	}
	assert.Equal(t, []int{1, 2, 3, 4}, idx)
}

func TestIssueError(t *testing.T) {
	err := fmt.Errorf("wrap: %w", invalidRecipe(3, "missing result"))
	assert.True(t, IsInvalidRecipe(err))
	assert.False(t, IsDuplicateKey(err))
	assert.Contains(t, err.Error(), "INVALID_RECIPE: recipe 3: missing result")
}

func TestNilCatalog(t *testing.T) {
	var c *Catalog
	_, ok := c.TryMatch("A", "B")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.Entries())
}

func TestCatalog_ConcurrentReaders(t *testing.T) {
	c, _ := Build([]Recipe{recipe("Steam", "Fire", "Water")})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				got, ok := c.TryMatch("water", "FIRE")
				assert.True(t, ok)
				assert.Equal(t, card.ID("Steam"), got)
			}
		}()
	}
	wg.Wait()
}

func TestFromSpecs(t *testing.T) {
	recipes := FromSpecs([]ir.RecipeSpec{
		{Ingredients: []string{"fire", "water"}, Result: "steam"},
		{Ingredients: nil, Result: ""},
	})

	require.Len(t, recipes, 2)
	assert.Equal(t, []card.ID{"fire", "water"}, recipes[0].Ingredients)
	assert.Equal(t, card.ID("steam"), recipes[0].Result)

	_, report := Build(recipes)
	assert.Equal(t, 1, report.Loaded)
	assert.Len(t, report.Invalid, 1)
}
