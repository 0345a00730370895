package staging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordClassifierRanksByKeywordHits(t *testing.T) {
	classifier := NewKeywordClassifier(nil)

	result, err := classifier.Classify(context.Background(), Request{FileName: "IMG_0042 front-facade street.jpg"})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Suggestions, 2)
	assert.Equal(t, "front-exterior", result.Suggestions[0].SlotID)
	assert.Equal(t, "Front Exterior", result.Suggestions[0].SlotLabel)
	assert.Equal(t, "street-view", result.Suggestions[1].SlotID)
	assert.Greater(t, result.Suggestions[0].Confidence, result.Suggestions[1].Confidence)
}

func TestKeywordClassifierDiscountsUsedSlots(t *testing.T) {
	classifier := NewKeywordClassifier(nil)

	free, err := classifier.Classify(context.Background(), Request{SourcePath: "/photos/kitchen.png"})
	require.NoError(t, err)
	used, err := classifier.Classify(context.Background(), Request{SourcePath: "/photos/kitchen.png", UsedSlots: []string{"kitchen"}})
	require.NoError(t, err)

	require.Len(t, free.Suggestions, 1)
	require.Len(t, used.Suggestions, 1)
	assert.InDelta(t, free.Suggestions[0].Confidence/2, used.Suggestions[0].Confidence, 0.001)
}

func TestKeywordClassifierLimitsAndFailures(t *testing.T) {
	classifier := NewKeywordClassifier(nil)

	result, err := classifier.Classify(context.Background(), Request{
		FileName: "front rear street kitchen.jpg",
		Options:  ClassifyOptions{MaxSuggestions: 2},
	})
	require.NoError(t, err)
	assert.Len(t, result.Suggestions, 2)

	result, err = classifier.Classify(context.Background(), Request{FileName: "0001.jpg"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = classifier.Classify(ctx, Request{FileName: "front.jpg"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSlotCatalogLookup(t *testing.T) {
	catalog := DefaultSlots()
	slot, ok := catalog.Lookup("kitchen")
	require.True(t, ok)
	assert.Equal(t, "Kitchen", slot.Label)
	assert.Equal(t, "Garage", catalog.Label("garage"))
	assert.Equal(t, "attic", catalog.Label("attic"))
}
