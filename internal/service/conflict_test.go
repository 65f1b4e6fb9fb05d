package service

import (
	"testing"

	"github.com/fieldbankhq/fieldbank/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickCandidate(t *testing.T) {
	t.Run("no candidates", func(t *testing.T) {
		best, conflict := PickCandidate(nil)
		assert.Nil(t, best)
		assert.False(t, conflict)
	})

	t.Run("single candidate wins", func(t *testing.T) {
		best, conflict := PickCandidate([]Candidate{
			{EntryID: "e1", Value: "3.8", Confidence: 0.7},
		})
		require.NotNil(t, best)
		assert.False(t, conflict)
		assert.Equal(t, "e1", best.EntryID)
	})

	t.Run("agreeing candidates collapse to the verified one", func(t *testing.T) {
		best, conflict := PickCandidate([]Candidate{
			{EntryID: "e1", Value: "Computer Science", Confidence: 0.9},
			{EntryID: "e2", Value: "Computer Science", Verified: true, Confidence: 1.0},
		})
		require.NotNil(t, best)
		assert.False(t, conflict)
		assert.Equal(t, "e2", best.EntryID)
	})

	t.Run("whitespace differences are not distinct", func(t *testing.T) {
		best, conflict := PickCandidate([]Candidate{
			{EntryID: "e1", Value: "3.8", Confidence: 0.6},
			{EntryID: "e2", Value: "  3.8  ", Confidence: 0.8},
		})
		require.NotNil(t, best)
		assert.False(t, conflict)
		assert.Equal(t, "e2", best.EntryID)
	})

	t.Run("distinct values conflict even when one is verified", func(t *testing.T) {
		best, conflict := PickCandidate([]Candidate{
			{EntryID: "e1", Value: "CS", Confidence: 0.9},
			{EntryID: "e2", Value: "Computer Science", Verified: true, Confidence: 1.0},
		})
		assert.Nil(t, best)
		assert.True(t, conflict)
	})
}

func TestCandidatesFromEntries(t *testing.T) {
	entries := []*domain.Entry{
		nil,
		{ID: "e1", Kind: domain.EntryKindFieldValue, Payload: domain.EncodeFieldValue("3.8"), Confidence: 0.7},
		// Malformed payload, skipped rather than substituted.
		{ID: "e2", Kind: domain.EntryKindFieldValue, Payload: "my GPA is 3.8"},
		// Prose kinds never become literal-stage candidates.
		{ID: "e3", Kind: domain.EntryKindFreeform, Payload: "some essay text"},
	}

	cands := candidatesFromEntries(entries)
	require.Len(t, cands, 1)
	assert.Equal(t, "e1", cands[0].EntryID)
	assert.Equal(t, "3.8", cands[0].Value)
}

func TestDistinctValues(t *testing.T) {
	assert.Equal(t, 0, distinctValues(nil))

	assert.Equal(t, 1, distinctValues([]*domain.Entry{
		{Kind: domain.EntryKindFieldValue, Payload: domain.EncodeFieldValue("CS")},
		{Kind: domain.EntryKindFieldValue, Payload: domain.EncodeFieldValue("  CS ")},
	}))

	assert.Equal(t, 2, distinctValues([]*domain.Entry{
		{Kind: domain.EntryKindFieldValue, Payload: domain.EncodeFieldValue("CS")},
		{Kind: domain.EntryKindFieldValue, Payload: domain.EncodeFieldValue("Computer Science")},
	}))
}
