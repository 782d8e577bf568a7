package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/billboardserve/internal/models"
)

func TestRandomBillboardsAreValid(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		b := randomBillboard(r, i, 3)
		require.NoError(t, b.Validate(), "billboard %d", i)
		if i%10 == 0 {
			assert.Equal(t, models.AreaHomeHero, b.PlacementArea)
			assert.Equal(t, models.TypeInHouse, b.TypeOf)
		} else {
			assert.NotEqual(t, models.AreaHomeHero, b.PlacementArea, "billboard %d", i)
		}
		if b.AudienceSegmentID != nil {
			assert.True(t, *b.AudienceSegmentID >= 1 && *b.AudienceSegmentID <= 3)
		}
	}
}

func TestRandomAreasExcludeHomeHero(t *testing.T) {
	assert.NotContains(t, randomAreas, models.AreaHomeHero)
	assert.Len(t, randomAreas, len(models.AllowedPlacementAreas)-1)
}

func TestSegmentUsersAreDistinct(t *testing.T) {
	users := segmentUsers(rand.New(rand.NewSource(1)), 200)
	seen := map[int]bool{}
	for _, u := range users {
		assert.False(t, seen[u])
		seen[u] = true
	}
	assert.Len(t, users, 200)
}

func TestPick(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	assert.Len(t, pick(r, []string{"a", "b"}, 5), 2)
	got := pick(r, []string{"a", "b", "c"}, 2)
	assert.Len(t, got, 2)
	assert.NotEqual(t, got[0], got[1])
}
