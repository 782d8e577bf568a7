package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/billboardserve/internal/models"
)

type staticSource struct {
	billboards  []models.Billboard
	memberships map[int][]int
	err         error
}

func (s staticSource) LoadBillboards(context.Context) ([]models.Billboard, error) {
	return s.billboards, s.err
}

func (s staticSource) LoadSegmentMemberships(context.Context) (map[int][]int, error) {
	return s.memberships, s.err
}

func TestInitSkipsInvalidBillboards(t *testing.T) {
	invalid := models.NewTestBillboard(2, models.AreaFeedFirst)
	invalid.TypeOf = models.TypeCommunity
	tagged := models.NewTestBillboard(3, models.AreaFeedFirst)
	tagged.Tags = []string{"Go"}

	store := models.NewInMemoryBillboardStore()
	res, err := Init(context.Background(), staticSource{billboards: []models.Billboard{
		models.NewTestBillboard(1, models.AreaFeedFirst), invalid, tagged,
	}}, store)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Loaded)
	assert.Equal(t, 1, res.Rejected)
	assert.Nil(t, store.GetBillboard(2))
	assert.Equal(t, []string{"go"}, store.GetBillboard(3).Tags)
}

func TestInitSourceError(t *testing.T) {
	store := models.NewTestBillboardStore(models.NewTestBillboard(1, models.AreaFeedFirst))
	_, err := Init(context.Background(), staticSource{err: errors.New("boom")}, store)
	assert.Error(t, err)
	assert.NotNil(t, store.GetBillboard(1), "failed load keeps the previous snapshot")
}

func TestSyncSegments(t *testing.T) {
	_, rs := setupTestRedis(t)
	n, err := SyncSegments(context.Background(), staticSource{memberships: map[int][]int{7: {42}}}, rs)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	member, err := rs.MemberOf(context.Background(), 7, 42)
	require.NoError(t, err)
	assert.True(t, member)
}

func TestArrayHelpers(t *testing.T) {
	assert.Nil(t, toInts(nil))
	assert.Equal(t, []int{1, 2}, toInts([]int64{1, 2}))
	assert.Equal(t, []int64{3}, toInt64s([]int{3}))
	assert.Equal(t, []string{}, nonNil(nil))
}
