package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/internal/repository"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

type fakeRepo struct {
	rows    map[string]*models.StockItem
	listErr error
	gets    int
}

func (f *fakeRepo) List(context.Context) ([]*models.StockItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.StockItem, 0, len(f.rows))
	for _, r := range f.rows {
		c := *r
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*models.StockItem, error) {
	f.gets++
	r, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *r
	return &c, nil
}

func newRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]*models.StockItem{
		"stk-rice":  {ID: "stk-rice", Name: "Rice", Unit: "kg", Quantity: 20, MinQuantity: 5, Version: 1},
		"stk-sugar": {ID: "stk-sugar", Name: "Sugar", Unit: "kg", Quantity: 1, MinQuantity: 2, Version: 1},
	}}
}

func TestLoadAndLow(t *testing.T) {
	s := NewStore(newRepo(), time.Second, logger.Nop())
	require.NoError(t, s.Load(context.Background()))

	items := s.List()
	require.Len(t, items, 2)
	assert.Equal(t, "Rice", items[0].Name)

	low := s.Low()
	require.Len(t, low, 1)
	assert.Equal(t, "stk-sugar", low[0].ID)
}

func TestLoadFailureKeepsItems(t *testing.T) {
	repo := newRepo()
	s := NewStore(repo, time.Second, logger.Nop())
	require.NoError(t, s.Load(context.Background()))

	repo.listErr = errors.New("timeout")
	assert.Error(t, s.Load(context.Background()))
	assert.Len(t, s.List(), 2)
}

func TestSyncFollowsVersions(t *testing.T) {
	repo := newRepo()
	s := NewStore(repo, time.Second, logger.Nop())
	require.NoError(t, s.Load(context.Background()))

	var seen []models.StockItem
	s.Subscribe(func(it models.StockItem) { seen = append(seen, it) })

	require.NoError(t, s.Sync(context.Background(), "stk-rice", 1))
	assert.Equal(t, 0, repo.gets, "known version is not refetched")

	repo.rows["stk-rice"].Quantity = 18.5
	repo.rows["stk-rice"].Version = 2
	require.NoError(t, s.Sync(context.Background(), "stk-rice", 2))

	require.Len(t, seen, 1)
	assert.Equal(t, 18.5, seen[0].Quantity)
	assert.Equal(t, 18.5, s.List()[0].Quantity)
}
