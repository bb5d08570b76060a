// Package inventory is a read-only stock cache. Quantities are deducted by
// database triggers; the cache follows them through the change feed.
package inventory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/internal/repository"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

// Repository reads stock rows
type Repository interface {
	List(ctx context.Context) ([]*models.StockItem, error)
	GetByID(ctx context.Context, id string) (*models.StockItem, error)
}

// Store caches stock items by id
type Store struct {
	repo    Repository
	timeout time.Duration
	logger  logger.Logger

	mu    sync.RWMutex
	items map[string]models.StockItem

	obsMu     sync.Mutex
	observers map[int]func(models.StockItem)
	nextObs   int
}

// NewStore creates an empty cache
func NewStore(repo Repository, timeout time.Duration, logger logger.Logger) *Store {
	return &Store{
		repo:      repo,
		timeout:   timeout,
		logger:    logger,
		items:     make(map[string]models.StockItem),
		observers: make(map[int]func(models.StockItem)),
	}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Load replaces the cache with the current rows. On failure the last known
// items are kept.
func (s *Store) Load(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	items, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Warn("Failed to load stock, keeping last known items", "error", err)
		return err
	}

	fresh := make(map[string]models.StockItem, len(items))
	for _, it := range items {
		fresh[it.ID] = *it
	}

	s.mu.Lock()
	s.items = fresh
	s.mu.Unlock()

	s.logger.Debug("Stock loaded", "items", len(items))
	return nil
}

// Sync fetches an item after a change notice, unless the cache already has that version
func (s *Store) Sync(ctx context.Context, id string, version int64) error {
	s.mu.RLock()
	current, ok := s.items[id]
	s.mu.RUnlock()

	if ok && current.Version >= version {
		return nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.mu.Lock()
			delete(s.items, id)
			s.mu.Unlock()
			return nil
		}
		return err
	}

	s.mu.Lock()
	if cur, ok := s.items[id]; ok && cur.Version >= item.Version {
		s.mu.Unlock()
		return nil
	}
	s.items[id] = *item
	s.mu.Unlock()

	if item.Low() {
		s.logger.Warn("Stock item below minimum", "stockID", item.ID, "name", item.Name, "quantity", item.Quantity)
	}

	s.notify(*item)
	return nil
}

// List returns every cached item ordered by name
func (s *Store) List() []models.StockItem {
	return s.filter(func(models.StockItem) bool { return true })
}

// Low returns the items at or below their minimum quantity
func (s *Store) Low() []models.StockItem {
	return s.filter(models.StockItem.Low)
}

func (s *Store) filter(keep func(models.StockItem) bool) []models.StockItem {
	s.mu.RLock()
	out := make([]models.StockItem, 0, len(s.items))
	for _, it := range s.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Subscribe registers fn for item changes and returns a function that removes it
func (s *Store) Subscribe(fn func(models.StockItem)) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn

	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Store) notify(item models.StockItem) {
	s.obsMu.Lock()
	fns := make([]func(models.StockItem), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(item)
	}
}
