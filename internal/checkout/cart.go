package checkout

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/vaidashi/restaurant-pos/pkg/errors"
)

var (
	ErrInvalidQuantity = apperrors.NewInvalidInputError("quantity must be positive")
	ErrInvalidMenuItem = apperrors.NewInvalidInputError("menu item needs an id, a name and a non-negative price")
	ErrLineNotFound    = apperrors.NewNotFoundError("cart line not found")
)

// lineNamespace scopes the derived cart line keys
var lineNamespace = uuid.MustParse("6f1c2a4e-3b7d-4c55-9a0e-2d8f6b1e9c31")

// MenuItem is the product being sold, as supplied by the menu service
type MenuItem struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Price int64  `json:"price" validate:"min=0"`
}

// Line is one cart entry. Identical items with different notes are separate lines.
type Line struct {
	Key       string `json:"key"`
	ItemID    string `json:"item_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes,omitempty"`
}

// LineKey derives the stable key of an (item, notes) pair
func LineKey(itemID, notes string) string {
	return uuid.NewSHA1(lineNamespace, []byte(itemID+"\x00"+notes)).String()
}

// Cart is a terminal's in-progress sale
type Cart struct {
	mu       sync.Mutex
	lines    []Line
	revision uint64
}

// Add puts qty of the item on the cart, merging with an existing line for the same notes
func (c *Cart) Add(item MenuItem, qty int, notes string) (Line, error) {
	if qty < 1 {
		return Line{}, ErrInvalidQuantity
	}
	if strings.TrimSpace(item.ID) == "" || strings.TrimSpace(item.Name) == "" || item.Price < 0 {
		return Line{}, ErrInvalidMenuItem
	}

	notes = strings.TrimSpace(notes)
	key := LineKey(item.ID, notes)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.revision++

	for i := range c.lines {
		if c.lines[i].Key == key {
			c.lines[i].Quantity += qty
			return c.lines[i], nil
		}
	}

	line := Line{
		Key:       key,
		ItemID:    item.ID,
		Name:      item.Name,
		UnitPrice: item.Price,
		Quantity:  qty,
		Notes:     notes,
	}
	c.lines = append(c.lines, line)
	return line, nil
}

// SetQuantity changes a line's quantity; zero removes the line
func (c *Cart) SetQuantity(key string, qty int) error {
	if qty < 0 {
		return ErrInvalidQuantity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].Key != key {
			continue
		}
		c.revision++
		if qty == 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
		} else {
			c.lines[i].Quantity = qty
		}
		return nil
	}

	return ErrLineNotFound
}

// Remove deletes a line
func (c *Cart) Remove(key string) error {
	return c.SetQuantity(key, 0)
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = nil
	c.revision++
}

// Lines returns a copy of the lines in the order they were added
func (c *Cart) Lines() []Line {
	lines, _ := c.snapshot()
	return lines
}

func (c *Cart) snapshot() ([]Line, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Line{}, c.lines...), c.revision
}

// clearIfUnchanged empties the cart only if nobody edited it since the snapshot
func (c *Cart) clearIfUnchanged(revision uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.revision != revision {
		return false
	}
	c.lines = nil
	c.revision++
	return true
}

// Carts holds one cart per terminal
type Carts struct {
	mu    sync.Mutex
	carts map[string]*Cart
}

// NewCarts creates an empty registry
func NewCarts() *Carts {
	return &Carts{carts: make(map[string]*Cart)}
}

// Get returns the terminal's cart, creating it on first use
func (r *Carts) Get(terminal string) *Cart {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[terminal]
	if !ok {
		c = &Cart{}
		r.carts[terminal] = c
	}
	return c
}

// Len returns the number of terminals with a cart
func (r *Carts) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.carts)
}
