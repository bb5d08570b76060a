package orders

import (
	"time"

	"github.com/vaidashi/restaurant-pos/internal/models"
)

// statusCommand is a tentative status change that remembers what it replaced
type statusCommand struct {
	id          string
	from        models.OrderStatus
	to          models.OrderStatus
	baseVersion int64
	baseUpdated time.Time
}

func newStatusCommand(o *models.Order, to models.OrderStatus) statusCommand {
	return statusCommand{
		id:          o.ID,
		from:        o.Status,
		to:          to,
		baseVersion: o.Version,
		baseUpdated: o.UpdatedAt,
	}
}

func (c statusCommand) apply(o *models.Order, now time.Time) {
	o.Status = c.to
	o.UpdatedAt = now
}

// undo restores the status the command replaced. It refuses when a newer
// version has been merged in since, because that row is authoritative.
func (c statusCommand) undo(o *models.Order) bool {
	if o.Status != c.to || o.Version != c.baseVersion {
		return false
	}
	o.Status = c.from
	o.UpdatedAt = c.baseUpdated
	return true
}
