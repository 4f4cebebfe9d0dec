package progress

import (
	"context"
	"time"

	"github.com/mohammad-safakhou/postwise/internal/content"
)

// DefaultTTL is how long a chain's state survives after its last update.
const DefaultTTL = 5 * time.Minute

// Store keeps the latest snapshot per chain identifier. Writers always put
// a full replacement snapshot; entries expire DefaultTTL after their last
// write. Implementations must be safe for concurrent use.
type Store interface {
	Put(ctx context.Context, id string, state content.ChainState) error
	Get(ctx context.Context, id string) (content.ChainState, bool, error)
	Delete(ctx context.Context, id string) error
}
