package maintenance

import (
	"fmt"
	"log/slog"

	"github.com/albapepper/eventcentral/internal/cache"
)

// readPrefixes are the cache key families that change when any game is
// written.
var readPrefixes = []string{"games:", "potg:", "leaders:"}

// InvalidateReadCache returns a save hook that drops cached read responses
// touched by a game write.
func InvalidateReadCache(c *cache.Cache, logger *slog.Logger) func(gameID int64) {
	return func(gameID int64) {
		dropped := c.InvalidatePrefix(fmt.Sprintf("game:%d:", gameID))
		for _, p := range readPrefixes {
			dropped += c.InvalidatePrefix(p)
		}
		if dropped > 0 {
			logger.Debug("Invalidated read cache", "game_id", gameID, "entries", dropped)
		}
	}
}
