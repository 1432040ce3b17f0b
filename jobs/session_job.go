package jobs

import (
	"time"

	"github.com/Logan-Myn/dancehub-v3-sub000/logger"
)

// Evictor drops sessions that have been idle for longer than ttl.
type Evictor interface {
	Evict(ttl time.Duration) int
}

func EvictIdleSessions(ttl time.Duration, log logger.Logger, registries ...Evictor) int {
	evicted := 0
	for _, r := range registries {
		evicted += r.Evict(ttl)
	}
	if evicted > 0 {
		log.Info("evicted idle sessions", map[string]interface{}{"count": evicted, "idle_ttl": ttl.String()})
	}
	return evicted
}
