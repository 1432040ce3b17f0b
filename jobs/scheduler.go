package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Logan-Myn/dancehub-v3-sub000/logger"
)

const jobTimeout = time.Minute

type Config struct {
	Reminders ReminderSender
	Sessions  []Evictor
	IdleTTL   time.Duration
	Logger    logger.Logger
}

// Register adds the background jobs to c. The caller starts and stops c.
func Register(c *cron.Cron, cfg Config) error {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	if _, err := c.AddFunc("*/5 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		SendLessonReminders(ctx, cfg.Reminders, log.WithFields(map[string]interface{}{"job": "lesson_reminders"}))
	}); err != nil {
		return fmt.Errorf("schedule lesson reminders: %w", err)
	}

	if _, err := c.AddFunc("*/5 * * * *", func() {
		EvictIdleSessions(cfg.IdleTTL, log.WithFields(map[string]interface{}{"job": "session_eviction"}), cfg.Sessions...)
	}); err != nil {
		return fmt.Errorf("schedule session eviction: %w", err)
	}
	return nil
}
