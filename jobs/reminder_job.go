package jobs

import (
	"context"
	"time"

	"github.com/Logan-Myn/dancehub-v3-sub000/logger"
)

const (
	ReminderLead = 60 * time.Minute
	// wider than the schedule interval; reminder_sent_at keeps sends unique
	ReminderWindow = 10 * time.Minute
)

type ReminderSender interface {
	SendReminders(ctx context.Context, lead, window time.Duration) (int, error)
}

// SendLessonReminders emails students whose confirmed lesson starts in about an hour.
func SendLessonReminders(ctx context.Context, sender ReminderSender, log logger.Logger) {
	log.Debug("running job: SendLessonReminders", nil)

	sent, err := sender.SendReminders(ctx, ReminderLead, ReminderWindow)
	if err != nil {
		log.WithError(err).Error("error sending lesson reminders", nil)
		return
	}
	if sent == 0 {
		return
	}
	log.Info("sent lesson reminders", map[string]interface{}{"count": sent})
}
