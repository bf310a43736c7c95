package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"daytutor/internal/session"
)

// Notifier delivers a reminder to a user. The Telegram bot satisfies this
// for "tg:" users; everyone else is reminded through the log only.
type Notifier interface {
	Notify(userID, text string) error
}

// Scheduler runs the daily study reminder: a sweep over every in-progress
// session, nudging its owner to continue the course.
type Scheduler struct {
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	spec     string
	sessions *session.Service
	notifier Notifier
}

func New(spec string, sessions *session.Service) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		ctx:      ctx,
		cancel:   cancel,
		spec:     spec,
		sessions: sessions,
	}
}

func (s *Scheduler) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		log.Printf("🕘 Triggered daily study reminder sweep (%s UTC)", s.spec)
		s.Sweep()
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("📅 Scheduler started - daily reminders on %q UTC", s.spec)
	return nil
}

// Sweep reminds every user with an unfinished course. Exported so the sweep
// is testable without waiting for the cron tick.
func (s *Scheduler) Sweep() {
	list, err := s.sessions.AllWithStatus(session.StatusInProgress)
	if err != nil {
		log.Printf("❌ Reminder sweep failed: %v", err)
		return
	}

	for _, sess := range list {
		text := reminderText(sess)
		if s.notifier != nil {
			if err := s.notifier.Notify(sess.UserID, text); err != nil {
				log.Printf("failed to notify user %s: %v", sess.UserID, err)
				continue
			}
		}
		log.Printf("🔔 Reminder for user %s: session %s at day %d of %d",
			sess.UserID, sess.ID, sess.CurrentDay, sess.TotalDays)
	}
	if len(list) == 0 {
		log.Println("🔔 No in-progress sessions, nothing to remind")
	}
}

func reminderText(sess *session.Session) string {
	return fmt.Sprintf("⏰ Time to study! You're on day %d of %d of your course on %s.",
		sess.CurrentDay, sess.TotalDays, sess.Topic)
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("📅 Scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
