package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"daytutor/internal/auth"
	"daytutor/internal/chat"
	"daytutor/internal/plan"
	"daytutor/internal/session"
)

// Bot is the Telegram front-end: one active session per chat, burst
// delivery only. Telegram users map to the ID space as "tg:<id>".
type Bot struct {
	api      *tgbotapi.BotAPI
	authSvc  *auth.Service
	sessions *session.Service
	planner  *plan.Generator
	orch     *chat.Orchestrator

	active map[int64]string // chatID -> sessionID
}

func New(botToken string, authSvc *auth.Service, sessions *session.Service, planner *plan.Generator, orch *chat.Orchestrator) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:      api,
		authSvc:  authSvc,
		sessions: sessions,
		planner:  planner,
		orch:     orch,
		active:   make(map[int64]string),
	}, nil
}

func UserID(tgID int64) string {
	return "tg:" + strconv.FormatInt(tgID, 10)
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message != nil {
			b.handleIncomingMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := UserID(msg.From.ID)
	if !b.authSvc.IsVerified(userID) {
		log.Printf("Unverified access attempt by user ID: %d, username: @%s", msg.From.ID, msg.From.UserName)
		b.sendMessage(msg.Chat.ID, "Your account is pending verification.")
		return
	}

	log.Printf("Incoming message from %d (@%s): %q", msg.From.ID, msg.From.UserName, msg.Text)

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, userID)
		return
	}

	sessionID, ok := b.active[msg.Chat.ID]
	if !ok {
		b.sendMessage(msg.Chat.ID, "No active course. Start one with /plan <days> <topic>.")
		return
	}

	d, err := b.orch.HandleMessage(ctx, userID, sessionID, msg.Text)
	if err != nil {
		b.reportError(msg.Chat.ID, err)
		return
	}

	res := d.Result
	if d.Mode == chat.ModeStream {
		for range d.Fragments {
		}
		res = <-d.Final
	}
	if res.Err != nil {
		b.reportError(msg.Chat.ID, res.Err)
		return
	}

	text := res.Text
	if res.Progress.IsCourseComplete {
		text += "\n\n🏁 Course complete, congratulations!"
	} else if res.Progress.IsDayComplete {
		text += "\n\n✅ Today's material is covered. Send /next when you're ready for the next day."
	}
	b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, userID string) {
	switch msg.Command() {
	case "start":
		b.sendMessage(msg.Chat.ID, "👋 I'm your daily tutor.\n/plan <days> <topic> — start a course\n/next — move to the next day\n/status — show progress")
	case "plan":
		b.handlePlan(ctx, msg, userID)
	case "next":
		b.handleNext(ctx, msg, userID)
	case "status":
		b.handleStatus(msg, userID)
	default:
		b.sendMessage(msg.Chat.ID, "Unknown command. Try /plan, /next or /status.")
	}
}

func (b *Bot) handlePlan(ctx context.Context, msg *tgbotapi.Message, userID string) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		b.sendMessage(msg.Chat.ID, "Usage: /plan <days> <topic>, e.g. /plan 7 Go concurrency")
		return
	}
	days, err := strconv.Atoi(args[0])
	if err != nil || days < 1 {
		b.sendMessage(msg.Chat.ID, "The first argument must be a positive number of days.")
		return
	}
	topic := strings.Join(args[1:], " ")

	sess, err := b.sessions.Create(userID, topic, days, "1 hour", session.ModeStandard, "")
	if err != nil {
		b.reportError(msg.Chat.ID, err)
		return
	}
	b.sendMessage(msg.Chat.ID, fmt.Sprintf("📝 Building a %d-day plan for %q, one moment...", days, topic))

	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()
	p, err := b.planner.Generate(genCtx, topic, days, "1 hour")
	if err != nil {
		if _, ferr := b.sessions.MarkFailed(sess.ID); ferr != nil {
			log.Printf("failed to mark session %s failed: %v", sess.ID, ferr)
		}
		b.sendMessage(msg.Chat.ID, "Plan generation failed, please try again later.")
		return
	}
	if _, err := b.sessions.AttachPlan(sess.ID, p); err != nil {
		b.reportError(msg.Chat.ID, err)
		return
	}

	b.active[msg.Chat.ID] = sess.ID
	b.sendMessage(msg.Chat.ID, plan.WelcomeMessage(topic, p))
}

func (b *Bot) handleNext(ctx context.Context, msg *tgbotapi.Message, userID string) {
	sessionID, ok := b.active[msg.Chat.ID]
	if !ok {
		b.sendMessage(msg.Chat.ID, "No active course. Start one with /plan <days> <topic>.")
		return
	}
	sess, err := b.sessions.AdvanceDay(sessionID)
	if err != nil {
		if errors.Is(err, session.ErrAlreadyAtLastDay) {
			b.sendMessage(msg.Chat.ID, "You're already on the final day.")
			return
		}
		b.reportError(msg.Chat.ID, err)
		return
	}

	start, err := b.orch.StartLesson(ctx, userID, sessionID, nil)
	if err != nil {
		b.reportError(msg.Chat.ID, err)
		return
	}
	b.sendMessage(msg.Chat.ID, fmt.Sprintf("📅 Day %d of %d: %s\n\n%s", sess.CurrentDay, sess.TotalDays, start.DayTitle, start.WelcomeMessage))
}

func (b *Bot) handleStatus(msg *tgbotapi.Message, userID string) {
	sessionID, ok := b.active[msg.Chat.ID]
	if !ok {
		b.sendMessage(msg.Chat.ID, "No active course. Start one with /plan <days> <topic>.")
		return
	}
	sess, err := b.sessions.GetOwned(userID, sessionID)
	if err != nil {
		b.reportError(msg.Chat.ID, err)
		return
	}
	b.sendMessage(msg.Chat.ID, fmt.Sprintf(
		"📊 %s\nStatus: %s\nDay %d of %d, topic %d\nProgress: %.1f%%",
		sess.Topic, sess.Status, sess.CurrentDay, sess.TotalDays,
		sess.CurrentTopicIndex+1, b.sessions.ProgressPercentage(sess),
	))
}

func (b *Bot) reportError(chatID int64, err error) {
	log.Printf("telegram handler error: %v", err)
	switch {
	case errors.Is(err, session.ErrPlanNotReady):
		b.sendMessage(chatID, "The lesson plan is still being prepared, try again in a moment.")
	case errors.Is(err, chat.ErrGenerationFailed):
		b.sendMessage(chatID, "The tutor is unavailable right now, your message was saved. Please retry.")
	default:
		b.sendMessage(chatID, "Sorry, something went wrong.")
	}
}

// Notify implements the scheduler's notifier for Telegram users. Private
// chats share the user's numeric ID, so "tg:<id>" addresses both.
func (b *Bot) Notify(userID, text string) error {
	raw, ok := strings.CutPrefix(userID, "tg:")
	if !ok {
		return fmt.Errorf("user %s is not reachable over telegram", userID)
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed telegram user ID %s: %w", userID, err)
	}
	b.sendMessage(chatID, text)
	return nil
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		// Markdown parsing is strict; fall back to plain text.
		msg.ParseMode = ""
		if _, err2 := b.api.Send(msg); err2 != nil {
			log.Printf("failed to send message to chat %d: %v", chatID, err2)
		}
	}
}
