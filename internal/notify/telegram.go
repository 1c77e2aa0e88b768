package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"contestwatch/internal/domain"
)

// upcomingLimit caps the number of contests listed by /upcoming.
const upcomingLimit = 5

// UpcomingFunc returns the current contest list, soonest first.
type UpcomingFunc func() []domain.Contest

// TelegramNotifier delivers notifications to a Telegram chat and answers a
// couple of bot commands.
type TelegramNotifier struct {
	bot      *tgbot.Bot
	chatID   int64
	upcoming UpcomingFunc
	location *time.Location
	log      logrus.FieldLogger
}

// NewTelegramNotifier creates the bot client. Creating it calls getMe, so the
// token must be valid and the API reachable.
func NewTelegramNotifier(token string, chatID int64, upcoming UpcomingFunc, logger logrus.FieldLogger, opts ...tgbot.Option) (*TelegramNotifier, error) {
	log := logger.WithField("component", "telegram_notifier")

	b, err := tgbot.New(token, opts...)
	if err != nil {
		log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	t := &TelegramNotifier{
		bot:      b,
		chatID:   chatID,
		upcoming: upcoming,
		location: time.Local,
		log:      log,
	}
	t.registerHandlers()

	log.WithField("chat_id", chatID).Info("Telegram notifier initialized")
	return t, nil
}

func (t *TelegramNotifier) registerHandlers() {
	t.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, t.startHandler)
	t.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/upcoming", tgbot.MatchTypePrefix, t.upcomingHandler)
}

// Start begins polling for updates from Telegram.
// This function blocks until the context is cancelled.
func (t *TelegramNotifier) Start(ctx context.Context) {
	t.log.Info("Starting Telegram bot polling...")
	t.bot.Start(ctx)
	t.log.Info("Telegram bot polling stopped.")
}

// RequestPermission grants only when a destination chat is configured.
func (t *TelegramNotifier) RequestPermission(ctx context.Context) (Permission, error) {
	if t.chatID == 0 {
		t.log.Warn("No telegram.chat_id configured, notifications denied")
		return PermissionDenied, nil
	}
	return PermissionGranted, nil
}

// Show sends the notification with a button that opens the contest page.
func (t *TelegramNotifier) Show(ctx context.Context, n Notification) error {
	params := &tgbot.SendMessageParams{
		ChatID: t.chatID,
		Text:   n.Title + "\n" + n.Body,
	}
	if n.Link != "" {
		params.ReplyMarkup = &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{{Text: "Open contest", URL: n.Link}},
			},
		}
	}

	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		t.log.WithError(err).WithField("contest_id", n.ContestID).Error("Failed to send notification")
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}

// startHandler handles the /start command.
func (t *TelegramNotifier) startHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	log := t.log.WithFields(logrus.Fields{
		"chat_id": update.Message.Chat.ID,
		"command": "/start",
	})
	log.Info("Received /start command")

	_, err := b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   fmt.Sprintf("Contest reminders are sent to chat %d. Use /upcoming to list the next contests.", t.chatID),
	})
	if err != nil {
		log.WithError(err).Error("Failed to send welcome message")
	}
}

// upcomingHandler replies with the next few contests.
func (t *TelegramNotifier) upcomingHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	log := t.log.WithFields(logrus.Fields{
		"chat_id": update.Message.Chat.ID,
		"command": "/upcoming",
	})
	log.Info("Received /upcoming command")

	_, err := b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   t.formatUpcoming(),
	})
	if err != nil {
		log.WithError(err).Error("Failed to send upcoming list")
	}
}

func (t *TelegramNotifier) formatUpcoming() string {
	var contests []domain.Contest
	if t.upcoming != nil {
		contests = t.upcoming()
	}
	if len(contests) == 0 {
		return "No upcoming contests."
	}
	if len(contests) > upcomingLimit {
		contests = contests[:upcomingLimit]
	}

	var sb strings.Builder
	for _, c := range contests {
		fmt.Fprintf(&sb, "%s (%s)\n%s, %s\n%s\n\n",
			c.Name, c.Platform,
			c.StartTime.In(t.location).Format("Mon 02 Jan 15:04"), domain.FormatDuration(c.Duration),
			c.Link)
	}
	return strings.TrimSpace(sb.String())
}
