// Package notify sends team announcements to an external chat.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/guard"
)

// Notifier delivers a text announcement for a team.
type Notifier interface {
	Notify(ctx context.Context, teamName, text string) error
}

// LogNotifier writes announcements to the log. It is used when no chat is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, teamName, text string) error {
	n.logger.Info("team announcement", "team", teamName, "text", text)
	return nil
}

// sender is the part of tgbotapi.BotAPI the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

const breakerKey = "telegram"

// TelegramNotifier posts announcements to one Telegram chat. A circuit breaker
// stops calling the Bot API after repeated failures.
type TelegramNotifier struct {
	bot     sender
	chatID  int64
	breaker *guard.CircuitBreaker
	logger  *slog.Logger
}

// NewTelegramNotifier authorizes the bot token and returns a notifier for chatID.
func NewTelegramNotifier(token string, chatID int64, breaker *guard.CircuitBreaker, logger *slog.Logger) (*TelegramNotifier, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id not set")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorize telegram bot: %w", err)
	}
	logger.Info("telegram bot authorized", "username", bot.Self.UserName)
	return newTelegramNotifier(bot, chatID, breaker, logger), nil
}

func newTelegramNotifier(bot sender, chatID int64, breaker *guard.CircuitBreaker, logger *slog.Logger) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID, breaker: breaker, logger: logger}
}

// Notify sends text prefixed with the team name.
func (n *TelegramNotifier) Notify(ctx context.Context, teamName, text string) error {
	if res := n.breaker.Check(ctx, breakerKey); !res.Allowed {
		return fmt.Errorf("telegram unavailable: %s", res.Reason)
	}

	msg := tgbotapi.NewMessage(n.chatID, fmt.Sprintf("*%s*\n%s", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, teamName), text))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.bot.Send(msg); err != nil {
		n.breaker.RecordFailure(breakerKey)
		n.logger.Error("telegram send failed", "error", err, "team", teamName)
		return fmt.Errorf("send telegram message: %w", err)
	}
	n.breaker.RecordSuccess(breakerKey)
	return nil
}

// MatchReminder composes the day-before reminder of m. pending lists the players
// who have not answered yet.
func MatchReminder(m domain.Match, opponent, venue string, pending []domain.Player) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mañana %s a las %s", m.Date, m.Time)
	if opponent != "" {
		fmt.Fprintf(&b, " vs %s", opponent)
	}
	if venue != "" {
		fmt.Fprintf(&b, " en %s", venue)
	}
	b.WriteString(".")
	if m.CourtFee > 0 {
		fmt.Fprintf(&b, "\nCancha: $%.0f", m.CourtFee)
	}
	if len(pending) > 0 {
		names := make([]string, len(pending))
		for i, p := range pending {
			names[i] = p.DisplayName()
		}
		fmt.Fprintf(&b, "\nFaltan confirmar: %s", strings.Join(names, ", "))
	}
	return b.String()
}
