package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier sends operational alerts to a configured chat.
type Notifier interface {
	SendMessage(text string) error
}

type botNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewNotifier creates a Telegram notifier for the given bot token and chat.
func NewNotifier(botToken string, chatID int64) (Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &botNotifier{bot: bot, chatID: chatID}, nil
}

func (n *botNotifier) SendMessage(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := n.bot.Send(msg)
	return err
}

// NoopNotifier is used when alerting is disabled in configuration.
type NoopNotifier struct{}

// NewNoopNotifier creates a notifier that discards all messages.
func NewNoopNotifier() Notifier {
	return NoopNotifier{}
}

func (NoopNotifier) SendMessage(string) error { return nil }
