// Package notify delivers alert and report text to an operator channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/timfallmk/traffic-watcher/internal/logging"
)

// ErrDeliveryFailed wraps every failed delivery. Callers log it and move on;
// nothing retries.
var ErrDeliveryFailed = errors.New("notification delivery failed")

// Sink delivers one message to an opaque destination.
type Sink interface {
	Send(ctx context.Context, destination, text string) error
}

// Sender is the part of *tgbotapi.BotAPI the sink needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink sends Markdown messages through the Telegram Bot API. The
// destination is a numeric chat ID.
type TelegramSink struct {
	api Sender
}

func NewTelegramSink(api Sender) *TelegramSink {
	return &TelegramSink{api: api}
}

func (s *TelegramSink) Send(ctx context.Context, destination, text string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	chatID, err := ParseChatID(destination)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return nil
}

// ParseChatID parses a Telegram chat ID such as "12345" or "-1001234".
func ParseChatID(destination string) (int64, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return 0, errors.New("no chat id configured")
	}
	id, err := strconv.ParseInt(destination, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q", destination)
	}
	return id, nil
}

// LogSink writes messages to the log instead of delivering them. It stands
// in when no bot token or chat ID is configured.
type LogSink struct {
	logger *logging.Logger
}

func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger.WithComponent("notify")}
}

func (s *LogSink) Send(_ context.Context, destination, text string) error {
	s.logger.Info("notification channel not configured, message not sent",
		"destination", destination, "text", text)
	return nil
}
