package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timfallmk/traffic-watcher/internal/logging"
)

type fakeSender struct {
	err  error
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestTelegramSinkSend(t *testing.T) {
	sender := &fakeSender{}
	sink := NewTelegramSink(sender)

	require.NoError(t, sink.Send(context.Background(), "-100123", "*hello*"))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(-100123), sender.sent[0].ChatID)
	assert.Equal(t, "*hello*", sender.sent[0].Text)
	assert.Equal(t, tgbotapi.ModeMarkdown, sender.sent[0].ParseMode)
}

func TestTelegramSinkFailures(t *testing.T) {
	tests := []struct {
		name   string
		sender *fakeSender
		ctx    func() context.Context
		dest   string
	}{
		{
			name:   "api error",
			sender: &fakeSender{err: errors.New("Bad Request: chat not found")},
			ctx:    context.Background,
			dest:   "42",
		},
		{
			name:   "missing chat id",
			sender: &fakeSender{},
			ctx:    context.Background,
			dest:   "",
		},
		{
			name:   "non numeric chat id",
			sender: &fakeSender{},
			ctx:    context.Background,
			dest:   "@channel",
		},
		{
			name:   "cancelled",
			sender: &fakeSender{},
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			dest: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTelegramSink(tt.sender).Send(tt.ctx(), tt.dest, "text")
			assert.ErrorIs(t, err, ErrDeliveryFailed)
		})
	}
}

func TestParseChatID(t *testing.T) {
	id, err := ParseChatID(" 987 ")
	require.NoError(t, err)
	assert.Equal(t, int64(987), id)

	_, err = ParseChatID("abc")
	assert.Error(t, err)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, logging.Config{Level: logging.LevelInfo, Format: logging.FormatText})

	require.NoError(t, NewLogSink(logger).Send(context.Background(), "", "daily report"))
	out := buf.String()
	assert.True(t, strings.Contains(out, "daily report"), out)
	assert.True(t, strings.Contains(out, "component=notify"), out)
}
