// Package bot answers Telegram chat commands with current traffic figures.
package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/timfallmk/traffic-watcher/internal/alert"
	"github.com/timfallmk/traffic-watcher/internal/logging"
	"github.com/timfallmk/traffic-watcher/internal/report"
	"github.com/timfallmk/traffic-watcher/internal/traffic"
)

// PollTimeout is the long-poll timeout in seconds.
const PollTimeout = 60

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Traffic is what the commands read. *traffic.Engine satisfies it.
type Traffic interface {
	Summary(ctx context.Context, iface string) (traffic.Summary, error)
	TodayTotal(ctx context.Context, iface string) (traffic.Usage, error)
	YesterdayTotal(ctx context.Context, iface string) (traffic.Usage, error)
	ThisWeekTotal(ctx context.Context, iface string) (traffic.Usage, error)
	ThisMonthTotal(ctx context.Context, iface string) (traffic.Usage, error)
	Live(ctx context.Context, iface string) traffic.Live
	LiveSeconds() int
}

// Bot dispatches chat commands.
type Bot struct {
	api        API
	traffic    Traffic
	iface      string
	thresholds func() alert.Thresholds
	logger     *logging.Logger
}

// New creates a bot. thresholds reports the limits currently in force.
func New(api API, t Traffic, iface string, thresholds func() alert.Thresholds, logger *logging.Logger) *Bot {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Bot{
		api:        api,
		traffic:    t,
		iface:      iface,
		thresholds: thresholds,
		logger:     logger.WithComponent("bot"),
	}
}

// Run long-polls for updates until ctx is cancelled or the update channel
// closes.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = PollTimeout

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("bot polling for commands")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate answers a single update. Non-command messages are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}
	b.Handle(ctx, msg.Chat.ID, msg.Command())
}

// Handle runs command for chatID and sends the replies. Unknown commands are
// ignored.
func (b *Bot) Handle(ctx context.Context, chatID int64, command string) {
	b.logger.Debug("command received", "command", command, "chat_id", chatID)

	switch command {
	case "start":
		b.markdown(chatID, startText(chatID))
	case "help":
		b.markdown(chatID, helpText)
	case "status":
		s, err := b.traffic.Summary(ctx, b.iface)
		b.answer(chatID, err, func() string { return report.StatusText(s) })
	case "today":
		b.today(ctx, chatID)
	case "week":
		u, err := b.traffic.ThisWeekTotal(ctx, b.iface)
		b.answer(chatID, err, func() string { return report.PeriodText("📆 This Week's Traffic", u) })
	case "month":
		u, err := b.traffic.ThisMonthTotal(ctx, b.iface)
		b.answer(chatID, err, func() string { return report.PeriodText("📅 This Month's Traffic", u) })
	case "live":
		b.plain(chatID, report.MeasuringText(time.Duration(b.traffic.LiveSeconds())*time.Second))
		live := b.traffic.Live(ctx, b.iface)
		b.markdown(chatID, report.LiveText(live))
	case "thresholds":
		var th alert.Thresholds
		if b.thresholds != nil {
			th = b.thresholds()
		}
		b.markdown(chatID, report.ThresholdsText(th.Daily, th.Weekly, th.Monthly))
	}
}

func (b *Bot) today(ctx context.Context, chatID int64) {
	today, err := b.traffic.TodayTotal(ctx, b.iface)
	if err != nil {
		b.answer(chatID, err, nil)
		return
	}
	yesterday, err := b.traffic.YesterdayTotal(ctx, b.iface)
	b.answer(chatID, err, func() string { return report.TodayText(today, yesterday) })
}

// answer sends the rendered text, or the error reply when err is set.
func (b *Bot) answer(chatID int64, err error, render func() string) {
	if err != nil {
		b.logger.Warn("command failed", "chat_id", chatID, "error", err)
		b.plain(chatID, report.ErrorText(err))
		return
	}
	b.markdown(chatID, render())
}

func (b *Bot) markdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	b.send(msg)
}

func (b *Bot) plain(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("reply failed", "chat_id", msg.ChatID, "error", err)
	}
}
