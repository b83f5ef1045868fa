package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"mymedaga-payments/internal/config"
	"mymedaga-payments/internal/domain/ports/adapter"
)

// sender is the part of *tgbotapi.BotAPI the alerter uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Alerter sends operator alerts to every configured admin chat.
type Alerter struct {
	bot      sender
	adminIDs []int64
	log      zerolog.Logger
}

var _ adapter.Alerter = (*Alerter)(nil)

// NewAlerter authenticates the bot token. An empty token yields a NoopAlerter.
func NewAlerter(cfg config.TelegramConfig, logger *zerolog.Logger) (adapter.Alerter, error) {
	if cfg.Token == "" {
		return NewNoopAlerter(logger), nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newAlerter(bot, cfg.AdminIDs, logger), nil
}

func newAlerter(bot sender, adminIDs []int64, logger *zerolog.Logger) *Alerter {
	return &Alerter{
		bot:      bot,
		adminIDs: adminIDs,
		log:      logger.With().Str("component", "TelegramAlerter").Logger(),
	}
}

// Alert delivers text to all admins; one failing chat does not stop the others.
func (a *Alerter) Alert(ctx context.Context, text string) error {
	var errs []error
	for _, id := range a.adminIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(id, text)
		msg.DisableWebPagePreview = true
		if _, err := a.bot.Send(msg); err != nil {
			a.log.Warn().Err(err).Int64("chat_id", id).Msg("alert not delivered")
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// NoopAlerter logs alerts instead of sending them.
type NoopAlerter struct {
	log zerolog.Logger
}

func NewNoopAlerter(logger *zerolog.Logger) *NoopAlerter {
	return &NoopAlerter{log: logger.With().Str("component", "NoopAlerter").Logger()}
}

func (n *NoopAlerter) Alert(_ context.Context, text string) error {
	n.log.Info().Str("text", text).Msg("alert")
	return nil
}
