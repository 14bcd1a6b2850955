package bot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/tazhate/medbot/config"
	"github.com/tazhate/medbot/internal/domain"
	"github.com/tazhate/medbot/internal/service"
)

// RecheckScheduler arms a one-shot dose re-evaluation, used after a snooze.
type RecheckScheduler interface {
	RecheckAfter(d time.Duration)
}

type Bot struct {
	api        *tgbotapi.BotAPI
	cfg        *config.Config
	medService *service.MedicationService
	calService *service.CalendarService
	recheck    RecheckScheduler
	server     *http.Server
}

func New(cfg *config.Config, medSvc *service.MedicationService, calSvc *service.CalendarService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("Authorized")

	bot := &Bot{
		api:        api,
		cfg:        cfg,
		medService: medSvc,
		calService: calSvc,
	}

	// Set bot commands (menu button)
	bot.setCommands()

	return bot, nil
}

// SetRecheck wires the scheduler used for snooze follow-ups.
func (b *Bot) SetRecheck(r RecheckScheduler) {
	b.recheck = r
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "list", Description: "💊 My medications"},
		{Command: "add", Description: "➕ Add a medication"},
		{Command: "progress", Description: "📊 Intake progress"},
		{Command: "meds", Description: "📖 Medication catalog"},
		{Command: "calendar", Description: "📅 Publish dose calendar"},
		{Command: "help", Description: "❓ Command reference"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		log.Error().Err(err).Msg("Failed to set commands")
	}
}

func (b *Bot) SetupWebhook() error {
	webhookURL := b.cfg.WebhookURL + "/bot"

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}

	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}

	if info.LastErrorDate != 0 {
		log.Warn().Str("error", info.LastErrorMessage).Msg("Webhook last error")
	}

	log.Info().Str("url", webhookURL).Msg("Webhook set")
	return nil
}

func (b *Bot) Start(ctx context.Context) error {
	updates := b.api.ListenForWebhook("/bot")

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	b.SetupAPI()

	b.server = &http.Server{
		Addr:    ":" + b.cfg.ServerPort,
		Handler: nil, // use DefaultServeMux
	}

	go func() {
		log.Info().Str("port", b.cfg.ServerPort).Msg("Starting webhook server")
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) Stop(ctx context.Context) error {
	if b.server != nil {
		return b.server.Shutdown(ctx)
	}
	return nil
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

// NotifyDoseDue surfaces a due dose to every configured chat. The message
// offers exactly the two defined responses: taken or snooze.
func (b *Bot) NotifyDoseDue(med *domain.Medication, doseNumber int, delayed bool) error {
	delayText := ""
	if delayed {
		delayText = " (delayed)"
	}

	text := fmt.Sprintf(
		"💊 <b>Time for your medication!</b>\n\n<b>%s</b> (%sg)\n📅 Dose: %d/%d\n🕐 Time: %s%s",
		med.Name, med.Grams, doseNumber, med.TotalDoses, med.CurrentAlertTime, delayText,
	)
	kb := doseReminderKeyboard(med.ID)

	if err := b.SendMessageWithKeyboard(b.cfg.OwnerTelegramID, text, kb); err != nil {
		return err
	}
	if b.cfg.PartnerTelegramID != 0 {
		if err := b.SendMessageWithKeyboard(b.cfg.PartnerTelegramID, text, kb); err != nil {
			log.Error().Err(err).Msg("notify partner")
		}
	}
	return nil
}
