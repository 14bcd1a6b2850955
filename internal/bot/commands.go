package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tazhate/medbot/internal/domain"
	"github.com/tazhate/medbot/internal/service"
)

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	switch cmd {
	case "start":
		b.cmdStart(chatID, msg.From.FirstName)
	case "help":
		b.cmdHelp(chatID)
	case "add":
		b.cmdAdd(chatID, args)
	case "list":
		b.cmdList(chatID)
	case "progress":
		b.cmdProgress(chatID)
	case "meds":
		b.cmdCatalog(chatID)
	case "calendar":
		b.cmdCalendar(chatID)
	default:
		b.SendMessage(chatID, "Unknown command. /help for the command list")
	}
}

func (b *Bot) cmdStart(chatID int64, name string) {
	b.SendMessage(chatID, fmt.Sprintf(
		"👋 Hi, %s!\n\nI track your medications and remind you when a dose is due.\n\n/help — command list", name))
}

func (b *Bot) cmdHelp(chatID int64) {
	text := `<b>Commands:</b>

<b>Medications</b>
/add Name HH:MM grams days hours — register a medication
/list — medications and progress
/progress — intake progress per medication
/meds — catalog of common medications

<b>Calendar</b>
/calendar — publish dose schedule to CalDAV

<b>Other</b>
/help — this reference

💡 When a reminder fires, answer with the buttons: ✓ Taken or ⏰ Snooze 5 min`

	b.SendMessage(chatID, text)
}

func (b *Bot) cmdAdd(chatID int64, args string) {
	if args == "" {
		b.SendMessage(chatID, "Usage: /add Paracetamol 08:00 500 3 8\n(name, first dose time, grams, days, interval hours)")
		return
	}

	med, err := b.addFromArgs(args)
	if err != nil {
		var dup *service.DuplicateError
		if errors.As(err, &dup) {
			b.SendMessage(chatID, fmt.Sprintf(
				"⚠️ Already registered: <b>%s</b> at %s (#%d)",
				dup.Existing.Name, dup.Existing.Time, dup.Existing.ID))
			return
		}
		b.SendMessage(chatID, "❌ "+err.Error())
		return
	}

	b.sendMedAdded(chatID, med)
}

func (b *Bot) cmdList(chatID int64) {
	meds, err := b.medService.List()
	if err != nil {
		b.SendMessage(chatID, "❌ Error: "+err.Error())
		return
	}

	now := time.Now().In(b.cfg.Timezone)
	text := "<b>💊 Medications:</b>\n\n" + b.medService.FormatMedicationList(meds, now)

	if kb := medListKeyboard(meds); kb != nil && len(meds) > 0 {
		b.SendMessageWithKeyboard(chatID, text, *kb)
	} else {
		b.SendMessage(chatID, text)
	}
}

func (b *Bot) cmdProgress(chatID int64) {
	meds, err := b.medService.List()
	if err != nil {
		b.SendMessage(chatID, "❌ Error: "+err.Error())
		return
	}

	now := time.Now().In(b.cfg.Timezone)
	b.SendMessage(chatID, "<b>📊 Intake progress:</b>\n\n"+b.medService.FormatProgressReport(meds, now))
}

func (b *Bot) cmdCatalog(chatID int64) {
	var sb strings.Builder
	sb.WriteString("<b>📖 Common medications:</b>\n\n")
	for _, m := range domain.Catalog {
		sb.WriteString(fmt.Sprintf("💊 <b>%s</b> (%s) — %s\n", m.Name, m.TypicalDose, m.Description))
	}
	sb.WriteString("\n/add Name HH:MM grams days hours")
	b.SendMessage(chatID, sb.String())
}

func (b *Bot) cmdCalendar(chatID int64) {
	if !b.calService.IsConfigured() {
		b.SendMessage(chatID, "CalDAV is not configured. Set CALDAV_USERNAME and CALDAV_PASSWORD.")
		return
	}

	result, err := b.calService.PublishDoseSchedule()
	if err != nil {
		b.SendMessage(chatID, "❌ Calendar sync failed: "+err.Error())
		return
	}

	text := fmt.Sprintf("📅 Dose calendar published\n\nAdded: %d\nUpdated: %d\nRemoved: %d",
		result.Added, result.Updated, result.Deleted)
	if len(result.Errors) > 0 {
		text += fmt.Sprintf("\nErrors: %d", len(result.Errors))
	}
	b.SendMessage(chatID, text)
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
