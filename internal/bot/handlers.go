package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/tazhate/medbot/internal/domain"
	"github.com/tazhate/medbot/internal/service"
)

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if !b.cfg.IsAllowedUser(userID) {
		b.SendMessage(chatID, "⛔ Access denied")
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	// Free text: try it as an /add line, otherwise point at the format.
	if med, err := b.addFromArgs(text); err == nil {
		b.sendMedAdded(chatID, med)
		return
	}
	b.SendMessage(chatID, "To register a medication:\n/add Name HH:MM grams days hours\n\nExample: /add Paracetamol 08:00 500 3 8")
}

func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	msgID := callback.Message.MessageID

	if !b.cfg.IsAllowedUser(userID) {
		b.api.Request(tgbotapi.NewCallback(callback.ID, "⛔ Access denied"))
		return
	}

	data := callback.Data
	parts := strings.Split(data, ":")

	switch parts[0] {
	case "taken":
		if len(parts) < 2 {
			return
		}
		medID := atoi(parts[1])
		med, applied, err := b.medService.MarkTaken(medID)
		if err != nil {
			b.api.Request(tgbotapi.NewCallback(callback.ID, "❌ "+err.Error()))
			return
		}
		if !applied {
			b.api.Request(tgbotapi.NewCallback(callback.ID, "Already handled"))
			return
		}

		b.api.Request(tgbotapi.NewCallback(callback.ID, "✅ Dose recorded!"))

		text := fmt.Sprintf("✅ <b>%s</b>: dose %d/%d taken", med.Name, med.TakenDoses, med.TotalDoses)
		if med.Completed {
			text += "\n\n🎉 Treatment completed!"
		} else {
			text += fmt.Sprintf("\n⏭ Next dose at %s", service.NextDoseTime(med))
		}
		edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
		edit.ParseMode = "HTML"
		b.api.Send(edit)

	case "snooze":
		if len(parts) < 2 {
			return
		}
		medID := atoi(parts[1])
		med, applied, err := b.medService.Snooze(medID)
		if err != nil {
			b.api.Request(tgbotapi.NewCallback(callback.ID, "❌ "+err.Error()))
			return
		}
		if !applied {
			b.api.Request(tgbotapi.NewCallback(callback.ID, "Already handled"))
			return
		}

		// Re-check on the snooze mark instead of waiting for the minute grid.
		if b.recheck != nil {
			b.recheck.RecheckAfter(service.SnoozeStep)
		}

		b.api.Request(tgbotapi.NewCallback(callback.ID, "⏰ Snoozed"))

		text := fmt.Sprintf("⏰ <b>%s</b> snoozed, next reminder at %s", med.Name, med.CurrentAlertTime)
		edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
		edit.ParseMode = "HTML"
		b.api.Send(edit)

	case "view":
		if len(parts) < 2 {
			return
		}
		b.showMedication(chatID, msgID, atoi(parts[1]))

	case "del":
		if len(parts) < 2 {
			return
		}
		medID := atoi(parts[1])
		med, err := b.medService.Get(medID)
		if err != nil || med == nil {
			b.api.Request(tgbotapi.NewCallback(callback.ID, "Medication not found"))
			return
		}

		b.api.Request(tgbotapi.NewCallback(callback.ID, ""))

		text := fmt.Sprintf("🗑 Delete this medication?\n\n<b>#%d</b> %s at %s", med.ID, med.Name, med.Time)
		kb := confirmDeleteKeyboard(medID)
		edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
		edit.ParseMode = "HTML"
		edit.ReplyMarkup = &kb
		b.api.Send(edit)

	case "confirm_del":
		if len(parts) < 2 {
			return
		}
		if err := b.medService.Delete(atoi(parts[1])); err != nil {
			b.api.Request(tgbotapi.NewCallback(callback.ID, "❌ "+err.Error()))
			return
		}
		b.api.Request(tgbotapi.NewCallback(callback.ID, "🗑 Deleted"))
		b.refreshMedList(chatID, msgID)

	case "refresh", "back":
		b.api.Request(tgbotapi.NewCallback(callback.ID, ""))
		b.refreshMedList(chatID, msgID)

	default:
		b.api.Request(tgbotapi.NewCallback(callback.ID, ""))
	}
}

func (b *Bot) refreshMedList(chatID int64, msgID int) {
	meds, err := b.medService.List()
	if err != nil {
		log.Error().Err(err).Msg("list medications")
		return
	}

	now := time.Now().In(b.cfg.Timezone)
	text := "<b>💊 Medications:</b>\n\n" + b.medService.FormatMedicationList(meds, now)

	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = "HTML"
	if kb := medListKeyboard(meds); kb != nil {
		edit.ReplyMarkup = kb
	}
	b.api.Send(edit)
}

func (b *Bot) showMedication(chatID int64, msgID int, medID int64) {
	med, err := b.medService.Get(medID)
	if err != nil || med == nil {
		return
	}

	now := time.Now().In(b.cfg.Timezone)
	total, expected, taken := service.DoseProgress(med, now)

	status := "in progress"
	if med.Completed {
		status = "completed 🎉"
	}

	text := fmt.Sprintf(
		"%s <b>%s</b> (%sg)\n\n📅 Doses: %d/%d (%d expected by now)\n⏰ Every %sh for %s days\n🕐 Next dose: %s%s\n📆 Started: %s\nStatus: %s",
		med.ProgressEmoji(), med.Name, med.Grams,
		taken, total, expected,
		med.Hours, med.Days,
		service.NextDoseTime(med), delaySuffix(med),
		med.StartDate, status,
	)

	kb := viewMedKeyboard(med)
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = "HTML"
	edit.ReplyMarkup = &kb
	b.api.Send(edit)
}

func (b *Bot) sendMedAdded(chatID int64, med *domain.Medication) {
	text := fmt.Sprintf(
		"✅ Medication added\n\n<b>%s</b> (%sg)\n⏰ %s, every %sh for %s days\n📅 %d doses total",
		med.Name, med.Grams, med.Time, med.Hours, med.Days, med.TotalDoses,
	)
	b.SendMessage(chatID, text)
}

// addFromArgs parses "Name HH:MM grams days hours" (name may contain spaces).
func (b *Bot) addFromArgs(args string) (*domain.Medication, error) {
	fields := strings.Fields(args)
	if len(fields) < 5 {
		return nil, errors.New("expected: Name HH:MM grams days hours")
	}
	n := len(fields)
	name := strings.Join(fields[:n-4], " ")
	return b.medService.Create(name, fields[n-4], fields[n-3], fields[n-2], fields[n-1])
}

func delaySuffix(med *domain.Medication) string {
	if med.IsDelayed() {
		return " (delayed)"
	}
	return ""
}

func atoi(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
