package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tazhate/medbot/internal/domain"
)

// Dose reminder keyboard: the two defined responses to a surfaced reminder.
func doseReminderKeyboard(medID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✓ Taken", fmt.Sprintf("taken:%d", medID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏰ Snooze 5 min", fmt.Sprintf("snooze:%d", medID)),
		),
	)
}

// Medication list keyboard (one row per active medication)
func medListKeyboard(meds []*domain.Medication) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	for _, m := range meds {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s #%d %s", m.ProgressEmoji(), m.ID, truncate(m.Name, 20)),
				fmt.Sprintf("view:%d", m.ID),
			),
		))
		if len(rows) >= 10 {
			break
		}
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", "refresh:list"),
	))

	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &keyboard
}

// View medication keyboard
func viewMedKeyboard(med *domain.Medication) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", fmt.Sprintf("del:%d", med.ID)),
		tgbotapi.NewInlineKeyboardButtonData("◀️ Back to list", "back:list"),
	))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Confirm delete keyboard
func confirmDeleteKeyboard(medID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Yes, delete", fmt.Sprintf("confirm_del:%d", medID)),
			tgbotapi.NewInlineKeyboardButtonData("◀️ Cancel", "back:list"),
		),
	)
}
