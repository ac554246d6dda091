package notification

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// TelegramNotifier отправляет события в чат регистратуры
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID int64
	names  NameResolver
}

func NewTelegramNotifier(b *bot.Bot, chatID int64, names NameResolver) *TelegramNotifier {
	return &TelegramNotifier{bot: b, chatID: chatID, names: names}
}

func (n *TelegramNotifier) Notify(ctx context.Context, e model.BookingEvent) error {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      Render(ctx, e, n.names),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram notification %s: %w", e.BookingID, err)
	}
	return nil
}

var eventTitles = map[model.EventKind]string{
	model.EventAdmitted:    "📝 Новая запись",
	model.EventCancelled:   "❌ Запись отменена",
	model.EventRescheduled: "🔁 Запись перенесена",
	model.EventCompleted:   "✅ Приём завершён",
	model.EventWalkIn:      "🚶 Пациент без записи",
}

// Render текст уведомления в HTML-разметке Telegram
func Render(ctx context.Context, e model.BookingEvent, names NameResolver) string {
	title, ok := eventTitles[e.Kind]
	if !ok {
		title = string(e.Kind)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b>\n", title)
	fmt.Fprintf(&sb, "🆔 %s\n", html.EscapeString(e.BookingID))
	if e.Status == model.AppointmentWaitlisted {
		sb.WriteString("⏳ Лист ожидания\n")
	}
	fmt.Fprintf(&sb, "👨‍⚕️ %s\n", html.EscapeString(names.PractitionerName(ctx, e.PractitionerID)))
	fmt.Fprintf(&sb, "🏥 %s\n", html.EscapeString(names.LocationName(ctx, e.LocationID)))
	fmt.Fprintf(&sb, "📅 %s %s", e.Date, e.Time)
	if e.PreviousBookingID != "" {
		fmt.Fprintf(&sb, "\n↩️ Вместо %s", html.EscapeString(e.PreviousBookingID))
	}
	return sb.String()
}
