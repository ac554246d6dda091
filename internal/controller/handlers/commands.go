package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const helpText = "🏥 Команды администратора клиники:\n\n" +
	"/generate <templateId|all> <с YYYY-MM-DD> [по YYYY-MM-DD] - Создать слоты по шаблону\n" +
	"/free <doctorId> <locationId> [YYYY-MM-DD] - Свободное время врача\n" +
	"/day [YYYY-MM-DD] - Записи на день\n" +
	"/help - Показать эту справку\n\n" +
	"Без даты используется сегодняшний день."

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, "👋 Бот администрирования расписания клиники.\n\n"+helpText)
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, helpText)
}

// HandleGenerate обрабатывает команду /generate
func (h *Handlers) HandleGenerate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !h.requireAdmin(ctx, b, update) {
		return
	}
	chatID := update.Message.Chat.ID

	args := commandArgs(update.Message.Text)
	if len(args) < 2 || len(args) > 3 {
		h.sendError(ctx, b, chatID, "❌ Формат: /generate <templateId|all> <с> [по]")
		return
	}

	loc := h.clock.Location()
	from, err := model.ParseDate(args[1], loc)
	if err != nil {
		h.sendError(ctx, b, chatID, "❌ Неверная дата начала. Формат: YYYY-MM-DD")
		return
	}
	to := from
	if len(args) == 3 {
		if to, err = model.ParseDate(args[2], loc); err != nil {
			h.sendError(ctx, b, chatID, "❌ Неверная дата окончания. Формат: YYYY-MM-DD")
			return
		}
	}

	var created int
	if strings.EqualFold(args[0], "all") {
		created, err = h.generator.GenerateAllActive(ctx, from, to)
	} else {
		id, parseErr := uuid.Parse(args[0])
		if parseErr != nil {
			h.sendError(ctx, b, chatID, "❌ Неверный ID шаблона")
			return
		}
		created, err = h.generator.Generate(ctx, id, from, to)
	}

	if err != nil {
		h.logger.Error("Generation from bot failed",
			zap.Int64("telegram_id", update.Message.From.ID),
			zap.String("target", args[0]),
			zap.Int("inserted", created),
			zap.Error(err))
		h.sendError(ctx, b, chatID, fmt.Sprintf("%s\nСоздано до ошибки: %d", userMessage(err), created))
		return
	}

	h.sendMessage(ctx, b, chatID, fmt.Sprintf("✅ Создано слотов: %d\n📅 %s - %s",
		created, from.Format(model.DateLayout), to.Format(model.DateLayout)))
}

// HandleFree обрабатывает команду /free
func (h *Handlers) HandleFree(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !h.requireAdmin(ctx, b, update) {
		return
	}
	chatID := update.Message.Chat.ID

	args := commandArgs(update.Message.Text)
	if len(args) < 2 || len(args) > 3 {
		h.sendError(ctx, b, chatID, "❌ Формат: /free <doctorId> <locationId> [YYYY-MM-DD]")
		return
	}
	date := h.clock.Now().Format(model.DateLayout)
	if len(args) == 3 {
		date = args[2]
	}

	points, err := h.availability.AvailableTimes(ctx, args[0], args[1], date)
	if err != nil {
		h.sendError(ctx, b, chatID, userMessage(err))
		return
	}
	if len(points) == 0 {
		h.sendMessage(ctx, b, chatID, fmt.Sprintf("📭 На %s свободного времени нет", date))
		return
	}

	h.sendMessage(ctx, b, chatID, fmt.Sprintf("🗓 %s · %s · %s\n\n%s", args[0], args[1], date, FormatTimePoints(points)))
}

// HandleDay обрабатывает команду /day
func (h *Handlers) HandleDay(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !h.requireAdmin(ctx, b, update) {
		return
	}
	chatID := update.Message.Chat.ID

	date := h.clock.Now().Format(model.DateLayout)
	if args := commandArgs(update.Message.Text); len(args) > 0 {
		date = args[0]
	}

	list, err := h.appointments.ListByDate(ctx, date)
	if err != nil {
		h.sendError(ctx, b, chatID, userMessage(err))
		return
	}
	if len(list) == 0 {
		h.sendMessage(ctx, b, chatID, fmt.Sprintf("📭 На %s записей нет", date))
		return
	}

	lines := make([]string, 0, len(list))
	for _, a := range list {
		lines = append(lines, FormatAppointment(a))
	}
	h.sendMessage(ctx, b, chatID, fmt.Sprintf("📋 Записи на %s (%d):\n\n%s", date, len(list), strings.Join(lines, "\n")))
}
