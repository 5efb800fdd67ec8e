package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"habit-planner/internal/calendar"
	"habit-planner/internal/model"
	"habit-planner/internal/recurrence"
	"habit-planner/internal/repository"
	"habit-planner/internal/reward"
	"habit-planner/internal/service"
)

const (
	cbDonePrefix   = "done:"
	cbFreezePrefix = "freeze:"
)

const (
	menuLabelToday  = "🔥 Сегодня"
	menuLabelTasks  = "📋 Привычки"
	menuLabelReport = "📊 Отчёт"
	menuLabelHelp   = "ℹ️ Помощь"
)

// Bot aggregates Telegram API with services.
type Bot struct {
	api         *tgbotapi.BotAPI
	userRepo    *repository.UserRepository
	taskSvc     *service.TaskService
	tracker     *service.TrackerService
	reminderSvc *service.ReminderService
	loc         *time.Location
}

func New(token string, userRepo *repository.UserRepository, taskSvc *service.TaskService, tracker *service.TrackerService, reminderSvc *service.ReminderService, loc *time.Location) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	if loc == nil {
		loc = time.UTC
	}
	return &Bot{
		api:         api,
		userRepo:    userRepo,
		taskSvc:     taskSvc,
		tracker:     tracker,
		reminderSvc: reminderSvc,
		loc:         loc,
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

// NotifyMilestone messages the owner of task about a reached milestone.
func (b *Bot) NotifyMilestone(ctx context.Context, task model.Task, event reward.Event) error {
	user, err := b.userRepo.FindByID(ctx, task.UserID)
	if err != nil {
		return fmt.Errorf("find owner of task %d: %w", task.ID, err)
	}
	text := fmt.Sprintf("🏆 <b>%d дней подряд!</b>\nПривычка «%s» держится. Так держать!",
		event.StreakLength, escape(normalizeTitle(task.Title)))
	return b.sendText(user.TelegramID, text)
}

// SendDailyReports sends every user their summary for today.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.reminderSvc.DailySummary(ctx, user, now)
		if err != nil {
			log.Printf("build summary for user %d: %v", user.TelegramID, err)
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			log.Printf("send summary to %d: %v", user.TelegramID, err)
		}
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
	}

	switch strings.TrimSpace(msg.Text) {
	case menuLabelToday:
		return b.handleCommand(ctx, msg, "today", "")
	case menuLabelTasks:
		return b.handleCommand(ctx, msg, "tasks", "")
	case menuLabelReport:
		return b.handleCommand(ctx, msg, "report", "")
	case menuLabelHelp:
		return b.handleCommand(ctx, msg, "help", "")
	}

	return b.sendText(msg.Chat.ID, "Я пока не понял сообщение. Набери /newtask, чтобы добавить привычку, или /help для списка команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, command, args string) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	chatID := msg.Chat.ID

	switch command {
	case "start":
		return b.handleStart(chatID, msg.From)
	case "help":
		return b.sendText(chatID, helpText)
	case "newtask":
		return b.handleNewTask(ctx, chatID, user, args)
	case "tasks":
		return b.sendTaskList(ctx, chatID, user)
	case "done":
		return b.withTaskID(chatID, args, "/done 3", func(taskID uint) error {
			return b.completeTask(ctx, chatID, user, taskID)
		})
	case "streak":
		return b.withTaskID(chatID, args, "/streak 3", func(taskID uint) error {
			return b.showStreak(ctx, chatID, user, taskID)
		})
	case "freeze":
		return b.handleFreeze(ctx, chatID, user, args)
	case "skip":
		return b.withTaskID(chatID, args, "/skip 3", func(taskID uint) error {
			return b.skipToday(ctx, chatID, user, taskID)
		})
	case "delete":
		return b.withTaskID(chatID, args, "/delete 3", func(taskID uint) error {
			return b.deactivateTask(ctx, chatID, user, taskID)
		})
	case "today":
		return b.handleToday(ctx, chatID, user)
	case "report":
		text, err := b.reminderSvc.DailySummary(ctx, *user, time.Now())
		if err != nil {
			return b.sendText(chatID, fmt.Sprintf("Не удалось сформировать отчёт: %s", escape(err.Error())))
		}
		return b.sendText(chatID, text)
	case "tz":
		return b.handleTimezone(ctx, chatID, user, args)
	default:
		return b.sendText(chatID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleStart(chatID int64, from *tgbotapi.User) error {
	name := strings.TrimSpace(from.FirstName)
	if name == "" {
		name = "друг"
	}
	text := fmt.Sprintf("👋 Привет, %s!\n<b>Я помогу держать привычки и не рвать серии.</b>\n\n%s", escape(name), helpText)
	return b.sendText(chatID, text)
}

func (b *Bot) handleNewTask(ctx context.Context, chatID int64, user *model.User, args string) error {
	input, err := parseNewTask(args)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("%s\nПример: <code>/newtask weekly:1,3 @07:30 Пробежка</code>", escape(err.Error())))
	}

	task, err := b.taskSvc.CreateTask(ctx, user, input)
	if err != nil {
		if errors.Is(err, recurrence.ErrInvalidPattern) {
			return b.sendText(chatID, fmt.Sprintf("Некорректное расписание: %s", escape(err.Error())))
		}
		return b.sendText(chatID, fmt.Sprintf("Не удалось создать привычку: %s", escape(err.Error())))
	}

	log.Printf("[info] task created id=%d user=%d frequency=%s", task.ID, user.ID, task.Frequency)
	return b.sendText(chatID, fmt.Sprintf("🆕 Привычка <b>#%d</b> «%s» добавлена (%s).",
		task.ID, escape(normalizeTitle(task.Title)), describeFrequency(*task)))
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.taskSvc.ListActive(ctx, user)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось получить привычки: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "У тебя нет активных привычек. Добавь новую через /newtask.")
	}

	now := time.Now()
	var builder strings.Builder
	builder.WriteString("📋 <b>Привычки</b>\n")
	builder.WriteString("Нажми на кнопку, чтобы отметить выполнение или потратить заморозку.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		state, err := b.tracker.Streak(ctx, task.ID, now)
		if err != nil {
			log.Printf("streak for task %d: %v", task.ID, err)
		}
		builder.WriteString(formatTask(task, state.CurrentStreak, state.LongestStreak))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Title, 20)), fmt.Sprintf("%s%d", cbDonePrefix, task.ID)),
			tgbotapi.NewInlineKeyboardButtonData("❄️ Заморозка", fmt.Sprintf("%s%d", cbFreezePrefix, task.ID)),
		))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	user, err := b.ensureUser(ctx, cb.From)
	if err != nil {
		return err
	}
	chatID := cb.Message.Chat.ID

	switch {
	case strings.HasPrefix(cb.Data, cbDonePrefix):
		log.Printf("[info] callback done user=%d task=%s", cb.From.ID, strings.TrimPrefix(cb.Data, cbDonePrefix))
		taskID, err := parseTaskID(strings.TrimPrefix(cb.Data, cbDonePrefix))
		if err != nil {
			return nil
		}
		return b.completeTask(ctx, chatID, user, taskID)
	case strings.HasPrefix(cb.Data, cbFreezePrefix):
		log.Printf("[info] callback freeze user=%d task=%s", cb.From.ID, strings.TrimPrefix(cb.Data, cbFreezePrefix))
		taskID, err := parseTaskID(strings.TrimPrefix(cb.Data, cbFreezePrefix))
		if err != nil {
			return nil
		}
		yesterday := calendar.Today(time.Now(), user.Location(b.loc)).AddDays(-1)
		return b.freeze(ctx, chatID, user, taskID, yesterday)
	default:
		return nil
	}
}

func (b *Bot) completeTask(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, err := b.ownedTask(ctx, chatID, user, taskID)
	if task == nil {
		return err
	}

	result, err := b.tracker.CompleteTask(ctx, task.ID, time.Now(), task.SubtaskCount)
	if err != nil {
		if errors.Is(err, service.ErrTaskInactive) {
			return b.sendText(chatID, "Привычка в архиве.")
		}
		return b.sendText(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}

	log.Printf("[info] task completed id=%d user=%d streak=%d", task.ID, user.ID, result.After.CurrentStreak)
	text := fmt.Sprintf("✅ «%s» выполнено. 🔥 Серия: %d", escape(normalizeTitle(task.Title)), result.After.CurrentStreak)
	if result.CreditsEarned > 0 {
		text += fmt.Sprintf("\n❄️ +%d заморозка", result.CreditsEarned)
	}
	return b.sendText(chatID, text)
}

func (b *Bot) showStreak(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, err := b.ownedTask(ctx, chatID, user, taskID)
	if task == nil {
		return err
	}
	state, err := b.tracker.Streak(ctx, task.ID, time.Now())
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}
	credits, err := b.tracker.CreditBalance(ctx, task.ID)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}
	return b.sendText(chatID, formatStreak(*task, state, credits))
}

// handleFreeze spends a break credit on the given day, yesterday by default.
func (b *Bot) handleFreeze(ctx context.Context, chatID int64, user *model.User, args string) error {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return b.sendText(chatID, "Укажи ID привычки: /freeze 3 (или /freeze 3 2025-01-31)")
	}
	taskID, err := parseTaskID(fields[0])
	if err != nil {
		return b.sendText(chatID, "ID привычки должен быть числом.")
	}
	day := calendar.Today(time.Now(), user.Location(b.loc)).AddDays(-1)
	if len(fields) > 1 {
		day, err = calendar.Parse(fields[1])
		if err != nil {
			return b.sendText(chatID, "Не могу распознать дату. Используй формат <code>2025-11-30</code>.")
		}
	}
	return b.freeze(ctx, chatID, user, taskID, day)
}

func (b *Bot) freeze(ctx context.Context, chatID int64, user *model.User, taskID uint, day calendar.Date) error {
	task, err := b.ownedTask(ctx, chatID, user, taskID)
	if task == nil {
		return err
	}
	ok, err := b.tracker.UseBreakCredit(ctx, task.ID, day)
	switch {
	case errors.Is(err, service.ErrFutureDay):
		return b.sendText(chatID, "Заморозить можно только прошедший день.")
	case err != nil:
		return b.sendText(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	case !ok:
		return b.sendText(chatID, "Нет доступных заморозок, либо этот день уже прикрыт или выполнен.")
	}
	return b.sendText(chatID, fmt.Sprintf("❄️ День %s для «%s» заморожен, серия сохранена.", day, escape(normalizeTitle(task.Title))))
}

func (b *Bot) skipToday(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, err := b.ownedTask(ctx, chatID, user, taskID)
	if task == nil {
		return err
	}
	today := calendar.Today(time.Now(), user.Location(b.loc))
	if err := b.tracker.SkipInstance(ctx, task.ID, today); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(chatID, "На сегодня нечего пропускать.")
		}
		return b.sendText(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}
	return b.sendText(chatID, fmt.Sprintf("⏭️ «%s» пропущено на сегодня.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) deactivateTask(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, err := b.ownedTask(ctx, chatID, user, taskID)
	if task == nil {
		return err
	}
	if err := b.taskSvc.DeactivateTask(ctx, user, task.ID); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось архивировать привычку: %s", escape(err.Error())))
	}
	return b.sendText(chatID, fmt.Sprintf("🗑 Привычка «%s» перенесена в архив. История сохранена.", escape(normalizeTitle(task.Title))))
}

// handleToday shows today's summary and any milestones not yet seen.
func (b *Bot) handleToday(ctx context.Context, chatID int64, user *model.User) error {
	text, err := b.reminderSvc.DailySummary(ctx, *user, time.Now())
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось сформировать список: %s", escape(err.Error())))
	}

	milestones, err := b.tracker.UnseenMilestones(ctx, user.ID)
	if err != nil {
		log.Printf("unseen milestones for user %d: %v", user.ID, err)
	}
	if len(milestones) > 0 {
		ids := make([]uint, 0, len(milestones))
		var sb strings.Builder
		sb.WriteString("\n\n🏆 <b>Новые достижения</b>\n")
		for _, m := range milestones {
			ids = append(ids, m.ID)
			sb.WriteString(fmt.Sprintf("• #%d: %d дней подряд\n", m.TaskID, m.StreakLength))
		}
		text += strings.TrimRight(sb.String(), "\n")
		if err := b.tracker.MarkMilestonesSeen(ctx, ids); err != nil {
			log.Printf("mark milestones seen: %v", err)
		}
	}
	return b.sendText(chatID, text)
}

func (b *Bot) handleTimezone(ctx context.Context, chatID int64, user *model.User, args string) error {
	if args == "" {
		return b.sendText(chatID, fmt.Sprintf("Текущий часовой пояс: %s. Укажи новый, например: /tz Europe/Moscow", user.Location(b.loc)))
	}
	if _, err := time.LoadLocation(args); err != nil {
		return b.sendText(chatID, "Не знаю такого часового пояса. Пример: Europe/Moscow")
	}
	if err := b.userRepo.SetTimezone(ctx, user.ID, args); err != nil {
		return err
	}
	return b.sendText(chatID, fmt.Sprintf("Часовой пояс обновлён: %s", escape(args)))
}

// ownedTask loads a task of user. On failure it replies to the chat and
// returns a nil task.
func (b *Bot) ownedTask(ctx context.Context, chatID int64, user *model.User, taskID uint) (*model.Task, error) {
	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, b.sendText(chatID, "Привычка не найдена.")
		}
		return nil, b.sendText(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}
	return task, nil
}

func (b *Bot) withTaskID(chatID int64, args, example string, fn func(taskID uint) error) error {
	if args == "" {
		return b.sendText(chatID, fmt.Sprintf("Укажи ID привычки: %s", example))
	}
	taskID, err := parseTaskID(args)
	if err != nil {
		return b.sendText(chatID, "ID привычки должен быть числом.")
	}
	return fn(taskID)
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelToday),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelReport),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func escape(s string) string {
	return html.EscapeString(s)
}
