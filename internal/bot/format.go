package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"habit-planner/internal/model"
	"habit-planner/internal/service"
	"habit-planner/internal/streak"
)

const helpText = "ℹ️ <b>Команды</b>\n" +
	"• /newtask &lt;расписание&gt; [@ЧЧ:ММ] &lt;название&gt; — новая привычка\n" +
	"   расписание: daily, weekdays, weekly:1,3, monthly:1,15, yearly, every:3d / every:2w / every:1m\n" +
	"• /tasks — активные привычки с кнопками\n" +
	"• /done &lt;id&gt; — отметить выполнение\n" +
	"• /streak &lt;id&gt; — серия и статистика\n" +
	"• /freeze &lt;id&gt; [ГГГГ-ММ-ДД] — потратить заморозку (по умолчанию на вчера)\n" +
	"• /skip &lt;id&gt; — пропустить сегодня\n" +
	"• /delete &lt;id&gt; — убрать привычку в архив\n" +
	"• /today — что запланировано на сегодня\n" +
	"• /report — ежедневный отчёт\n" +
	"• /tz &lt;зона&gt; — часовой пояс, например Europe/Moscow"

var weekdayNames = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
	"вс": 0, "пн": 1, "вт": 2, "ср": 3, "чт": 4, "пт": 5, "сб": 6,
}

// parseNewTask reads "<schedule> [@HH:MM] <title>".
func parseNewTask(args string) (service.TaskInput, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return service.TaskInput{}, errors.New("Нужно расписание и название.")
	}
	freq, pattern, err := parseSchedule(fields[0])
	if err != nil {
		return service.TaskInput{}, err
	}
	input := service.TaskInput{Frequency: freq, Pattern: pattern}

	rest := fields[1:]
	if strings.HasPrefix(rest[0], "@") {
		input.ScheduledTime = strings.TrimPrefix(rest[0], "@")
		rest = rest[1:]
	}
	input.Title = strings.Join(rest, " ")
	if input.Title == "" {
		return service.TaskInput{}, errors.New("Нужно название.")
	}
	return input, nil
}

func parseSchedule(spec string) (model.Frequency, *model.RecurrencePattern, error) {
	name, arg, _ := strings.Cut(strings.ToLower(spec), ":")
	switch name {
	case "daily":
		return model.FrequencyDaily, nil, nil
	case "weekdays":
		return model.FrequencyDaily, &model.RecurrencePattern{WeekdaysOnly: true}, nil
	case "weekly":
		if arg == "" {
			return model.FrequencyWeekly, nil, nil
		}
		var days []int
		for _, part := range strings.Split(arg, ",") {
			if d, ok := weekdayNames[part]; ok {
				days = append(days, d)
				continue
			}
			d, err := strconv.Atoi(part)
			if err != nil {
				return "", nil, fmt.Errorf("Не понял день недели %q.", part)
			}
			days = append(days, d)
		}
		return model.FrequencyWeekly, &model.RecurrencePattern{DaysOfWeek: days}, nil
	case "monthly":
		if arg == "" {
			return model.FrequencyMonthly, nil, nil
		}
		days, err := parseInts(arg)
		if err != nil {
			return "", nil, fmt.Errorf("Не понял дни месяца %q.", arg)
		}
		return model.FrequencyMonthly, &model.RecurrencePattern{DaysOfMonth: days}, nil
	case "yearly":
		return model.FrequencyYearly, nil, nil
	case "every":
		if len(arg) < 2 {
			return "", nil, errors.New("Интервал задаётся так: every:3d, every:2w или every:1m.")
		}
		n, err := strconv.Atoi(arg[:len(arg)-1])
		if err != nil {
			return "", nil, fmt.Errorf("Интервал должен быть числом: %q.", arg)
		}
		var unit string
		switch arg[len(arg)-1] {
		case 'd':
			unit = model.UnitDays
		case 'w':
			unit = model.UnitWeeks
		case 'm':
			unit = model.UnitMonths
		default:
			return "", nil, errors.New("Единица интервала: d, w или m.")
		}
		return model.FrequencyCustom, &model.RecurrencePattern{Interval: n, Unit: unit}, nil
	default:
		return "", nil, fmt.Errorf("Неизвестное расписание %q.", spec)
	}
}

func parseInts(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseTaskID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func describeFrequency(task model.Task) string {
	p := task.Pattern
	switch task.Frequency {
	case model.FrequencyDaily:
		if p != nil && p.WeekdaysOnly {
			return "по будням"
		}
		return "каждый день"
	case model.FrequencyWeekly:
		if p != nil && len(p.DaysOfWeek) > 0 {
			return "по дням недели " + joinInts(p.DaysOfWeek)
		}
		return "раз в неделю"
	case model.FrequencyMonthly:
		if p != nil && len(p.DaysOfMonth) > 0 {
			return "по числам " + joinInts(p.DaysOfMonth)
		}
		return "раз в месяц"
	case model.FrequencyYearly:
		return "раз в год"
	case model.FrequencyCustom:
		if p != nil {
			return fmt.Sprintf("каждые %d %s", p.Interval, p.Unit)
		}
	}
	return string(task.Frequency)
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, ",")
}

func formatTask(task model.Task, current, longest int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("♻️ <b>#%d</b> %s\n", task.ID, escape(normalizeTitle(task.Title))))
	b.WriteString(fmt.Sprintf("   🔄 %s", describeFrequency(task)))
	if task.ScheduledTime != "" {
		b.WriteString(fmt.Sprintf(" в %s", task.ScheduledTime))
	}
	b.WriteString(fmt.Sprintf("\n   🔥 Серия: %d · рекорд %d\n", current, longest))
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	b.WriteByte('\n')
	return b.String()
}

func formatStreak(task model.Task, state streak.State, credits int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📈 <b>#%d</b> %s\n", task.ID, escape(normalizeTitle(task.Title))))
	b.WriteString(fmt.Sprintf("🔥 Текущая серия: %d\n", state.CurrentStreak))
	b.WriteString(fmt.Sprintf("🏅 Лучшая серия: %d\n", state.LongestStreak))
	b.WriteString(fmt.Sprintf("✅ Выполнений: %d (%.2f%%)\n", state.TotalCompletions, state.CompletionRate))
	if state.IsActiveToday {
		b.WriteString("🟢 Сегодня уже выполнено\n")
	}
	if state.MissedDays > 0 {
		b.WriteString(fmt.Sprintf("⚠️ Пропущено интервалов: %d\n", state.MissedDays))
	}
	b.WriteString(fmt.Sprintf("❄️ Заморозок: %d", credits))
	return b.String()
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
