package reminder

import (
	"fmt"
	"sort"
	"time"
)

// TimeOfDay is a wall-clock HH:MM
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var hour, minute int
	var rest string
	n, _ := fmt.Sscanf(s, "%d:%d%s", &hour, &minute, &rest)
	if n != 2 || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time format: %q (expected HH:MM)", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// NextOccurrence returns the next instant at t after now: today if the time
// has not been reached yet, otherwise tomorrow. It is computed from the wall
// clock of now's location every time, so clock changes apply on the next arm.
func (t TimeOfDay) NextOccurrence(now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, now.Location())
	if now.Before(today) {
		return today
	}
	return today.AddDate(0, 0, 1)
}

// Fire is an upcoming reminder
type Fire struct {
	Time string
	At   time.Time
}

// NextFires returns the next occurrence of every configured time, earliest
// first
func NextFires(times []string, now time.Time) ([]Fire, error) {
	fires := make([]Fire, 0, len(times))
	for _, raw := range times {
		tod, err := ParseTimeOfDay(raw)
		if err != nil {
			return nil, err
		}
		fires = append(fires, Fire{Time: tod.String(), At: tod.NextOccurrence(now)})
	}
	sort.Slice(fires, func(i, j int) bool { return fires[i].At.Before(fires[j].At) })
	return fires, nil
}

// DaysUntilSunday counts the days left in the week. Sunday itself is 0.
func DaysUntilSunday(t time.Time) int {
	return (7 - int(t.Weekday())) % 7
}

// WeekStart returns Monday 00:00 of the week containing t. Weeks end on Sunday.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -offset)
}

// Urgency grades a task reminder
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Notification is what the scheduler hands to the notifier
type Notification struct {
	Category           Category
	Title              string
	Body               string
	Tag                string
	Urgency            Urgency
	Vibrate            []int
	RequireInteraction bool
}

// TaskReminder builds the weekly task reminder. It fires only with pending
// tasks and two, one or zero days left in the week; urgency rises as the
// week runs out.
func TaskReminder(pending, daysLeft int) (Notification, bool) {
	if pending <= 0 || daysLeft < 0 || daysLeft > 2 {
		return Notification{}, false
	}

	n := Notification{
		Category: CategoryTaskReminder,
		Title:    "📋 Tarefas da semana pendentes",
		Tag:      "task-reminder",
	}

	tasks := "tarefa pendente"
	if pending > 1 {
		tasks = "tarefas pendentes"
	}

	switch daysLeft {
	case 2:
		n.Urgency = UrgencyLow
		n.Vibrate = []int{200}
		n.Body = fmt.Sprintf("Você tem %d %s. A semana termina em 2 dias.", pending, tasks)
	case 1:
		n.Urgency = UrgencyMedium
		n.Vibrate = []int{200, 100, 200}
		n.Body = fmt.Sprintf("Você tem %d %s. A semana termina amanhã.", pending, tasks)
	case 0:
		n.Urgency = UrgencyHigh
		n.Vibrate = []int{300, 100, 300, 100, 300}
		n.RequireInteraction = true
		n.Title = "⚠️ Último dia para as tarefas da semana"
		n.Body = fmt.Sprintf("Você tem %d %s. A semana termina hoje!", pending, tasks)
	}
	return n, true
}

// DailyReminder builds the daily log reminder for a configured time
func DailyReminder(at string) Notification {
	return Notification{
		Category: CategoryDailyReminder,
		Title:    "🌱 Hora do registro diário",
		Body:     "Registre as leituras de temperatura, umidade e PPFD das estufas.",
		Tag:      "daily-reminder-" + at,
		Urgency:  UrgencyLow,
		Vibrate:  []int{200, 100, 200},
	}
}
