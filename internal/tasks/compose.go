package tasks

import (
	"fmt"
	"strings"

	"github.com/mgmu/greenhouse/internal/plants"
)

// Notification is the text of a push reminder.
type Notification struct {
	Title string
	Body  string
}

// %[1]s is the task label, %[2]s the plant name.
var dueVariants = []string{
	"%[2]s: %[1]s is due today.",
	"Don't forget %[2]s today. Time for: %[1]s.",
	"A little care goes a long way. %[2]s is waiting for: %[1]s.",
	"Today is the day for %[2]s. Task: %[1]s.",
}

// %[3]s is how long the task is overdue.
var overdueVariants = []string{
	"%[2]s: %[1]s is %[3]s overdue.",
	"%[2]s has been waiting %[3]s for: %[1]s.",
	"Catch up on %[2]s: %[1]s was due %[3]s ago.",
}

// Compose writes the reminder for t. The cursor picks the wording so that
// consecutive reminders do not read the same, and pending is the number of
// tasks that need attention in total.
func Compose(t plants.PlantTask, pending, cursor int, today plants.Date) Notification {
	if cursor < 0 {
		cursor = 0
	}
	label := t.TaskLabel
	if label == "" {
		label = t.TaskKey
	}
	label = strings.ToLower(label)
	plant := t.PlantName
	if plant == "" {
		plant = "Your plant"
	}

	var n Notification
	if late := DaysOverdue(t, today); late > 0 {
		n.Title = fmt.Sprintf("%s is overdue", capitalize(label))
		n.Body = fmt.Sprintf(overdueVariants[cursor%len(overdueVariants)], label, plant, days(late))
	} else {
		n.Title = fmt.Sprintf("Time to %s", label)
		n.Body = fmt.Sprintf(dueVariants[cursor%len(dueVariants)], label, plant)
	}
	if more := pending - 1; more > 0 {
		if more == 1 {
			n.Body += " 1 more task needs attention."
		} else {
			n.Body += fmt.Sprintf(" %d more tasks need attention.", more)
		}
	}
	return n
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
