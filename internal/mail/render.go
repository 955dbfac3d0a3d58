package mail

import (
	"fmt"
	"strings"
	"time"

	"taskpulse/internal/model"
)

// renderReminder builds the HTML and plain-text bodies for one task
// reminder. kind picks the overdue or upcoming wording.
func renderReminder(task model.Task, kind Kind, now time.Time) (subject, html, text string) {
	due := "no due date"
	if task.DueAt != nil {
		due = task.DueAt.UTC().Format("Jan 2, 2006 at 3:04 PM") + " UTC"
	}

	var lead string
	if kind == KindOverdue {
		subject = "Overdue: " + task.Name
		lead = "This task is past its due date."
	} else {
		subject = "Reminder: " + task.Name
		lead = "This task is coming up."
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	b.WriteString("<style>\n")
	b.WriteString("body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }\n")
	b.WriteString(".task { padding: 16px; border-left: 4px solid #e67e22; background: #fdf6f0; }\n")
	b.WriteString(".task.overdue { border-left-color: #c0392b; background: #fdf0ef; }\n")
	b.WriteString(".name { font-size: 1.2em; font-weight: 600; }\n")
	b.WriteString(".meta { color: #7f8c8d; font-size: 0.9em; margin-top: 8px; }\n")
	b.WriteString(".footer { margin-top: 24px; font-size: 0.85em; color: #7f8c8d; }\n")
	b.WriteString("</style>\n</head>\n<body>\n")

	b.WriteString(fmt.Sprintf("<p>%s</p>\n", escapeHTML(lead)))
	cls := "task"
	if kind == KindOverdue {
		cls = "task overdue"
	}
	b.WriteString(fmt.Sprintf("<div class=\"%s\">\n", cls))
	b.WriteString(fmt.Sprintf("<div class=\"name\">%s</div>\n", escapeHTML(task.Name)))
	b.WriteString("<div class=\"meta\">\n")
	b.WriteString(fmt.Sprintf("Due %s &bull; priority %s\n", escapeHTML(due), escapeHTML(string(task.Priority))))
	if task.ProjectName != "" {
		b.WriteString(fmt.Sprintf("&bull; project %s\n", escapeHTML(task.ProjectName)))
	}
	b.WriteString("</div>\n</div>\n")
	b.WriteString(fmt.Sprintf("<div class=\"footer\">Sent %s UTC</div>\n", now.UTC().Format("Jan 2, 2006 at 3:04 PM")))
	b.WriteString("</body>\n</html>\n")
	html = b.String()

	var t strings.Builder
	t.WriteString(lead + "\n\n")
	t.WriteString(task.Name + "\n")
	t.WriteString("Due: " + due + "\n")
	t.WriteString("Priority: " + string(task.Priority) + "\n")
	if task.ProjectName != "" {
		t.WriteString("Project: " + task.ProjectName + "\n")
	}
	text = t.String()

	return subject, html, text
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}
