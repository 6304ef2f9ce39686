package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Each builder below turns a Context into one section. Builders are pure:
// they read nothing but their argument.

func rulesSection(c Context) Section {
	return Section{Name: "rules", Tag: "critical_rules", Content: bullets(c.text().rules)}
}

func identitySection(c Context) Section {
	name := c.User.DisplayName
	if name == "" {
		name = "the user"
		if !c.english() {
			name = "el usuario"
		}
	}
	return Section{Name: "identity", Content: fmt.Sprintf(c.text().identity, name)}
}

func contextSection(c Context) Section {
	t := c.text()
	var b strings.Builder
	fmt.Fprintf(&b, t.contextUser, c.User.DisplayName, c.Temporal.Timezone)

	switch {
	case c.StatsUnavailable:
		b.WriteString("\n" + t.statsUnavailable)
	case c.Stats != nil:
		s, l := c.Stats, t.statsLabels
		projects := t.noProjects
		if len(s.ActiveProjectNames) > 0 {
			projects = strings.Join(s.ActiveProjectNames, ", ")
		}
		b.WriteString("\n" + t.statsHeader + "\n")
		b.WriteString(bullets([]string{
			fmt.Sprintf("%s: %d", l.open, s.OpenTasks),
			fmt.Sprintf("%s: %d", l.completedToday, s.CompletedToday),
			fmt.Sprintf("%s: %d", l.dueToday, s.DueToday),
			fmt.Sprintf("%s: %d", l.dueTomorrow, s.DueTomorrow),
			fmt.Sprintf("%s: %d", l.overdue, s.Overdue),
			fmt.Sprintf("%s: %d", l.eventsToday, s.EventsToday),
			fmt.Sprintf("%s: %d", l.eventsTomorrow, s.EventsTomorrow),
			fmt.Sprintf("%s: %d (%s)", l.projects, s.ActiveProjects, projects),
		}))
	}
	return Section{Name: "context", Tag: "user_context", Content: b.String()}
}

func toolsSection(c Context) Section {
	if len(c.Tools) == 0 {
		return Section{Name: "tools"}
	}
	t := c.text()
	lines := make([]string, len(c.Tools))
	for i, tool := range c.Tools {
		class := t.classLabels[tool.Class]
		if class == "" {
			class = tool.Class
		}
		lines[i] = fmt.Sprintf("%s (%s): %s", tool.Name, class, tool.Description)
	}
	return Section{Name: "tools", Tag: "tools", Content: t.toolsIntro + "\n" + bullets(lines)}
}

func datesSection(c Context) Section {
	t := c.text()
	tc := c.Temporal
	now := tc.Now
	tomorrow := now.AddDate(0, 0, 1)

	lines := []string{
		fmt.Sprintf(t.datesToday, tc.Formatted.DayOfWeek, tc.Formatted.Date, tc.Formatted.ISODate),
		fmt.Sprintf(t.datesTime, tc.Formatted.Time, tc.Timezone),
		fmt.Sprintf(t.datesTomorrow, tomorrow.Format(time.DateOnly)),
		fmt.Sprintf(t.datesRelative, referencePoints(now, c.english())),
		t.datesRule,
	}
	return Section{Name: "dates", Tag: "temporal_context", Content: strings.Join(lines, "\n")}
}

// referencePoints lists a few dates around now with their distance from it.
func referencePoints(now time.Time, english bool) string {
	daysToMonday := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	if daysToMonday == 0 {
		daysToMonday = 7
	}
	endOfMonth := time.Date(now.Year(), now.Month()+1, 0, now.Hour(), now.Minute(), 0, 0, now.Location())

	type point struct {
		en, es string
		at     time.Time
	}
	points := []point{
		{"yesterday", "ayer", now.AddDate(0, 0, -1)},
		{"next Monday", "el próximo lunes", now.AddDate(0, 0, daysToMonday)},
		{"end of month", "fin de mes", endOfMonth},
	}

	parts := make([]string, 0, len(points))
	for _, p := range points {
		if english {
			parts = append(parts, fmt.Sprintf("%s = %s (%s)", p.en, p.at.Format(time.DateOnly), humanize.RelTime(p.at, now, "ago", "from now")))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s = %s (%s)", p.es, p.at.Format(time.DateOnly), relativeDaysES(now, p.at)))
	}
	return strings.Join(parts, "; ")
}

func relativeDaysES(now, at time.Time) string {
	days := int(at.Sub(now).Round(24*time.Hour) / (24 * time.Hour))
	switch {
	case days == 0:
		return "hoy"
	case days == 1:
		return "dentro de 1 día"
	case days == -1:
		return "hace 1 día"
	case days > 0:
		return fmt.Sprintf("dentro de %d días", days)
	default:
		return fmt.Sprintf("hace %d días", -days)
	}
}

func conversationSection(c Context) Section {
	t := c.text()
	if strings.TrimSpace(c.ConversationSummary) == "" {
		return Section{Name: "conversation", Tag: "conversation", Content: t.newConversation}
	}
	return Section{
		Name:    "conversation",
		Tag:     "conversation",
		Content: fmt.Sprintf(t.conversationRef, c.ConversationSummary) + "\n" + t.historyRule,
	}
}

func formattingSection(c Context) Section {
	return Section{Name: "formatting", Tag: "formatting", Content: bullets(c.text().formatting)}
}

func guidelinesSection(c Context) Section {
	return Section{Name: "guidelines", Tag: "guidelines", Content: bullets(c.text().guidelines)}
}

func examplesSection(c Context) Section {
	userLabel, assistantLabel := "Usuario", "Asistente"
	if c.english() {
		userLabel, assistantLabel = "User", "Assistant"
	}
	var blocks []string
	for _, ex := range c.text().examples {
		blocks = append(blocks, fmt.Sprintf("%s: %s\n%s: %s", userLabel, ex.user, assistantLabel, ex.assistant))
	}
	return Section{Name: "examples", Tag: "examples", Content: strings.Join(blocks, "\n\n")}
}

func bullets(lines []string) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(l)
	}
	return b.String()
}
