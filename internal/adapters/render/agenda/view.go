package agenda

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now      time.Time
	Location *time.Location
	Offline  bool
}

func (o RenderOptions) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

func RenderWeek(week domain.WeekBucket[domain.Appointment], opts RenderOptions) (string, error) {
	return render(func(s styles) string {
		return renderWeek(week, opts, s, func(item domain.Appointment) string {
			return appointmentLine(item, opts, s)
		}, "no appointments")
	})
}

func RenderHomework(week domain.WeekBucket[domain.Homework], opts RenderOptions) (string, error) {
	return render(func(s styles) string {
		return renderWeek(week, opts, s, func(item domain.Homework) string {
			return homeworkLine(item, s)
		}, "no homework")
	})
}

func RenderGrades(state domain.GradeState, opts RenderOptions) (string, error) {
	return render(func(s styles) string {
		lines := []string{
			s.title.Render("Grades"),
			headerLine(fmt.Sprintf("grades: %d, fetched %s", len(state.Items), formatAge(state.FetchedAt, opts.Now)), opts, s),
		}
		if len(state.Items) == 0 {
			lines = append(lines, s.empty.Render("No grades available."))
			return lipgloss.JoinVertical(lipgloss.Left, lines...)
		}

		rows := make([]string, 0, len(state.Items))
		for _, grade := range state.Items {
			rows = append(rows, gradeLine(grade, opts, s))
		}
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))

		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	})
}

func RenderMessages(folder string, messages []domain.Message, opts RenderOptions) (string, error) {
	return render(func(s styles) string {
		unread := 0
		for _, message := range messages {
			if !message.Read {
				unread++
			}
		}

		lines := []string{
			s.title.Render("Messages: " + folder),
			headerLine(fmt.Sprintf("messages: %d, unread: %d", len(messages), unread), opts, s),
		}
		if len(messages) == 0 {
			lines = append(lines, s.empty.Render("No messages."))
			return lipgloss.JoinVertical(lipgloss.Left, lines...)
		}

		rows := make([]string, 0, len(messages))
		for _, message := range messages {
			rows = append(rows, messageLine(message, opts, s))
		}
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))

		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	})
}

// RenderCalls shows every call type of the freshness store with the share
// of its ttl that is left.
func RenderCalls(state domain.CallState, ttls map[string]time.Duration, opts RenderOptions) (string, error) {
	return render(func(s styles) string {
		names := state.Names()
		lines := []string{
			s.title.Render("Calls"),
			headerLine(fmt.Sprintf("call types: %d", len(names)), opts, s),
		}
		if len(names) == 0 {
			lines = append(lines, s.empty.Render("No calls recorded."))
			return lipgloss.JoinVertical(lipgloss.Left, lines...)
		}

		rows := make([]string, 0, len(names))
		for _, name := range names {
			bucket, _ := state.Bucket(name)
			rows = append(rows, callLine(bucket, ttls[name], opts, s))
		}
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))

		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	})
}

func headerLine(text string, opts RenderOptions, s styles) string {
	line := s.header.Render(text)
	if opts.Offline {
		line += " " + s.warning.Render("[offline]")
	}
	return line
}

func renderWeek[T domain.WeekItem[T]](week domain.WeekBucket[T], opts RenderOptions, s styles, line func(T) string, emptyText string) string {
	loc := opts.location()
	first := week.Days[0].Date.In(loc)
	last := week.Days[6].Date.In(loc)

	lines := []string{
		s.title.Render(fmt.Sprintf("Week %s", week.Period)),
		headerLine(fmt.Sprintf("%s - %s", first.Format("Mon 02 Jan"), last.Format("Mon 02 Jan 2006")), opts, s),
	}

	for _, day := range week.Days {
		parts := []string{s.day.Render(day.Date.In(loc).Format("Monday 02 Jan"))}
		if len(day.Items) == 0 {
			parts = append(parts, s.empty.Render("  "+emptyText))
		}
		for _, item := range day.Items {
			parts = append(parts, "  "+line(item))
		}
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, parts...)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func appointmentLine(item domain.Appointment, opts RenderOptions, s styles) string {
	loc := opts.location()

	span := "all day    "
	if !item.AllDay {
		span = fmt.Sprintf("%s-%s", item.Start.In(loc).Format("15:04"), item.End.In(loc).Format("15:04"))
	}

	parts := []string{s.time.Render(span)}
	if subjects := strings.Join(item.Subjects, ","); subjects != "" {
		parts = append(parts, s.subject.Render(subjects))
	}

	description := item.Description
	if item.Location != "" {
		description += " @ " + item.Location
	}
	if item.Cancelled {
		parts = append(parts, s.cancelled.Render(description), s.warning.Render("[cancelled]"))
	} else {
		parts = append(parts, s.detail.Render(description))
	}

	if item.Info != domain.InfoTypeNone {
		parts = append(parts, s.info.Render("["+string(item.Info)+"]"))
	}

	return strings.Join(parts, " ")
}

func homeworkLine(item domain.Homework, s styles) string {
	mark := "[ ]"
	style := s.detail
	if item.Completed {
		mark = "[x]"
		style = s.done
	}

	return strings.Join([]string{
		mark,
		s.subject.Render(item.Subject),
		style.Render(item.Description),
		s.header.Render("(" + item.ID + ")"),
	}, " ")
}

func gradeLine(grade domain.Grade, opts RenderOptions, s styles) string {
	parts := []string{
		s.subject.Render(fmt.Sprintf("%-6s", grade.Subject)),
		s.info.Render(fmt.Sprintf("%5s", grade.Value)),
		s.time.Render(fmt.Sprintf("x%g", grade.Weight)),
		s.detail.Render(grade.Description),
	}
	if !grade.EnteredAt.IsZero() {
		parts = append(parts, s.header.Render(grade.EnteredAt.In(opts.location()).Format("02 Jan")))
	}
	if !grade.Counts {
		parts = append(parts, s.empty.Render("(not counted)"))
	}

	return strings.Join(parts, " ")
}

func messageLine(message domain.Message, opts RenderOptions, s styles) string {
	mark := " "
	subject := s.detail.Render(message.Subject)
	if !message.Read {
		mark = "*"
		subject = s.unread.Render(message.Subject)
	}

	parts := []string{
		mark,
		s.time.Render(message.SentAt.In(opts.location()).Format("02 Jan 15:04")),
		s.subject.Render(message.Sender),
		subject,
	}
	if message.HasAttachments {
		parts = append(parts, s.header.Render("[attachment]"))
	}
	parts = append(parts, s.header.Render("("+message.ID+")"))

	return strings.Join(parts, " ")
}

func callLine(bucket domain.CallTypeBucket, ttl time.Duration, opts RenderOptions, s styles) string {
	label := s.subject.Render(fmt.Sprintf("%-12s", bucket.Name))
	synced := s.detail.Render("synced " + formatAge(bucket.LastSyncedAt, opts.Now))
	count := s.header.Render(fmt.Sprintf("%d signature(s)", len(bucket.Records)))

	if ttl <= 0 || opts.Now.IsZero() || bucket.LastSyncedAt.IsZero() {
		return strings.Join([]string{label, synced, count}, " ")
	}

	left := freshPercent(bucket.LastSyncedAt, ttl, opts.Now)
	percentStyle := lipgloss.NewStyle().Foreground(interpolateColor(left, 0, 100))
	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		label,
		" ",
		renderProgressBar(left, 16, s),
		" ",
		percentStyle.Render(fmt.Sprintf("%3.0f%% fresh", left)),
		" ",
		synced,
		" ",
		count,
	)
	if left == 0 {
		line += " " + s.warning.Render("[stale]")
	}

	return line
}

// freshPercent is the share of ttl still ahead of now, in percent.
func freshPercent(syncedAt time.Time, ttl time.Duration, now time.Time) float64 {
	age := now.Sub(syncedAt)
	return clampPercent(100 * (1 - age.Seconds()/ttl.Seconds()))
}

func renderProgressBar(percent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(percent) / 100))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func formatAge(at, now time.Time) string {
	if at.IsZero() {
		return "never"
	}
	if now.IsZero() {
		return at.Format(time.RFC3339)
	}

	age := now.Sub(at)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return plural(int(age/time.Minute), "minute") + " ago"
	case age < 24*time.Hour:
		return plural(int(age/time.Hour), "hour") + " ago"
	default:
		return plural(int(age/(24*time.Hour)), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp, faded at min and bright at max.
	baseColor := 240.0
	targetColor := 255.0

	return lipgloss.Color(fmt.Sprintf("%d", int(baseColor+(targetColor-baseColor)*normalized)))
}
