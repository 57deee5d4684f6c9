package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/mednote/mednote/internal/domain/records"
	"github.com/mednote/mednote/internal/platform/notification"
)

const timeLayout = "2006-01-02 15:04"

// theme holds styles bound to one writer so colour is dropped when that
// writer is not a terminal.
type theme struct {
	heading lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	tag     lipgloss.Style
	border  lipgloss.Style
}

func newTheme(w io.Writer) theme {
	r := lipgloss.NewRenderer(w)
	return theme{
		heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		label:   r.NewStyle().Bold(true).Width(20),
		muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		success: r.NewStyle().Foreground(lipgloss.Color("10")),
		failure: r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		tag:     r.NewStyle().Foreground(lipgloss.Color("14")),
		border:  r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// toastPrinter renders notifications as one-line toasts.
func toastPrinter(w io.Writer) notification.Notifier {
	th := newTheme(w)
	return notification.NotifierFunc(func(_ context.Context, n notification.Notification) {
		style, mark := th.success, "✓"
		switch n.Kind {
		case notification.KindError:
			style, mark = th.failure, "✗"
		case notification.KindNotFound:
			style, mark = th.warning, "?"
		}
		fmt.Fprintln(w, style.Render(mark+" "+n.Message))
	})
}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	th := newTheme(w)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(th.border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return th.heading.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	fmt.Fprintln(w, t.Render())
}

func renderTags(th theme, tags []string) string {
	if len(tags) == 0 {
		return th.muted.Render("-")
	}
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = th.tag.Render("#" + t)
	}
	return strings.Join(parts, " ")
}

func field(w io.Writer, th theme, name, value string) {
	if value == "" {
		value = th.muted.Render("-")
	}
	fmt.Fprintln(w, th.label.Render(name)+value)
}

func printPatient(w io.Writer, p *records.Patient) {
	th := newTheme(w)
	fmt.Fprintln(w, th.heading.Render(p.Name))
	field(w, th, "ID", p.ID)
	field(w, th, "Date of birth", p.DOB)
	field(w, th, "Contact", p.ContactInfo)
	field(w, th, "Allergies", p.Allergies)
	field(w, th, "Chronic conditions", p.ChronicConditions)
	field(w, th, "Tags", renderTags(th, p.Tags))
	field(w, th, "Updated", p.UpdatedAt.Local().Format(timeLayout))
}

func printNote(w io.Writer, n *records.Note, patient *records.Patient) {
	th := newTheme(w)
	who := n.PatientID
	if patient != nil {
		who = patient.Name
	}
	fmt.Fprintln(w, th.heading.Render(fmt.Sprintf("%s note for %s", n.TemplateType, who)))
	field(w, th, "ID", n.ID)
	field(w, th, "Created", n.CreatedAt.Local().Format(timeLayout))
	field(w, th, "Updated", n.UpdatedAt.Local().Format(timeLayout))
	field(w, th, "Tags", renderTags(th, n.Tags))
	fmt.Fprintln(w)
	fmt.Fprintln(w, n.Content)
}

func preview(content string, max int) string {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(content), "\n", 2)[0])
	r := []rune(line)
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return line
}

var errNotConfirmed = errors.New("not confirmed; pass --yes to skip the prompt")

// confirm asks a yes/no question unless yes is already set. Without a
// terminal there is nobody to ask, so it refuses.
func confirm(cmd *cobra.Command, title, description string, yes bool) error {
	if yes {
		return nil
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return errNotConfirmed
	}
	ok := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Delete").
			Negative("Cancel").
			Value(&ok),
	)).WithTheme(huh.ThemeBase())
	err := form.RunWithContext(cmd.Context())
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		return errNotConfirmed
	}
	return nil
}
