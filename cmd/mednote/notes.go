package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mednote/mednote/internal/domain/records"
)

func notesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notes",
		Aliases: []string{"note", "n"},
		Short:   "List and manage clinical notes",
	}
	cmd.AddCommand(
		notesListCmd(),
		notesSearchCmd(),
		notesShowCmd(),
		notesAddCmd(),
		notesEditCmd(),
		notesDeleteCmd(),
		notesTemplatesCmd(),
	)
	return cmd
}

func parseTemplate(raw string) (records.TemplateType, error) {
	for _, t := range records.TemplateTypes {
		if strings.EqualFold(string(t), raw) {
			return t, nil
		}
	}
	names := make([]string, len(records.TemplateTypes))
	for i, t := range records.TemplateTypes {
		names[i] = string(t)
	}
	return "", fmt.Errorf("unknown template %q (want one of %s)", raw, strings.Join(names, ", "))
}

func noteRows(matches []records.NoteMatch) [][]string {
	rows := make([][]string, len(matches))
	for i, m := range matches {
		name := m.Note.PatientID
		if m.Patient != nil {
			name = m.Patient.Name
		}
		rows[i] = []string{
			m.Note.ID,
			name,
			string(m.Note.TemplateType),
			m.Note.CreatedAt.Local().Format(timeLayout),
			strings.Join(m.Note.Tags, ", "),
			preview(m.Note.Content, 40),
		}
	}
	return rows
}

var noteHeaders = []string{"ID", "Patient", "Template", "Created", "Tags", "Summary"}

func notesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes, newest first",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, _ []string, s *session) error {
			patientID, _ := cmd.Flags().GetString("patient")
			if err := s.coord.FetchPatients(s.ctx); err != nil {
				return err
			}
			if err := s.coord.FetchNotes(s.ctx, patientID); err != nil {
				return err
			}
			snap := s.coord.Snapshot()
			matches := records.SearchNotes(snap.Notes, records.IndexPatients(snap.Patients), "")
			renderTable(cmd.OutOrStdout(), noteHeaders, noteRows(matches))
			return nil
		}),
	}
	cmd.Flags().StringP("patient", "p", "", "Only notes for this patient ID")
	return cmd
}

func notesSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search TERM",
		Short: "Search note content, note tags and patient names",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
			if err := s.load(); err != nil {
				return err
			}
			snap := s.coord.Snapshot()
			matches := records.SearchNotes(snap.Notes, records.IndexPatients(snap.Patients), args[0])
			out := cmd.OutOrStdout()
			renderTable(out, noteHeaders, noteRows(matches))
			fmt.Fprintf(out, "%d of %d notes\n", len(matches), len(snap.Notes))
			return nil
		}),
	}
}

func notesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print a note in full",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
			if err := s.load(); err != nil {
				return err
			}
			for _, n := range s.coord.Snapshot().Notes {
				if n.ID == args[0] {
					p, _ := s.coord.Patient(n.PatientID)
					printNote(cmd.OutOrStdout(), n, p)
					return nil
				}
			}
			return fmt.Errorf("note %s not found", args[0])
		}),
	}
}

func notesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Write a note for a patient",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, _ []string, s *session) error {
			patientID, _ := cmd.Flags().GetString("patient")
			rawTemplate, _ := cmd.Flags().GetString("template")
			tags, _ := cmd.Flags().GetStringSlice("tag")
			if patientID == "" {
				return errors.New("--patient is required")
			}
			tpl, err := parseTemplate(rawTemplate)
			if err != nil {
				return err
			}
			content := records.DefaultContent(tpl)
			if cmd.Flags().Changed("content") {
				content, _ = cmd.Flags().GetString("content")
			}

			n, err := s.coord.AddNote(s.ctx, records.NoteInput{
				PatientID:    patientID,
				TemplateType: tpl,
				Content:      content,
				Tags:         records.NormalizeTags(tags),
			})
			if err != nil {
				return err
			}
			printNote(cmd.OutOrStdout(), n, nil)
			return nil
		}),
	}
	cmd.Flags().StringP("patient", "p", "", "Patient ID")
	cmd.Flags().String("template", string(records.TemplateSOAP), "SOAP, H&P, Follow-up or Free")
	cmd.Flags().String("content", "", "Note text (defaults to the template headings)")
	cmd.Flags().StringSlice("tag", nil, "Tag (repeatable)")
	return cmd
}

func notesEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change the given fields of a note",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
			var u records.NoteUpdate
			if cmd.Flags().Changed("template") {
				raw, _ := cmd.Flags().GetString("template")
				tpl, err := parseTemplate(raw)
				if err != nil {
					return err
				}
				u.TemplateType = &tpl
			}
			if cmd.Flags().Changed("content") {
				content, _ := cmd.Flags().GetString("content")
				u.Content = &content
			}
			if cmd.Flags().Changed("tag") {
				tags, _ := cmd.Flags().GetStringSlice("tag")
				u.Tags = records.Ptr(records.NormalizeTags(tags))
			}
			if u.IsEmpty() {
				return errors.New("nothing to change")
			}

			n, err := s.coord.EditNote(s.ctx, args[0], u)
			if err != nil {
				return err
			}
			if n == nil {
				return fmt.Errorf("note %s not found", args[0])
			}
			printNote(cmd.OutOrStdout(), n, nil)
			return nil
		}),
	}
	cmd.Flags().String("template", "", "SOAP, H&P, Follow-up or Free")
	cmd.Flags().String("content", "", "Note text")
	cmd.Flags().StringSlice("tag", nil, "Tag (repeatable); replaces all tags")
	return cmd
}

func notesDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if err := confirm(cmd, "Delete this note?", "This cannot be undone.", yes); err != nil {
				return err
			}
			ok, err := s.coord.RemoveNote(s.ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("note %s not found", args[0])
			}
			return nil
		}),
	}
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func notesTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "Describe the note templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			var rows [][]string
			for _, t := range records.TemplateTypes {
				tpl, _ := records.TemplateFor(t)
				for i, sec := range tpl.Sections {
					name := ""
					if i == 0 {
						name = string(t)
					}
					rows = append(rows, []string{name, sec.Name, sec.Description})
				}
			}
			renderTable(out, []string{"Template", "Section", "Purpose"}, rows)
			return nil
		},
	}
}
