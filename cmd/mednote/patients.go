package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mednote/mednote/internal/coordinator"
	"github.com/mednote/mednote/internal/domain/records"
)

func patientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "patients",
		Aliases: []string{"patient", "p"},
		Short:   "List and manage patients",
	}
	cmd.AddCommand(
		patientsListCmd(),
		patientsShowCmd(),
		patientsAddCmd(),
		patientsEditCmd(),
		patientsTagCmd(),
		patientsDeleteCmd(),
		patientsWhatsAppCmd(),
	)
	return cmd
}

// selectPatient selects id and returns it, turning the non-selected
// outcomes into errors.
func selectPatient(s *session, id string) (*records.Patient, error) {
	switch out := s.coord.SelectPatient(s.ctx, id); out {
	case coordinator.Selected:
		return s.coord.Snapshot().SelectedPatient, nil
	case coordinator.NotFound:
		return nil, fmt.Errorf("patient %s not found", id)
	default:
		return nil, fmt.Errorf("select patient %s: %s", id, out)
	}
}

func patientsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List patients, newest first",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, _ []string, s *session) error {
			search, _ := cmd.Flags().GetString("search")
			tag, _ := cmd.Flags().GetString("tag")

			if err := s.coord.FetchPatients(s.ctx); err != nil {
				return err
			}
			all := s.coord.Snapshot().Patients
			matches := records.FilterPatients(all, search, tag)

			out := cmd.OutOrStdout()
			th := newTheme(out)
			rows := make([][]string, len(matches))
			for i, p := range matches {
				rows[i] = []string{p.ID, p.Name, p.DOB, p.ChronicConditions, strings.Join(p.Tags, ", ")}
			}
			renderTable(out, []string{"ID", "Name", "DOB", "Conditions", "Tags"}, rows)
			fmt.Fprintf(out, "%d of %d patients\n", len(matches), len(all))
			if tags := records.AllTags(all); len(tags) > 0 {
				fmt.Fprintln(out, th.muted.Render("Tags: ")+renderTags(th, tags))
			}
			return nil
		}),
	}
	cmd.Flags().StringP("search", "s", "", "Match name or chronic conditions")
	cmd.Flags().StringP("tag", "t", "", "Only patients carrying this tag")
	return cmd
}

func patientsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a patient and their notes",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
			p, err := selectPatient(s, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printPatient(out, p)
			fmt.Fprintln(out)

			notes := s.coord.Snapshot().Notes
			rows := make([][]string, len(notes))
			for i, n := range notes {
				rows[i] = []string{n.ID, string(n.TemplateType), n.CreatedAt.Local().Format(timeLayout), preview(n.Content, 48)}
			}
			renderTable(out, []string{"Note", "Template", "Created", "Summary"}, rows)
			return nil
		}),
	}
}

func patientsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a patient",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, _ []string, s *session) error {
			var in records.PatientInput
			in.Name, _ = cmd.Flags().GetString("name")
			in.DOB, _ = cmd.Flags().GetString("dob")
			in.ContactInfo, _ = cmd.Flags().GetString("contact")
			in.Allergies, _ = cmd.Flags().GetString("allergies")
			in.ChronicConditions, _ = cmd.Flags().GetString("conditions")
			tags, _ := cmd.Flags().GetStringSlice("tag")
			in.Tags = records.NormalizeTags(tags)

			if strings.TrimSpace(in.Name) == "" {
				return errors.New("--name is required")
			}
			p, err := s.coord.AddPatient(s.ctx, in)
			if err != nil {
				return err
			}
			printPatient(cmd.OutOrStdout(), p)
			return nil
		}),
	}
	patientFlags(cmd)
	return cmd
}

func patientsEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change the given fields of a patient",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
			u, err := patientUpdateFromFlags(cmd)
			if err != nil {
				return err
			}
			if u.IsEmpty() {
				return errors.New("nothing to change")
			}
			p, err := s.coord.EditPatient(s.ctx, args[0], u)
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("patient %s not found", args[0])
			}
			printPatient(cmd.OutOrStdout(), p)
			return nil
		}),
	}
	patientFlags(cmd)
	return cmd
}

func patientFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Full name")
	cmd.Flags().String("dob", "", "Date of birth (YYYY-MM-DD)")
	cmd.Flags().String("contact", "", "Phone number or other contact details")
	cmd.Flags().String("allergies", "", "Known allergies")
	cmd.Flags().String("conditions", "", "Chronic conditions")
	cmd.Flags().StringSlice("tag", nil, "Tag (repeatable); on edit replaces all tags")
}

// patientUpdateFromFlags sets only the fields whose flags were given.
func patientUpdateFromFlags(cmd *cobra.Command) (records.PatientUpdate, error) {
	var u records.PatientUpdate
	str := func(flag string) *string {
		if !cmd.Flags().Changed(flag) {
			return nil
		}
		v, _ := cmd.Flags().GetString(flag)
		return &v
	}
	u.Name = str("name")
	u.DOB = str("dob")
	u.ContactInfo = str("contact")
	u.Allergies = str("allergies")
	u.ChronicConditions = str("conditions")
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return u, errors.New("--name cannot be empty")
	}
	if cmd.Flags().Changed("tag") {
		tags, _ := cmd.Flags().GetStringSlice("tag")
		u.Tags = records.Ptr(records.NormalizeTags(tags))
	}
	return u, nil
}

func patientsTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag ID",
		Short: "Add or remove patient tags",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
			add, _ := cmd.Flags().GetStringSlice("add")
			remove, _ := cmd.Flags().GetStringSlice("remove")
			if len(add) == 0 && len(remove) == 0 {
				return errors.New("give --add or --remove")
			}
			p, err := selectPatient(s, args[0])
			if err != nil {
				return err
			}
			tags := p.Tags
			for _, t := range add {
				tags = records.AddTag(tags, t)
			}
			for _, t := range remove {
				tags = records.RemoveTag(tags, t)
			}
			updated, err := s.coord.EditPatient(s.ctx, p.ID, records.PatientUpdate{Tags: &tags})
			if err != nil {
				return err
			}
			if updated == nil {
				return fmt.Errorf("patient %s not found", p.ID)
			}
			th := newTheme(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), renderTags(th, updated.Tags))
			return nil
		}),
	}
	cmd.Flags().StringSlice("add", nil, "Tag to add (repeatable)")
	cmd.Flags().StringSlice("remove", nil, "Tag to remove (repeatable)")
	return cmd
}

func patientsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a patient and all of their notes",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
			yes, _ := cmd.Flags().GetBool("yes")
			p, err := selectPatient(s, args[0])
			if err != nil {
				return err
			}
			notes := len(s.coord.Snapshot().Notes)
			desc := fmt.Sprintf("This also deletes %d note(s) and cannot be undone.", notes)
			if err := confirm(cmd, fmt.Sprintf("Delete %s?", p.Name), desc, yes); err != nil {
				return err
			}
			ok, err := s.coord.RemovePatient(s.ctx, p.ID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("patient %s not found", p.ID)
			}
			return nil
		}),
	}
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func patientsWhatsAppCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whatsapp ID",
		Short: "Print a WhatsApp chat link for the patient's contact number",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
			p, err := selectPatient(s, args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(p.ContactInfo) == "" {
				return fmt.Errorf("%s has no contact number", p.Name)
			}
			fmt.Fprintln(cmd.OutOrStdout(), records.WhatsAppURL(p.ContactInfo))
			return nil
		}),
	}
}
