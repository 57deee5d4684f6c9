package records

import "time"

// PatientRow is the storage shape of a patient, shared by the Postgres
// table, the local store blobs and the hosted API wire format.
type PatientRow struct {
	ID                string     `json:"id,omitempty"`
	Name              string     `json:"name" validate:"required,max=200"`
	DOB               *string    `json:"dob"`
	ContactInfo       *string    `json:"contact_info"`
	Allergies         *string    `json:"allergies"`
	ChronicConditions *string    `json:"chronic_conditions"`
	Tags              []string   `json:"tags"`
	UserID            string     `json:"user_id,omitempty"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// PatientPatch is a partial patient row. Only non-nil fields are written.
type PatientPatch struct {
	Name              *string   `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	DOB               *string   `json:"dob,omitempty"`
	ContactInfo       *string   `json:"contact_info,omitempty"`
	Allergies         *string   `json:"allergies,omitempty"`
	ChronicConditions *string   `json:"chronic_conditions,omitempty"`
	Tags              *[]string `json:"tags,omitempty"`
}

// NoteRow is the storage shape of a note.
type NoteRow struct {
	ID           string     `json:"id,omitempty"`
	PatientID    string     `json:"patient_id" validate:"required"`
	TemplateType string     `json:"template_type" validate:"required,oneof=SOAP H&P Follow-up Free"`
	Content      *string    `json:"content"`
	Tags         []string   `json:"tags"`
	UserID       string     `json:"user_id,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

type NotePatch struct {
	TemplateType *string   `json:"template_type,omitempty" validate:"omitempty,oneof=SOAP H&P Follow-up Free"`
	Content      *string   `json:"content,omitempty"`
	Tags         *[]string `json:"tags,omitempty"`
}

// Column is one assignment of a partial update, in storage naming.
type Column struct {
	Name  string
	Value any
}

// Columns lists the assignments carried by the patch in a stable order.
func (p PatientPatch) Columns() []Column {
	var cols []Column
	if p.Name != nil {
		cols = append(cols, Column{"name", *p.Name})
	}
	if p.DOB != nil {
		cols = append(cols, Column{"dob", *p.DOB})
	}
	if p.ContactInfo != nil {
		cols = append(cols, Column{"contact_info", *p.ContactInfo})
	}
	if p.Allergies != nil {
		cols = append(cols, Column{"allergies", *p.Allergies})
	}
	if p.ChronicConditions != nil {
		cols = append(cols, Column{"chronic_conditions", *p.ChronicConditions})
	}
	if p.Tags != nil {
		cols = append(cols, Column{"tags", nonNilTags(*p.Tags)})
	}
	return cols
}

// Apply writes the patch onto row.
func (p PatientPatch) Apply(row *PatientRow) {
	if p.Name != nil {
		row.Name = *p.Name
	}
	if p.DOB != nil {
		row.DOB = Ptr(*p.DOB)
	}
	if p.ContactInfo != nil {
		row.ContactInfo = Ptr(*p.ContactInfo)
	}
	if p.Allergies != nil {
		row.Allergies = Ptr(*p.Allergies)
	}
	if p.ChronicConditions != nil {
		row.ChronicConditions = Ptr(*p.ChronicConditions)
	}
	if p.Tags != nil {
		row.Tags = nonNilTags(*p.Tags)
	}
}

func (p NotePatch) Columns() []Column {
	var cols []Column
	if p.TemplateType != nil {
		cols = append(cols, Column{"template_type", *p.TemplateType})
	}
	if p.Content != nil {
		cols = append(cols, Column{"content", *p.Content})
	}
	if p.Tags != nil {
		cols = append(cols, Column{"tags", nonNilTags(*p.Tags)})
	}
	return cols
}

func (p NotePatch) Apply(row *NoteRow) {
	if p.TemplateType != nil {
		row.TemplateType = *p.TemplateType
	}
	if p.Content != nil {
		row.Content = Ptr(*p.Content)
	}
	if p.Tags != nil {
		row.Tags = nonNilTags(*p.Tags)
	}
}

func nonNilTags(tags []string) []string {
	return append([]string{}, tags...)
}
