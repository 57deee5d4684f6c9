package records

import (
	"time"
)

// TemplateType is the fixed note structure a Note was created from.
type TemplateType string

const (
	TemplateSOAP     TemplateType = "SOAP"
	TemplateHP       TemplateType = "H&P"
	TemplateFollowUp TemplateType = "Follow-up"
	TemplateFree     TemplateType = "Free"
)

// TemplateTypes lists every valid TemplateType in display order.
var TemplateTypes = []TemplateType{TemplateSOAP, TemplateHP, TemplateFollowUp, TemplateFree}

func (t TemplateType) Valid() bool {
	switch t {
	case TemplateSOAP, TemplateHP, TemplateFollowUp, TemplateFree:
		return true
	}
	return false
}

// Patient is the canonical in-memory patient shape.
type Patient struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	DOB               string    `json:"dob"`
	ContactInfo       string    `json:"contactInfo"`
	Allergies         string    `json:"allergies"`
	ChronicConditions string    `json:"chronicConditions"`
	Tags              []string  `json:"tags"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers can hand out snapshots safely.
func (p *Patient) Clone() *Patient {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Tags = append([]string{}, p.Tags...)
	return &cp
}

// PatientInput carries the user-supplied fields of a new patient. The
// identifier and timestamps are assigned by the Record Store.
type PatientInput struct {
	Name              string
	DOB               string
	ContactInfo       string
	Allergies         string
	ChronicConditions string
	Tags              []string
}

// PatientUpdate is a partial update. Nil fields are left untouched.
type PatientUpdate struct {
	Name              *string
	DOB               *string
	ContactInfo       *string
	Allergies         *string
	ChronicConditions *string
	Tags              *[]string
}

func (u PatientUpdate) IsEmpty() bool {
	return u.Name == nil && u.DOB == nil && u.ContactInfo == nil &&
		u.Allergies == nil && u.ChronicConditions == nil && u.Tags == nil
}

// Note is the canonical in-memory clinical note shape.
type Note struct {
	ID           string       `json:"id"`
	PatientID    string       `json:"patientId"`
	TemplateType TemplateType `json:"templateType"`
	Content      string       `json:"content"`
	Tags         []string     `json:"tags"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Tags = append([]string{}, n.Tags...)
	return &cp
}

type NoteInput struct {
	PatientID    string
	TemplateType TemplateType
	Content      string
	Tags         []string
}

// NoteUpdate is a partial update. A note cannot be moved to another patient.
type NoteUpdate struct {
	TemplateType *TemplateType
	Content      *string
	Tags         *[]string
}

func (u NoteUpdate) IsEmpty() bool {
	return u.TemplateType == nil && u.Content == nil && u.Tags == nil
}

// NoteFilter scopes a note listing. An empty PatientID lists every note
// visible to the principal.
type NoteFilter struct {
	PatientID string
}

// Ptr is a small helper for building partial updates.
func Ptr[T any](v T) *T { return &v }
