package records

import "time"

// The functions in this file translate between storage rows and canonical
// entities. They are total: every well-formed row yields an entity with no
// nil strings or nil tag slices.

func PatientFromRow(r PatientRow) *Patient {
	return &Patient{
		ID:                r.ID,
		Name:              r.Name,
		DOB:               deref(r.DOB),
		ContactInfo:       deref(r.ContactInfo),
		Allergies:         deref(r.Allergies),
		ChronicConditions: deref(r.ChronicConditions),
		Tags:              nonNilTags(r.Tags),
		CreatedAt:         derefTime(r.CreatedAt),
		UpdatedAt:         derefTime(r.UpdatedAt),
	}
}

func PatientsFromRows(rows []PatientRow) []*Patient {
	out := make([]*Patient, len(rows))
	for i, r := range rows {
		out[i] = PatientFromRow(r)
	}
	return out
}

// PatientRowFromInput builds an insert payload. Server-assigned fields
// (id, owner, timestamps) are left empty.
func PatientRowFromInput(in PatientInput) PatientRow {
	return PatientRow{
		Name:              in.Name,
		DOB:               Ptr(in.DOB),
		ContactInfo:       Ptr(in.ContactInfo),
		Allergies:         Ptr(in.Allergies),
		ChronicConditions: Ptr(in.ChronicConditions),
		Tags:              nonNilTags(in.Tags),
	}
}

func PatientPatchFromUpdate(u PatientUpdate) PatientPatch {
	p := PatientPatch{
		Name:              copyPtr(u.Name),
		DOB:               copyPtr(u.DOB),
		ContactInfo:       copyPtr(u.ContactInfo),
		Allergies:         copyPtr(u.Allergies),
		ChronicConditions: copyPtr(u.ChronicConditions),
	}
	if u.Tags != nil {
		p.Tags = Ptr(nonNilTags(*u.Tags))
	}
	return p
}

func NoteFromRow(r NoteRow) *Note {
	return &Note{
		ID:           r.ID,
		PatientID:    r.PatientID,
		TemplateType: TemplateType(r.TemplateType),
		Content:      deref(r.Content),
		Tags:         nonNilTags(r.Tags),
		CreatedAt:    derefTime(r.CreatedAt),
		UpdatedAt:    derefTime(r.UpdatedAt),
	}
}

func NotesFromRows(rows []NoteRow) []*Note {
	out := make([]*Note, len(rows))
	for i, r := range rows {
		out[i] = NoteFromRow(r)
	}
	return out
}

func NoteRowFromInput(in NoteInput) NoteRow {
	return NoteRow{
		PatientID:    in.PatientID,
		TemplateType: string(in.TemplateType),
		Content:      Ptr(in.Content),
		Tags:         nonNilTags(in.Tags),
	}
}

func NotePatchFromUpdate(u NoteUpdate) NotePatch {
	p := NotePatch{Content: copyPtr(u.Content)}
	if u.TemplateType != nil {
		p.TemplateType = Ptr(string(*u.TemplateType))
	}
	if u.Tags != nil {
		p.Tags = Ptr(nonNilTags(*u.Tags))
	}
	return p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func copyPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return Ptr(*s)
}
