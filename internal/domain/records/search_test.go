package records

import (
	"reflect"
	"testing"
	"time"
)

func samplePatients() []*Patient {
	return []*Patient{
		{ID: "p1", Name: "John Smith", ChronicConditions: "Hypertension, Type 2 Diabetes", Tags: []string{"diabetes", "regular"}},
		{ID: "p2", Name: "Sarah Johnson", ChronicConditions: "Asthma", Tags: []string{"asthma"}},
		{ID: "p3", Name: "Robert Chen", ChronicConditions: "COPD", Tags: []string{"copd", "elderly"}},
	}
}

func ids(ps []*Patient) []string {
	out := []string{}
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func TestFilterPatients(t *testing.T) {
	ps := samplePatients()
	tests := []struct {
		name, term, tag string
		want            []string
	}{
		{"empty", "", "", []string{"p1", "p2", "p3"}},
		{"by name", "john", "", []string{"p1", "p2"}},
		{"by condition", "DIABETES", "", []string{"p1"}},
		{"by tag", "", "Elderly", []string{"p3"}},
		{"term and tag", "john", "asthma", []string{"p2"}},
		{"no match", "zzz", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(FilterPatients(ps, tt.term, tt.tag))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FilterPatients(%q, %q) = %v, want %v", tt.term, tt.tag, got, tt.want)
			}
		})
	}
}

func TestAllTags(t *testing.T) {
	got := AllTags(samplePatients())
	want := []string{"asthma", "copd", "diabetes", "elderly", "regular"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AllTags = %v, want %v", got, want)
	}
}

func TestSearchNotes(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	notes := []*Note{
		{ID: "n1", PatientID: "p1", Content: "Blood glucose high", Tags: []string{"medication-change"}, CreatedAt: base},
		{ID: "n2", PatientID: "p2", Content: "Wheezing at night", Tags: []string{"asthma"}, CreatedAt: base.Add(time.Hour)},
		{ID: "n3", PatientID: "gone", Content: "Orphan", CreatedAt: base.Add(2 * time.Hour)},
	}
	idx := IndexPatients(samplePatients())

	noteIDs := func(ms []NoteMatch) []string {
		out := []string{}
		for _, m := range ms {
			out = append(out, m.Note.ID)
		}
		return out
	}

	if got := noteIDs(SearchNotes(notes, idx, "")); !reflect.DeepEqual(got, []string{"n3", "n2", "n1"}) {
		t.Errorf("empty term should return all newest first, got %v", got)
	}
	if got := noteIDs(SearchNotes(notes, idx, "GLUCOSE")); !reflect.DeepEqual(got, []string{"n1"}) {
		t.Errorf("content match = %v", got)
	}
	if got := noteIDs(SearchNotes(notes, idx, "medication")); !reflect.DeepEqual(got, []string{"n1"}) {
		t.Errorf("tag match = %v", got)
	}
	if got := noteIDs(SearchNotes(notes, idx, "sarah")); !reflect.DeepEqual(got, []string{"n2"}) {
		t.Errorf("patient name match = %v", got)
	}

	m := SearchNotes(notes, idx, "orphan")
	if len(m) != 1 || m[0].Patient != nil {
		t.Errorf("orphan note should match with nil patient, got %+v", m)
	}
}

func TestWhatsAppURL(t *testing.T) {
	tests := map[string]string{
		"+1 555-123-4567": "https://wa.me/15551234567",
		"(555) 987-6543":  "https://wa.me/15559876543",
		"15550001111":     "https://wa.me/15550001111",
	}
	for in, want := range tests {
		if got := WhatsAppURL(in); got != want {
			t.Errorf("WhatsAppURL(%q) = %q, want %q", in, got, want)
		}
	}
}
