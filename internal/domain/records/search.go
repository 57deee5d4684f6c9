package records

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// FilterPatients matches term case-insensitively against name and chronic
// conditions, and keeps only patients carrying tag when tag is non-empty.
func FilterPatients(patients []*Patient, term, tag string) []*Patient {
	term = strings.ToLower(strings.TrimSpace(term))
	tag = NormalizeTag(tag)
	out := make([]*Patient, 0, len(patients))
	for _, p := range patients {
		if term != "" &&
			!strings.Contains(strings.ToLower(p.Name), term) &&
			!strings.Contains(strings.ToLower(p.ChronicConditions), term) {
			continue
		}
		if tag != "" && !hasTag(p.Tags, tag) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// AllTags returns the sorted set of tags used across patients.
func AllTags(patients []*Patient) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range patients {
		for _, t := range p.Tags {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Strings(out)
	return out
}

// NoteMatch pairs a note with its patient, which may be nil when the
// patient is not in the working set.
type NoteMatch struct {
	Note    *Note
	Patient *Patient
}

// SearchNotes matches term against note content, note tags and the owning
// patient's name. Results are newest first.
func SearchNotes(notes []*Note, patients map[string]*Patient, term string) []NoteMatch {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]NoteMatch, 0, len(notes))
	for _, n := range notes {
		p := patients[n.PatientID]
		if term == "" || noteMatches(n, p, term) {
			out = append(out, NoteMatch{Note: n, Patient: p})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Note.CreatedAt.After(out[j].Note.CreatedAt)
	})
	return out
}

// IndexPatients keys patients by id.
func IndexPatients(patients []*Patient) map[string]*Patient {
	idx := make(map[string]*Patient, len(patients))
	for _, p := range patients {
		idx[p.ID] = p
	}
	return idx
}

func noteMatches(n *Note, p *Patient, term string) bool {
	if strings.Contains(strings.ToLower(n.Content), term) {
		return true
	}
	for _, t := range n.Tags {
		if strings.Contains(strings.ToLower(t), term) {
			return true
		}
	}
	return p != nil && strings.Contains(strings.ToLower(p.Name), term)
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

var nonDigits = regexp.MustCompile(`\D`)

// WhatsAppURL builds a wa.me chat link from a free-form phone number,
// assuming country code 1 when none is present.
func WhatsAppURL(phone string) string {
	digits := nonDigits.ReplaceAllString(phone, "")
	if !strings.HasPrefix(digits, "1") {
		digits = "1" + digits
	}
	return fmt.Sprintf("https://wa.me/%s", digits)
}
