package records

import "strings"

// TemplateSection is one heading of a note template.
type TemplateSection struct {
	Name        string
	Description string
}

// Template describes the structure a TemplateType seeds into a new note.
type Template struct {
	Type     TemplateType
	Sections []TemplateSection
}

var templates = map[TemplateType]Template{
	TemplateSOAP: {Type: TemplateSOAP, Sections: []TemplateSection{
		{"Subjective", "Patient's complaints and history"},
		{"Objective", "Examination findings and test results"},
		{"Assessment", "Diagnosis and clinical impressions"},
		{"Plan", "Treatment plan and follow-up"},
	}},
	TemplateHP: {Type: TemplateHP, Sections: []TemplateSection{
		{"History", "Patient's medical history"},
		{"Physical", "Physical examination findings"},
		{"Assessment", "Assessment and diagnosis"},
		{"Plan", "Treatment plan"},
	}},
	TemplateFollowUp: {Type: TemplateFollowUp, Sections: []TemplateSection{
		{"Interval History", "Changes since last visit"},
		{"Findings", "New examination findings"},
		{"Assessment", "Updated assessment"},
		{"Plan", "Adjusted treatment plan"},
	}},
	TemplateFree: {Type: TemplateFree, Sections: []TemplateSection{
		{"Notes", "Free-form notes"},
	}},
}

// TemplateFor returns the template for t and whether t is known.
func TemplateFor(t TemplateType) (Template, bool) {
	tpl, ok := templates[t]
	return tpl, ok
}

// DefaultContent is the text a new note of type t starts with. Free notes
// and unknown types start empty.
func DefaultContent(t TemplateType) string {
	if t == TemplateFree {
		return ""
	}
	tpl, ok := templates[t]
	if !ok {
		return ""
	}
	headings := make([]string, len(tpl.Sections))
	for i, s := range tpl.Sections {
		headings[i] = s.Name + ":"
	}
	return strings.Join(headings, "\n\n")
}
