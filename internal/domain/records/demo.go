package records

import (
	"context"
	"fmt"
)

type demoNote struct {
	patient int
	input   NoteInput
}

var demoPatients = []PatientInput{
	{
		Name: "John Smith", DOB: "1980-05-15", ContactInfo: "+1 555-123-4567",
		Allergies: "Penicillin, Sulfa", ChronicConditions: "Hypertension, Type 2 Diabetes",
		Tags: []string{"diabetes", "hypertension", "regular"},
	},
	{
		Name: "Sarah Johnson", DOB: "1992-11-23", ContactInfo: "+1 555-987-6543",
		Allergies: "None", ChronicConditions: "Asthma",
		Tags: []string{"asthma", "new-patient"},
	},
	{
		Name: "Robert Chen", DOB: "1965-03-08", ContactInfo: "+1 555-456-7890",
		Allergies: "Shellfish", ChronicConditions: "COPD, Arthritis",
		Tags: []string{"copd", "elderly", "priority"},
	},
	{
		Name: "Maria Garcia", DOB: "1978-09-12", ContactInfo: "+1 555-234-5678",
		Allergies: "Latex", ChronicConditions: "Migraine, Anxiety",
		Tags: []string{"migraine", "mental-health"},
	},
	{
		Name: "David Williams", DOB: "1950-12-03", ContactInfo: "+1 555-345-6789",
		Allergies: "Aspirin, Ibuprofen", ChronicConditions: "Coronary Artery Disease, Osteoporosis",
		Tags: []string{"cardiac", "elderly", "osteoporosis"},
	},
}

var demoNotes = []demoNote{
	{0, NoteInput{TemplateType: TemplateSOAP, Tags: []string{"diabetes", "medication-change"}, Content: `Subjective: Patient reports increased thirst and fatigue over the past week. Denies chest pain or shortness of breath.
Objective: BP 142/88, HR 78, RR 16, Temp 98.6F. Blood glucose reading 210 mg/dL (high).
Assessment: Poorly controlled Type 2 Diabetes
Plan: Increase Metformin to 1000mg BID. Review diet and exercise routine. Schedule A1C test within 2 weeks.`}},
	{0, NoteInput{TemplateType: TemplateFollowUp, Tags: []string{"hypertension", "medication-change"}, Content: `Interval History: Blood pressure has been elevated in home readings (145-155/90-95). Reports adherence to medication regimen.
Findings: BP 146/92 in office. Cardiac exam unremarkable.
Assessment: Hypertension - suboptimal control
Plan: Add Amlodipine 5mg daily. Continue Lisinopril. Follow-up in 2 weeks for BP check.`}},
	{1, NoteInput{TemplateType: TemplateSOAP, Tags: []string{"asthma", "new-prescription"}, Content: `Subjective: Reports recent onset of wheezing and shortness of breath, especially at night. Using rescue inhaler 2-3 times per week.
Objective: Lung exam reveals mild expiratory wheezes bilaterally. Peak flow at 80% predicted.
Assessment: Asthma - mild persistent
Plan: Start Fluticasone inhaler BID. Continue albuterol as needed. Review proper inhaler technique.`}},
	{2, NoteInput{TemplateType: TemplateHP, Tags: []string{"copd", "infection", "urgent"}, Content: `History: 58yo male with COPD presents with increased cough and yellow sputum for 3 days. Reports slight fever yesterday. Current smoker, 1ppd for 40 years.
Physical: Temp 100.1F, RR 22, O2 sat 92% on RA. Lung exam with rhonchi in right middle lobe, decreased breath sounds at bases.
Assessment: Acute COPD exacerbation with likely superimposed bacterial infection
Plan: Prednisone 40mg daily for 5 days, Azithromycin 500mg day 1, 250mg days 2-5. Increase albuterol nebulizer. Strongly counseled on smoking cessation.`}},
	{3, NoteInput{TemplateType: TemplateSOAP, Tags: []string{"migraine", "medication-change", "referral"}, Content: `Subjective: Reports 3 migraine episodes in past month, each lasting 12-24 hours. Photophobia, nausea. Sumatriptan helps but causes mild chest tightness.
Objective: Vitals normal. Neurologic exam without focal deficits.
Assessment: Migraine without aura, moderate frequency. Medication side effects concerning.
Plan: Switch from sumatriptan to rizatriptan. Start propranolol 40mg daily for prevention. Headache journal. Refer to neurology if no improvement.`}},
}

// SeedDemo fills an empty store with a handful of example patients and
// notes. It does nothing when the principal already has patients and
// reports whether it wrote anything.
func SeedDemo(ctx context.Context, store Store) (bool, error) {
	existing, err := store.ListPatients(ctx)
	if err != nil {
		return false, fmt.Errorf("list patients: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	ids := make([]string, len(demoPatients))
	// Oldest first so listings come back in declaration order.
	for i := len(demoPatients) - 1; i >= 0; i-- {
		row, err := store.InsertPatient(ctx, PatientRowFromInput(demoPatients[i]))
		if err != nil {
			return false, fmt.Errorf("seed patient %q: %w", demoPatients[i].Name, err)
		}
		ids[i] = row.ID
	}
	for i := len(demoNotes) - 1; i >= 0; i-- {
		in := demoNotes[i].input
		in.PatientID = ids[demoNotes[i].patient]
		if _, err := store.InsertNote(ctx, NoteRowFromInput(in)); err != nil {
			return false, fmt.Errorf("seed note for %q: %w", demoPatients[demoNotes[i].patient].Name, err)
		}
	}
	return true, nil
}
