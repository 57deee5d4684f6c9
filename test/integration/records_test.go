//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/mednote/mednote/internal/coordinator"
	"github.com/mednote/mednote/internal/domain/records"
	"github.com/mednote/mednote/internal/platform/db"
)

func TestRecordsPG(t *testing.T) {
	ctx := context.Background()
	tenant := uniqueTenantID("records")
	createTenantSchema(t, ctx, tenant)
	defer dropTenantSchema(t, ctx, tenant)

	store := records.NewStorePG(globalDB.Pool)

	t.Run("Patient_CRUD", func(t *testing.T) {
		withTenant(t, ctx, tenant, "dr-a", func(ctx context.Context) {
			p := createTestPatient(t, ctx, store, "John Smith")
			if p.ID == "" || p.UserID != "dr-a" {
				t.Fatalf("unexpected row %+v", p)
			}
			if p.DOB == nil || *p.DOB != "1980-05-15" {
				t.Errorf("dob should round-trip as YYYY-MM-DD, got %v", p.DOB)
			}

			updated, err := store.UpdatePatient(ctx, p.ID, records.PatientPatch{Allergies: records.Ptr("Penicillin")})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if *updated.Allergies != "Penicillin" || *updated.ContactInfo != "+1 555-123-4567" {
				t.Errorf("update touched the wrong fields: %+v", updated)
			}
			if !updated.UpdatedAt.After(*p.UpdatedAt) {
				t.Errorf("updated_at should advance: %v -> %v", p.UpdatedAt, updated.UpdatedAt)
			}

			again, err := store.UpdatePatient(ctx, p.ID, records.PatientPatch{Allergies: records.Ptr("None")})
			if err != nil {
				t.Fatal(err)
			}
			if !again.UpdatedAt.After(*updated.UpdatedAt) {
				t.Errorf("back-to-back updates must still advance updated_at")
			}

			if err := store.DeletePatient(ctx, p.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := store.GetPatient(ctx, p.ID); !errors.Is(err, records.ErrNotFound) {
				t.Errorf("expected not found after delete, got %v", err)
			}
		})
	})

	t.Run("Malformed_ID_Is_NotFound", func(t *testing.T) {
		withTenant(t, ctx, tenant, "dr-a", func(ctx context.Context) {
			if _, err := store.GetPatient(ctx, "not-a-uuid"); !errors.Is(err, records.ErrNotFound) {
				t.Errorf("expected not found, got %v", err)
			}
		})
	})

	t.Run("Cascade_Delete", func(t *testing.T) {
		withTenant(t, ctx, tenant, "dr-a", func(ctx context.Context) {
			keep := createTestPatient(t, ctx, store, "Keep")
			gone := createTestPatient(t, ctx, store, "Gone")
			kept := createTestNote(t, ctx, store, keep.ID)
			createTestNote(t, ctx, store, gone.ID)

			if err := store.DeletePatient(ctx, gone.ID); err != nil {
				t.Fatal(err)
			}
			notes, err := store.ListNotes(ctx, records.NoteFilter{})
			if err != nil {
				t.Fatal(err)
			}
			if len(notes) != 1 || notes[0].ID != kept.ID {
				t.Errorf("expected only the surviving note, got %+v", notes)
			}
		})
	})

	t.Run("Note_Validation", func(t *testing.T) {
		withTenant(t, ctx, tenant, "dr-a", func(ctx context.Context) {
			p := createTestPatient(t, ctx, store, "Val")
			_, err := store.InsertNote(ctx, records.NoteRow{PatientID: p.ID, TemplateType: "Letter"})
			if !errors.Is(err, records.ErrInvalid) {
				t.Errorf("bad template should be invalid, got %v", err)
			}
			_, err = store.InsertNote(ctx, records.NoteRow{PatientID: "00000000-0000-0000-0000-000000000000", TemplateType: "SOAP"})
			if !errors.Is(err, records.ErrInvalid) {
				t.Errorf("missing patient should be invalid, got %v", err)
			}
		})
	})

	t.Run("Principal_Isolation", func(t *testing.T) {
		var mine records.PatientRow
		withTenant(t, ctx, tenant, "dr-a", func(ctx context.Context) {
			mine = createTestPatient(t, ctx, store, "Private")
		})
		withTenant(t, ctx, tenant, "dr-b", func(ctx context.Context) {
			if _, err := store.GetPatient(ctx, mine.ID); !errors.Is(err, records.ErrNotFound) {
				t.Errorf("foreign read should be not found, got %v", err)
			}
			if err := store.DeletePatient(ctx, mine.ID); !errors.Is(err, records.ErrNotFound) {
				t.Errorf("foreign delete should be not found, got %v", err)
			}
			_, err := store.InsertNote(ctx, records.NoteRowFromInput(records.NoteInput{PatientID: mine.ID, TemplateType: records.TemplateFree}))
			if !errors.Is(err, records.ErrInvalid) {
				t.Errorf("note on foreign patient should be invalid, got %v", err)
			}
			rows, err := store.ListPatients(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(rows) != 0 {
				t.Errorf("dr-b should see no patients, got %d", len(rows))
			}
		})
	})

	t.Run("Coordinator_Scenario", func(t *testing.T) {
		tctx, release, err := db.AcquireTenant(ctx, globalDB.Pool, tenant)
		if err != nil {
			t.Fatal(err)
		}
		defer release()

		c := coordinator.New(store, "dr-c")
		p, err := c.AddPatient(tctx, records.PatientInput{Name: "Scenario", Tags: []string{"x"}})
		if err != nil {
			t.Fatal(err)
		}
		if out := c.SelectPatient(tctx, p.ID); out != coordinator.Selected {
			t.Fatalf("select = %s", out)
		}
		if _, err := c.AddNote(tctx, records.NoteInput{PatientID: p.ID, TemplateType: records.TemplateHP}); err != nil {
			t.Fatal(err)
		}
		if n := len(c.Snapshot().Notes); n != 1 {
			t.Errorf("expected 1 note in view, got %d", n)
		}
		ok, err := c.RemovePatient(tctx, p.ID)
		if err != nil || !ok {
			t.Fatalf("remove = %v, %v", ok, err)
		}
		s := c.Snapshot()
		if s.SelectedPatient != nil || len(s.Notes) != 0 || len(s.Patients) != 0 {
			t.Errorf("view should be empty after cascade, got %+v", s)
		}
	})
}
