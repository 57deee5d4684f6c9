package records

import (
	"context"
)

// PatientStore is the patient half of the Record Store contract. Every call
// is scoped to the principal carried in ctx. Missing or foreign rows yield
// ErrNotFound; transport and auth failures yield ErrUnavailable and
// ErrUnauthenticated respectively.
type PatientStore interface {
	ListPatients(ctx context.Context) ([]PatientRow, error)
	GetPatient(ctx context.Context, id string) (PatientRow, error)
	InsertPatient(ctx context.Context, row PatientRow) (PatientRow, error)
	UpdatePatient(ctx context.Context, id string, patch PatientPatch) (PatientRow, error)
	// DeletePatient also removes every note that references the patient.
	DeletePatient(ctx context.Context, id string) error
}

type NoteStore interface {
	ListNotes(ctx context.Context, filter NoteFilter) ([]NoteRow, error)
	GetNote(ctx context.Context, id string) (NoteRow, error)
	// InsertNote fails with ErrInvalid when the referenced patient does not
	// resolve for the principal.
	InsertNote(ctx context.Context, row NoteRow) (NoteRow, error)
	UpdateNote(ctx context.Context, id string, patch NotePatch) (NoteRow, error)
	DeleteNote(ctx context.Context, id string) error
}

// Store is the full Record Store contract.
type Store interface {
	PatientStore
	NoteStore
}
