package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mednote/mednote/internal/domain/records"
	"github.com/mednote/mednote/internal/platform/auth"
)

// PublishingStore wraps store so every successful write is announced to the
// writing principal's clients. Reads pass straight through.
func PublishingStore(store records.Store, pub Publisher) records.Store {
	if pub == nil {
		return store
	}
	return &publishing{Store: store, pub: pub, now: time.Now}
}

type publishing struct {
	records.Store
	pub Publisher
	now func() time.Time
}

func (s *publishing) emit(ctx context.Context, typ, resource, id, patientID string, row any) {
	ev := Event{
		Type:       typ,
		Resource:   resource,
		ResourceID: id,
		PatientID:  patientID,
		Timestamp:  s.now().UTC(),
	}
	if row != nil {
		if data, err := json.Marshal(row); err == nil {
			ev.Data = data
		}
	}
	s.pub.Publish(ctx, auth.UserIDFromContext(ctx), ev)
}

func (s *publishing) InsertPatient(ctx context.Context, in records.PatientRow) (records.PatientRow, error) {
	row, err := s.Store.InsertPatient(ctx, in)
	if err == nil {
		s.emit(ctx, EventCreated, ResourcePatient, row.ID, row.ID, row)
	}
	return row, err
}

func (s *publishing) UpdatePatient(ctx context.Context, id string, patch records.PatientPatch) (records.PatientRow, error) {
	row, err := s.Store.UpdatePatient(ctx, id, patch)
	if err == nil {
		s.emit(ctx, EventUpdated, ResourcePatient, row.ID, row.ID, row)
	}
	return row, err
}

// DeletePatient announces only the patient. Clients drop the patient's
// notes themselves, as the store does.
func (s *publishing) DeletePatient(ctx context.Context, id string) error {
	err := s.Store.DeletePatient(ctx, id)
	if err == nil {
		s.emit(ctx, EventDeleted, ResourcePatient, id, id, nil)
	}
	return err
}

func (s *publishing) InsertNote(ctx context.Context, in records.NoteRow) (records.NoteRow, error) {
	row, err := s.Store.InsertNote(ctx, in)
	if err == nil {
		s.emit(ctx, EventCreated, ResourceNote, row.ID, row.PatientID, row)
	}
	return row, err
}

func (s *publishing) UpdateNote(ctx context.Context, id string, patch records.NotePatch) (records.NoteRow, error) {
	row, err := s.Store.UpdateNote(ctx, id, patch)
	if err == nil {
		s.emit(ctx, EventUpdated, ResourceNote, row.ID, row.PatientID, row)
	}
	return row, err
}

func (s *publishing) DeleteNote(ctx context.Context, id string) error {
	err := s.Store.DeleteNote(ctx, id)
	if err == nil {
		s.emit(ctx, EventDeleted, ResourceNote, id, "", nil)
	}
	return err
}
