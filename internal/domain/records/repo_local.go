package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mednote/mednote/internal/platform/localstore"
)

// Keys under which the local variant keeps its two collections.
const (
	PatientsKey = "mednote-patients"
	NotesKey    = "mednote-notes"
)

// LocalStore is the single-device Record Store. Each entity type is one
// JSON array stored under its own key. A patient deletion rewrites both
// keys in one transaction so no orphaned notes survive a crash.
type LocalStore struct {
	kv    localstore.KV
	clock func() time.Time

	mu   sync.Mutex
	last time.Time
}

type LocalOption func(*LocalStore)

// WithClock replaces time.Now, mostly for tests.
func WithClock(clock func() time.Time) LocalOption {
	return func(s *LocalStore) { s.clock = clock }
}

func NewLocalStore(kv localstore.KV, opts ...LocalOption) *LocalStore {
	s := &LocalStore{kv: kv, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// stamp returns a timestamp strictly after both the previous stamp and prev.
// Must be called with s.mu held.
func (s *LocalStore) stamp(prev *time.Time) time.Time {
	now := s.clock().UTC().Truncate(time.Microsecond)
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	if prev != nil && !now.After(*prev) {
		now = prev.UTC().Add(time.Microsecond)
	}
	s.last = now
	return now
}

func readKey[T any](ctx context.Context, kv localstore.KV, key string) ([]T, error) {
	raw, err := kv.Get(ctx, key)
	if errors.Is(err, localstore.ErrKeyNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnavailable, key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (s *LocalStore) write(ctx context.Context, patients []PatientRow, notes []NoteRow) error {
	entries := make(map[string][]byte, 2)
	if patients != nil {
		raw, err := json.Marshal(patients)
		if err != nil {
			return fmt.Errorf("encode patients: %w", err)
		}
		entries[PatientsKey] = raw
	}
	if notes != nil {
		raw, err := json.Marshal(notes)
		if err != nil {
			return fmt.Errorf("encode notes: %w", err)
		}
		entries[NotesKey] = raw
	}
	if err := s.kv.Put(ctx, entries); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func newestFirst[T any](items []T, created func(T) *time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return derefTime(created(items[i])).After(derefTime(created(items[j])))
	})
}

// =========== Patient ===========

func (s *LocalStore) ListPatients(ctx context.Context) ([]PatientRow, error) {
	uid, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := readKey[PatientRow](ctx, s.kv, PatientsKey)
	if err != nil {
		return nil, err
	}
	out := []PatientRow{}
	for _, p := range all {
		if p.UserID == uid {
			out = append(out, p)
		}
	}
	newestFirst(out, func(p PatientRow) *time.Time { return p.CreatedAt })
	return out, nil
}

func (s *LocalStore) GetPatient(ctx context.Context, id string) (PatientRow, error) {
	uid, err := owner(ctx)
	if err != nil {
		return PatientRow{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := readKey[PatientRow](ctx, s.kv, PatientsKey)
	if err != nil {
		return PatientRow{}, err
	}
	i := findPatient(all, id, uid)
	if i < 0 {
		return PatientRow{}, ErrNotFound
	}
	return all[i], nil
}

func (s *LocalStore) InsertPatient(ctx context.Context, row PatientRow) (PatientRow, error) {
	uid, err := owner(ctx)
	if err != nil {
		return PatientRow{}, err
	}
	if row.Name == "" {
		return PatientRow{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := readKey[PatientRow](ctx, s.kv, PatientsKey)
	if err != nil {
		return PatientRow{}, err
	}
	now := s.stamp(nil)
	row.ID = uuid.NewString()
	row.UserID = uid
	row.Tags = nonNilTags(row.Tags)
	row.CreatedAt = Ptr(now)
	row.UpdatedAt = Ptr(now)

	if err := s.write(ctx, append([]PatientRow{row}, all...), nil); err != nil {
		return PatientRow{}, err
	}
	return row, nil
}

func (s *LocalStore) UpdatePatient(ctx context.Context, id string, patch PatientPatch) (PatientRow, error) {
	uid, err := owner(ctx)
	if err != nil {
		return PatientRow{}, err
	}
	if patch.Name != nil && *patch.Name == "" {
		return PatientRow{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := readKey[PatientRow](ctx, s.kv, PatientsKey)
	if err != nil {
		return PatientRow{}, err
	}
	i := findPatient(all, id, uid)
	if i < 0 {
		return PatientRow{}, ErrNotFound
	}
	row := all[i]
	patch.Apply(&row)
	row.UpdatedAt = Ptr(s.stamp(row.UpdatedAt))
	all[i] = row

	if err := s.write(ctx, all, nil); err != nil {
		return PatientRow{}, err
	}
	return row, nil
}

func (s *LocalStore) DeletePatient(ctx context.Context, id string) error {
	uid, err := owner(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	patients, err := readKey[PatientRow](ctx, s.kv, PatientsKey)
	if err != nil {
		return err
	}
	notes, err := readKey[NoteRow](ctx, s.kv, NotesKey)
	if err != nil {
		return err
	}
	i := findPatient(patients, id, uid)
	if i < 0 {
		return ErrNotFound
	}
	patients = append(patients[:i:i], patients[i+1:]...)

	kept := make([]NoteRow, 0, len(notes))
	for _, n := range notes {
		if n.PatientID != id {
			kept = append(kept, n)
		}
	}
	return s.write(ctx, patients, kept)
}

func findPatient(rows []PatientRow, id, uid string) int {
	for i, p := range rows {
		if p.ID == id && p.UserID == uid {
			return i
		}
	}
	return -1
}

// =========== Note ===========

func (s *LocalStore) ListNotes(ctx context.Context, filter NoteFilter) ([]NoteRow, error) {
	uid, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := readKey[NoteRow](ctx, s.kv, NotesKey)
	if err != nil {
		return nil, err
	}
	out := []NoteRow{}
	for _, n := range all {
		if n.UserID != uid {
			continue
		}
		if filter.PatientID != "" && n.PatientID != filter.PatientID {
			continue
		}
		out = append(out, n)
	}
	newestFirst(out, func(n NoteRow) *time.Time { return n.CreatedAt })
	return out, nil
}

func (s *LocalStore) GetNote(ctx context.Context, id string) (NoteRow, error) {
	uid, err := owner(ctx)
	if err != nil {
		return NoteRow{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := readKey[NoteRow](ctx, s.kv, NotesKey)
	if err != nil {
		return NoteRow{}, err
	}
	i := findNote(all, id, uid)
	if i < 0 {
		return NoteRow{}, ErrNotFound
	}
	return all[i], nil
}

func (s *LocalStore) InsertNote(ctx context.Context, row NoteRow) (NoteRow, error) {
	uid, err := owner(ctx)
	if err != nil {
		return NoteRow{}, err
	}
	if !TemplateType(row.TemplateType).Valid() {
		return NoteRow{}, fmt.Errorf("%w: unknown template type %q", ErrInvalid, row.TemplateType)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	patients, err := readKey[PatientRow](ctx, s.kv, PatientsKey)
	if err != nil {
		return NoteRow{}, err
	}
	if findPatient(patients, row.PatientID, uid) < 0 {
		return NoteRow{}, fmt.Errorf("%w: patient %q does not exist", ErrInvalid, row.PatientID)
	}
	all, err := readKey[NoteRow](ctx, s.kv, NotesKey)
	if err != nil {
		return NoteRow{}, err
	}
	now := s.stamp(nil)
	row.ID = uuid.NewString()
	row.UserID = uid
	row.Tags = nonNilTags(row.Tags)
	if row.Content == nil {
		row.Content = Ptr("")
	}
	row.CreatedAt = Ptr(now)
	row.UpdatedAt = Ptr(now)

	if err := s.write(ctx, nil, append([]NoteRow{row}, all...)); err != nil {
		return NoteRow{}, err
	}
	return row, nil
}

func (s *LocalStore) UpdateNote(ctx context.Context, id string, patch NotePatch) (NoteRow, error) {
	uid, err := owner(ctx)
	if err != nil {
		return NoteRow{}, err
	}
	if patch.TemplateType != nil && !TemplateType(*patch.TemplateType).Valid() {
		return NoteRow{}, fmt.Errorf("%w: unknown template type %q", ErrInvalid, *patch.TemplateType)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := readKey[NoteRow](ctx, s.kv, NotesKey)
	if err != nil {
		return NoteRow{}, err
	}
	i := findNote(all, id, uid)
	if i < 0 {
		return NoteRow{}, ErrNotFound
	}
	row := all[i]
	patch.Apply(&row)
	row.UpdatedAt = Ptr(s.stamp(row.UpdatedAt))
	all[i] = row

	if err := s.write(ctx, nil, all); err != nil {
		return NoteRow{}, err
	}
	return row, nil
}

func (s *LocalStore) DeleteNote(ctx context.Context, id string) error {
	uid, err := owner(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := readKey[NoteRow](ctx, s.kv, NotesKey)
	if err != nil {
		return err
	}
	i := findNote(all, id, uid)
	if i < 0 {
		return ErrNotFound
	}
	return s.write(ctx, nil, append(all[:i:i], all[i+1:]...))
}

func findNote(rows []NoteRow, id, uid string) int {
	for i, n := range rows {
		if n.ID == id && n.UserID == uid {
			return i
		}
	}
	return -1
}
