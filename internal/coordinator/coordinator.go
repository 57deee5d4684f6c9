// Package coordinator owns the in-memory working set of patients and notes.
// It round-trips every operation through a records.Store, keeps a selected
// patient projection consistent with the notes list, and reports outcomes
// on a notification channel that is separate from its return values.
package coordinator

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mednote/mednote/internal/domain/records"
	"github.com/mednote/mednote/internal/platform/auth"
	"github.com/mednote/mednote/internal/platform/metrics"
	"github.com/mednote/mednote/internal/platform/notification"
)

// Outcome is the result of SelectPatient.
type Outcome int

const (
	Selected Outcome = iota
	Cleared
	NotFound
	Failed
	// Superseded means a newer selection was issued while this one was in
	// flight; its result was discarded.
	Superseded
)

func (o Outcome) String() string {
	switch o {
	case Selected:
		return "selected"
	case Cleared:
		return "cleared"
	case NotFound:
		return "not_found"
	case Failed:
		return "failed"
	case Superseded:
		return "superseded"
	}
	return "unknown"
}

// State is a point-in-time copy of the coordinator's view model. It shares
// nothing with the coordinator and may be used freely by the caller.
type State struct {
	Patients []*records.Patient
	Notes    []*records.Note
	// NotesScope is the patient the notes list was fetched for, or "" when
	// it holds every note.
	NotesScope      string
	SelectedPatient *records.Patient
	IsLoading       bool
}

// Coordinator mediates between a presentation layer and a records.Store on
// behalf of one principal. It is safe for concurrent use.
type Coordinator struct {
	store     records.Store
	principal string
	log       zerolog.Logger
	notifier  notification.Notifier
	metrics   *metrics.Metrics

	mu         sync.RWMutex
	patients   []*records.Patient
	notes      []*records.Note
	notesScope string
	selected   *records.Patient
	// pending is the target of the latest SelectPatient call. It is written
	// together with the selection generation.
	pending string

	inflight atomic.Int64
	// selection is bumped by every SelectPatient call and by removals of the
	// selected or pending patient. A selection applies its result only while
	// it still holds the latest generation.
	selection atomic.Uint64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

func WithNotifier(n notification.Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithMetrics records in-flight requests, notifications and selection
// outcomes. Store latency is recorded by wrapping the store with
// metrics.InstrumentStore.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// New returns a coordinator acting on behalf of principal. The working set
// starts empty; call Load to populate it.
func New(store records.Store, principal string, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		principal: principal,
		log:       zerolog.Nop(),
		notifier:  notification.Discard,
		patients:  []*records.Patient{},
		notes:     []*records.Note{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// -- plumbing --

// begin marks a store request outstanding and returns the principal-scoped
// context plus the func that ends it.
func (c *Coordinator) begin(ctx context.Context) (context.Context, func()) {
	c.inflight.Add(1)
	if c.metrics != nil {
		c.metrics.InFlight.Inc()
	}
	return auth.WithUserID(ctx, c.principal), func() {
		c.inflight.Add(-1)
		if c.metrics != nil {
			c.metrics.InFlight.Dec()
		}
	}
}

func (c *Coordinator) notify(ctx context.Context, n notification.Notification) {
	n.Principal = c.principal
	if c.metrics != nil {
		c.metrics.Notifications.WithLabelValues(string(n.Kind)).Inc()
	}
	c.notifier.Notify(ctx, n)
}

func (c *Coordinator) fail(ctx context.Context, op, msg string, err error) {
	c.log.Error().Err(err).
		Str("operation", op).
		Str("kind", records.KindOf(err).String()).
		Msg(msg)
	c.notify(ctx, notification.Error(op, "Error", msg))
}

// IsLoading reports whether any store request is outstanding. It is
// advisory only.
func (c *Coordinator) IsLoading() bool {
	return c.inflight.Load() > 0
}

// Snapshot returns a deep copy of the current view model.
func (c *Coordinator) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := State{
		Patients:        make([]*records.Patient, len(c.patients)),
		Notes:           make([]*records.Note, len(c.notes)),
		NotesScope:      c.notesScope,
		SelectedPatient: c.selected.Clone(),
		IsLoading:       c.IsLoading(),
	}
	for i, p := range c.patients {
		s.Patients[i] = p.Clone()
	}
	for i, n := range c.notes {
		s.Notes[i] = n.Clone()
	}
	return s
}

// Patient returns the cached patient with id, if present.
func (c *Coordinator) Patient(id string) (*records.Patient, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.patients {
		if p.ID == id {
			return p.Clone(), true
		}
	}
	return nil, false
}

// -- fetches --

// Load populates patients and every note concurrently. One failing fetch
// does not cancel the other.
func (c *Coordinator) Load(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return c.FetchPatients(ctx) })
	g.Go(func() error { return c.FetchNotes(ctx, "") })
	return g.Wait()
}

// FetchPatients replaces the patient list wholesale and drops a selection
// the store no longer returns. On failure the list is left untouched.
func (c *Coordinator) FetchPatients(ctx context.Context) error {
	sctx, done := c.begin(ctx)
	rows, err := c.store.ListPatients(sctx)
	done()
	if err != nil {
		c.fail(ctx, "fetchPatients", "Failed to load patients", err)
		return err
	}

	patients := records.PatientsFromRows(rows)
	c.mu.Lock()
	c.patients = patients
	if c.selected != nil && !slices.ContainsFunc(patients, func(p *records.Patient) bool { return p.ID == c.selected.ID }) {
		c.selected = nil
	}
	c.mu.Unlock()
	return nil
}

// FetchNotes replaces the notes list with patientID's notes, or with every
// note when patientID is empty.
func (c *Coordinator) FetchNotes(ctx context.Context, patientID string) error {
	return c.fetchNotes(ctx, patientID, nil)
}

// fetchNotes applies the result only if current (when set) still holds.
func (c *Coordinator) fetchNotes(ctx context.Context, patientID string, current func() bool) error {
	sctx, done := c.begin(ctx)
	rows, err := c.store.ListNotes(sctx, records.NoteFilter{PatientID: patientID})
	done()
	if err != nil {
		c.fail(ctx, "fetchNotes", "Failed to load notes", err)
		return err
	}

	notes := records.NotesFromRows(rows)
	c.mu.Lock()
	defer c.mu.Unlock()
	if current != nil && !current() {
		return nil
	}
	c.notes = notes
	c.notesScope = patientID
	return nil
}

// -- selection --

// SelectPatient makes id the selected patient and loads its notes. An
// empty id clears the selection without I/O. It never returns an error:
// lookups that fail leave the selection cleared and raise a not-found
// notification.
func (c *Coordinator) SelectPatient(ctx context.Context, id string) Outcome {
	c.mu.Lock()
	gen := c.selection.Add(1)
	c.pending = id
	c.mu.Unlock()
	current := func() bool { return c.selection.Load() == gen }

	outcome := c.selectPatient(ctx, id, current)
	if c.metrics != nil {
		c.metrics.Selections.WithLabelValues(outcome.String()).Inc()
	}
	return outcome
}

func (c *Coordinator) selectPatient(ctx context.Context, id string, current func() bool) Outcome {
	if id == "" {
		c.mu.Lock()
		c.selected = nil
		c.mu.Unlock()
		return Cleared
	}

	sctx, done := c.begin(ctx)
	row, err := c.store.GetPatient(sctx, id)
	done()

	c.mu.Lock()
	if !current() {
		c.mu.Unlock()
		return Superseded
	}
	if err != nil {
		c.selected = nil
		c.mu.Unlock()
		c.log.Warn().Err(err).Str("patient_id", id).Msg("select patient")
		c.notify(ctx, notification.NotFound("selectPatient", "Error", "Patient not found"))
		if errors.Is(err, records.ErrNotFound) {
			return NotFound
		}
		return Failed
	}
	p := records.PatientFromRow(row)
	c.upsertPatientLocked(p)
	c.selected = p.Clone()
	c.mu.Unlock()

	// The notes view follows the selection. A failure here is already
	// notified and does not undo the selection.
	_ = c.fetchNotes(ctx, id, current)
	if !current() {
		return Superseded
	}
	return Selected
}

// upsertPatientLocked replaces the cached copy of p or inserts it in
// newest-first position, so a selected patient is always in the list.
func (c *Coordinator) upsertPatientLocked(p *records.Patient) {
	for i, existing := range c.patients {
		if existing.ID == p.ID {
			c.patients[i] = p
			return
		}
	}
	i := sort.Search(len(c.patients), func(i int) bool {
		return !c.patients[i].CreatedAt.After(p.CreatedAt)
	})
	c.patients = slices.Insert(c.patients, i, p)
}

// -- patient mutations --

// AddPatient inserts a patient and prepends it to the list. Errors are
// notified and returned.
func (c *Coordinator) AddPatient(ctx context.Context, in records.PatientInput) (*records.Patient, error) {
	sctx, done := c.begin(ctx)
	row, err := c.store.InsertPatient(sctx, records.PatientRowFromInput(in))
	done()
	if err != nil {
		c.fail(ctx, "addPatient", "Failed to add patient", err)
		return nil, err
	}

	p := records.PatientFromRow(row)
	c.mu.Lock()
	c.patients = append([]*records.Patient{p}, c.patients...)
	c.mu.Unlock()

	c.notify(ctx, notification.Success("addPatient", "Success", "Patient added successfully"))
	return p.Clone(), nil
}

// EditPatient writes only the fields set in u. It returns nil and no error
// when the store has no such patient.
func (c *Coordinator) EditPatient(ctx context.Context, id string, u records.PatientUpdate) (*records.Patient, error) {
	sctx, done := c.begin(ctx)
	row, err := c.store.UpdatePatient(sctx, id, records.PatientPatchFromUpdate(u))
	done()
	if errors.Is(err, records.ErrNotFound) {
		c.notify(ctx, notification.NotFound("editPatient", "Error", "Patient not found"))
		return nil, nil
	}
	if err != nil {
		c.fail(ctx, "editPatient", "Failed to update patient", err)
		return nil, err
	}

	p := records.PatientFromRow(row)
	c.mu.Lock()
	for i, existing := range c.patients {
		if existing.ID == id {
			c.patients[i] = p
		}
	}
	if c.selected != nil && c.selected.ID == id {
		c.selected = p.Clone()
	}
	c.mu.Unlock()

	c.notify(ctx, notification.Success("editPatient", "Success", "Patient updated successfully"))
	return p.Clone(), nil
}

// RemovePatient deletes a patient and drops its notes from the working set.
// A missing patient yields false and no error.
func (c *Coordinator) RemovePatient(ctx context.Context, id string) (bool, error) {
	sctx, done := c.begin(ctx)
	err := c.store.DeletePatient(sctx, id)
	done()
	if errors.Is(err, records.ErrNotFound) {
		c.notify(ctx, notification.NotFound("removePatient", "Error", "Patient not found"))
		return false, nil
	}
	if err != nil {
		c.fail(ctx, "removePatient", "Failed to delete patient", err)
		return false, err
	}

	c.mu.Lock()
	kept := c.patients[:0:0]
	for _, p := range c.patients {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	c.patients = kept
	if c.pending == id || (c.selected != nil && c.selected.ID == id) {
		// Any selection of id still in flight must not land.
		c.selection.Add(1)
	}
	if c.selected != nil && c.selected.ID == id {
		c.selected = nil
	}
	notes := c.notes[:0:0]
	for _, n := range c.notes {
		if n.PatientID != id {
			notes = append(notes, n)
		}
	}
	c.notes = notes
	c.mu.Unlock()

	c.notify(ctx, notification.Success("removePatient", "Success", "Patient deleted successfully"))
	return true, nil
}

// -- note mutations --

// AddNote inserts a note. It is prepended to the notes list when the list
// holds every note or the note's patient.
func (c *Coordinator) AddNote(ctx context.Context, in records.NoteInput) (*records.Note, error) {
	sctx, done := c.begin(ctx)
	row, err := c.store.InsertNote(sctx, records.NoteRowFromInput(in))
	done()
	if err != nil {
		c.fail(ctx, "addNote", "Failed to add note", err)
		return nil, err
	}

	n := records.NoteFromRow(row)
	c.mu.Lock()
	if c.notesScope == "" || c.notesScope == n.PatientID {
		c.notes = append([]*records.Note{n}, c.notes...)
	}
	c.mu.Unlock()

	c.notify(ctx, notification.Success("addNote", "Success", "Note added successfully"))
	return n.Clone(), nil
}

// EditNote writes only the fields set in u. It returns nil and no error
// when the store has no such note.
func (c *Coordinator) EditNote(ctx context.Context, id string, u records.NoteUpdate) (*records.Note, error) {
	sctx, done := c.begin(ctx)
	row, err := c.store.UpdateNote(sctx, id, records.NotePatchFromUpdate(u))
	done()
	if errors.Is(err, records.ErrNotFound) {
		c.notify(ctx, notification.NotFound("editNote", "Error", "Note not found"))
		return nil, nil
	}
	if err != nil {
		c.fail(ctx, "editNote", "Failed to update note", err)
		return nil, err
	}

	n := records.NoteFromRow(row)
	c.mu.Lock()
	for i, existing := range c.notes {
		if existing.ID == id {
			c.notes[i] = n
		}
	}
	c.mu.Unlock()

	c.notify(ctx, notification.Success("editNote", "Success", "Note updated successfully"))
	return n.Clone(), nil
}

// RemoveNote deletes a note. A missing note yields false and no error.
func (c *Coordinator) RemoveNote(ctx context.Context, id string) (bool, error) {
	sctx, done := c.begin(ctx)
	err := c.store.DeleteNote(sctx, id)
	done()
	if errors.Is(err, records.ErrNotFound) {
		c.notify(ctx, notification.NotFound("removeNote", "Error", "Note not found"))
		return false, nil
	}
	if err != nil {
		c.fail(ctx, "removeNote", "Failed to delete note", err)
		return false, err
	}

	c.mu.Lock()
	kept := c.notes[:0:0]
	for _, n := range c.notes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	c.notes = kept
	c.mu.Unlock()

	c.notify(ctx, notification.Success("removeNote", "Success", "Note deleted successfully"))
	return true, nil
}
