// Package metrics holds the Prometheus collectors for the Record Store and
// the coordination layer.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/mednote/mednote/internal/domain/records"
)

const namespace = "mednote"

type Metrics struct {
	// StoreLatency measures Record Store calls.
	// Labels: operation, kind (none, not_found, transport, auth, invalid, unknown)
	StoreLatency *prometheus.HistogramVec

	// StoreErrors counts failed Record Store calls.
	// Labels: operation, kind
	StoreErrors *prometheus.CounterVec

	// InFlight is the number of coordinator requests awaiting the store.
	InFlight prometheus.Gauge

	// Notifications counts user-facing messages by kind.
	Notifications *prometheus.CounterVec

	// Selections counts selectPatient outcomes.
	Selections *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StoreLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "request_duration_seconds",
			Help:      "Record Store call latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation", "kind"}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Failed Record Store calls by error kind",
		}, []string{"operation", "kind"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "requests_in_flight",
			Help:      "Coordinator requests awaiting the Record Store",
		}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "notifications_total",
			Help:      "User-facing notifications raised",
		}, []string{"kind"}),
		Selections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "selections_total",
			Help:      "Patient selection outcomes",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// CLIJob is the Pushgateway job name of CLI invocations.
const CLIJob = "mednote_cli"

// Push sends everything in g to the Pushgateway at url, grouped by
// principal. Short-lived CLI runs have no scrape endpoint, so this is how
// their coordinator metrics reach Prometheus.
func Push(ctx context.Context, url, principal string, g prometheus.Gatherer) error {
	err := push.New(url, CLIJob).
		Gatherer(g).
		Grouping("principal", principal).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// observe is deferred with a pointer to the caller's named error so the
// final value is recorded.
func (m *Metrics) observe(op string, start time.Time, errp *error) {
	err := *errp
	kind := records.KindOf(err).String()
	m.StoreLatency.WithLabelValues(op, kind).Observe(time.Since(start).Seconds())
	if err != nil {
		m.StoreErrors.WithLabelValues(op, kind).Inc()
	}
}

// InstrumentStore wraps store so every call is timed and classified.
func InstrumentStore(store records.Store, m *Metrics) records.Store {
	if m == nil {
		return store
	}
	return &instrumented{next: store, m: m}
}

type instrumented struct {
	next records.Store
	m    *Metrics
}

func (s *instrumented) ListPatients(ctx context.Context) (rows []records.PatientRow, err error) {
	defer s.m.observe("list_patients", time.Now(), &err)
	return s.next.ListPatients(ctx)
}

func (s *instrumented) GetPatient(ctx context.Context, id string) (row records.PatientRow, err error) {
	defer s.m.observe("get_patient", time.Now(), &err)
	return s.next.GetPatient(ctx, id)
}

func (s *instrumented) InsertPatient(ctx context.Context, in records.PatientRow) (row records.PatientRow, err error) {
	defer s.m.observe("insert_patient", time.Now(), &err)
	return s.next.InsertPatient(ctx, in)
}

func (s *instrumented) UpdatePatient(ctx context.Context, id string, patch records.PatientPatch) (row records.PatientRow, err error) {
	defer s.m.observe("update_patient", time.Now(), &err)
	return s.next.UpdatePatient(ctx, id, patch)
}

func (s *instrumented) DeletePatient(ctx context.Context, id string) (err error) {
	defer s.m.observe("delete_patient", time.Now(), &err)
	return s.next.DeletePatient(ctx, id)
}

func (s *instrumented) ListNotes(ctx context.Context, filter records.NoteFilter) (rows []records.NoteRow, err error) {
	defer s.m.observe("list_notes", time.Now(), &err)
	return s.next.ListNotes(ctx, filter)
}

func (s *instrumented) GetNote(ctx context.Context, id string) (row records.NoteRow, err error) {
	defer s.m.observe("get_note", time.Now(), &err)
	return s.next.GetNote(ctx, id)
}

func (s *instrumented) InsertNote(ctx context.Context, in records.NoteRow) (row records.NoteRow, err error) {
	defer s.m.observe("insert_note", time.Now(), &err)
	return s.next.InsertNote(ctx, in)
}

func (s *instrumented) UpdateNote(ctx context.Context, id string, patch records.NotePatch) (row records.NoteRow, err error) {
	defer s.m.observe("update_note", time.Now(), &err)
	return s.next.UpdateNote(ctx, id, patch)
}

func (s *instrumented) DeleteNote(ctx context.Context, id string) (err error) {
	defer s.m.observe("delete_note", time.Now(), &err)
	return s.next.DeleteNote(ctx, id)
}
