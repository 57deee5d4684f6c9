// Package notification is the user-facing message channel. It is decoupled
// from control flow: callers decide what to do from returned errors and
// only report the outcome here.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// Notification
// ---------------------------------------------------------------------------

// Kind is the visual category of a toast.
type Kind string

const (
	KindSuccess  Kind = "success"
	KindError    Kind = "error"
	KindNotFound Kind = "not_found"
)

// Notification is one transient, non-modal message.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Operation string    `json:"operation,omitempty"`
	Principal string    `json:"principal,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newNotification(kind Kind, op, title, msg string) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Message:   msg,
		Operation: op,
		CreatedAt: time.Now().UTC(),
	}
}

func Success(op, title, msg string) Notification {
	return newNotification(KindSuccess, op, title, msg)
}

func Error(op, title, msg string) Notification {
	return newNotification(KindError, op, title, msg)
}

func NotFound(op, title, msg string) Notification {
	return newNotification(KindNotFound, op, title, msg)
}

// ---------------------------------------------------------------------------
// Notifier
// ---------------------------------------------------------------------------

// Notifier delivers notifications. Implementations must not block the
// caller for long and never report delivery failures back.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Discard drops everything.
var Discard Notifier = NotifierFunc(func(context.Context, Notification) {})

type multi []Notifier

func (m multi) Notify(ctx context.Context, n Notification) {
	for _, x := range m {
		x.Notify(ctx, n)
	}
}

// Multi fans a notification out to every non-nil notifier in order.
func Multi(notifiers ...Notifier) Notifier {
	var out multi
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Sinks
// ---------------------------------------------------------------------------

// LogNotifier writes notifications to a zerolog logger. Errors log at info
// and everything else at debug; the failures themselves are logged by the
// caller at error level.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) {
	evt := l.log.Debug()
	if n.Kind == KindError {
		evt = l.log.Info()
	}
	evt.Str("kind", string(n.Kind)).
		Str("operation", n.Operation).
		Str("title", n.Title).
		Msg(n.Message)
}

// NATSPublisher publishes every notification as JSON on a subject so
// other devices of the same practice can show it.
type NATSPublisher struct {
	subject string
	publish func(subject string, data []byte) error
	log     zerolog.Logger
}

func NewNATSPublisher(nc *nats.Conn, subject string, log zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{subject: subject, publish: nc.Publish, log: log}
}

// ConnectNATS dials url and returns the publisher with its connection.
func ConnectNATS(url, subject string, log zerolog.Logger) (*NATSPublisher, *nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("mednote"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return NewNATSPublisher(nc, subject, log), nc, nil
}

func (p *NATSPublisher) Notify(_ context.Context, n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		p.log.Error().Err(err).Msg("encode notification")
		return
	}
	if err := p.publish(p.subject, data); err != nil {
		p.log.Warn().Err(err).Str("subject", p.subject).Msg("publish notification")
	}
}
