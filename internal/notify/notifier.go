// Package notify forwards betting events to operator channels (Telegram,
// Discord). Events can be filtered by type so operators receive only the
// alerts they care about.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// Sender is a single notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// EventSender is a Sender that lays out formatted events itself.
type EventSender interface {
	Sender
	SendEvent(ctx context.Context, msg Message) error
}

// Notifier dispatches notifications to every registered Sender.
type Notifier struct {
	senders []Sender
	events  map[string]bool // allowed event types; empty allows all
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. Only event types listed in events are
// forwarded by Notify and NotifyEvent; an empty list forwards everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether at least one sender is configured.
func (n *Notifier) Enabled() bool {
	return len(n.senders) > 0
}

func (n *Notifier) allowed(event string) bool {
	return len(n.events) == 0 || n.events[event]
}

// Notify sends title and message if event passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.allowed(event) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, plain(ctx, title, message))
}

// NotifyEvent formats a committed betting event and sends it if its type
// passes the filter. EventSenders receive the structured Message.
func (n *Notifier) NotifyEvent(ctx context.Context, evt domain.Event) error {
	if !n.allowed(string(evt.Type)) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", string(evt.Type)))
		return nil
	}
	msg := FormatMessage(evt)
	return n.dispatch(ctx, msg.Title, func(s Sender) error {
		if es, ok := s.(EventSender); ok {
			return es.SendEvent(ctx, msg)
		}
		return s.Send(ctx, msg.Title, msg.Text())
	})
}

// NotifyAll sends a notification regardless of the filter.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, plain(ctx, title, message))
}

func plain(ctx context.Context, title, message string) func(Sender) error {
	return func(s Sender) error { return s.Send(ctx, title, message) }
}

// dispatch delivers through send to every sender; one failing sender does
// not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title string, send func(Sender) error) error {
	var errs []error
	for _, s := range n.senders {
		if err := send(s); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
