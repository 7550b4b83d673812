// Package notify pushes lifecycle events to the user through ntfy.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vmunix/reelq/internal/events"
)

const userAgent = "reelq/1"

// Message is one notification.
type Message struct {
	Title    string
	Body     string
	Tags     []string
	Priority string
}

// Service delivers notifications.
type Service interface {
	Send(ctx context.Context, m Message) error
}

// NewService returns an ntfy-backed service, or a noop when endpoint is empty.
// endpoint is the full topic URL, e.g. https://ntfy.sh/my-topic.
func NewService(endpoint string, timeout time.Duration) Service {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Noop{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Ntfy{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

// Ntfy posts plain-text messages to an ntfy topic.
type Ntfy struct {
	endpoint string
	client   *http.Client
}

// Send posts m to the topic.
func (n *Ntfy) Send(ctx context.Context, m Message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(m.Body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if m.Title != "" {
		req.Header.Set("Title", m.Title)
	}
	if len(m.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(m.Tags, ","))
	}
	if m.Priority != "" && m.Priority != "default" {
		req.Header.Set("Priority", m.Priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Noop discards every message.
type Noop struct{}

func (Noop) Send(context.Context, Message) error { return nil }

// Categories toggles which events are forwarded.
type Categories struct {
	Collected     bool
	Upgraded      bool
	UpgradeFailed bool
	Blacklisted   bool
	Paused        bool
}

func (c Categories) types() []string {
	var out []string
	if c.Collected {
		out = append(out, events.EventItemCollected)
	}
	if c.Upgraded {
		out = append(out, events.EventItemUpgraded)
	}
	if c.UpgradeFailed {
		out = append(out, events.EventUpgradeFailed)
	}
	if c.Blacklisted {
		out = append(out, events.EventItemBlacklisted)
	}
	if c.Paused {
		out = append(out, events.EventQueuePaused, events.EventQueueResumed)
	}
	return out
}

// Notifier forwards bus events to a Service.
type Notifier struct {
	bus  *events.Bus
	svc  Service
	cats Categories
	log  *slog.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(bus *events.Bus, svc Service, cats Categories, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{bus: bus, svc: svc, cats: cats, log: log.With("component", "notify")}
}

// Run delivers events until ctx is cancelled. Delivery failures are logged.
func (n *Notifier) Run(ctx context.Context) error {
	types := n.cats.types()
	if len(types) == 0 {
		<-ctx.Done()
		return nil
	}
	ch := n.bus.Subscribe(64, types...)
	defer n.bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			m, ok := Format(e)
			if !ok {
				continue
			}
			sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			if err := n.svc.Send(sendCtx, m); err != nil {
				n.log.Warn("notification failed", "type", e.EventType(), "error", err)
			}
			cancel()
		}
	}
}

// Format renders an event as a notification. ok is false for events that
// have no notification form.
func Format(e events.Event) (Message, bool) {
	switch ev := e.(type) {
	case *events.ItemCollected:
		return Message{
			Title: "reelq - Collected",
			Body:  fmt.Sprintf("Collected: %s [%s]", ev.Title, ev.Version),
			Tags:  []string{"reelq", "collected"},
		}, true
	case *events.ItemUpgraded:
		return Message{
			Title: "reelq - Upgraded",
			Body:  fmt.Sprintf("Upgrading %s [%s]\n%s\n-> %s", ev.Title, ev.Version, ev.Previous, ev.Replacement),
			Tags:  []string{"reelq", "upgrade"},
		}, true
	case *events.UpgradeFailed:
		return Message{
			Title: "reelq - Upgrade Failed",
			Body:  fmt.Sprintf("Upgrade of %s failed: %s\nCandidate: %s", ev.Title, ev.Reason, ev.Candidate),
			Tags:  []string{"reelq", "upgrade", "failed"},
		}, true
	case *events.ItemBlacklisted:
		body := "Blacklisted: " + ev.Title
		if ev.Reason != "" {
			body += " (" + ev.Reason + ")"
		}
		return Message{Title: "reelq - Blacklisted", Body: body, Tags: []string{"reelq", "blacklisted"}}, true
	case *events.QueuePaused:
		body := "Queue paused: " + ev.Reason
		if ev.Service != "" {
			body += " [" + ev.Service + "]"
		}
		return Message{Title: "reelq - Paused", Body: body, Tags: []string{"reelq", "paused"}, Priority: "high"}, true
	case *events.QueueResumed:
		return Message{Title: "reelq - Resumed", Body: "Queue resumed", Tags: []string{"reelq", "resumed"}}, true
	}
	return Message{}, false
}
