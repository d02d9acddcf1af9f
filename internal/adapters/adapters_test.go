package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/segmentio/kafka-go"

	"clubfines/internal/core"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeSender struct {
	channel string
	sent    []string
	err     error
}

func (s *fakeSender) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.channel = channelID
	s.sent = append(s.sent, content)
	return &discordgo.Message{Content: content}, nil
}

var recorded = core.Change{
	Op:      core.OpFineRecorded,
	EntryID: 7,
	Member:  "Alice",
	Amount:  50,
	Balance: 150,
	At:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
}

func TestKafkaNotifier(t *testing.T) {
	w := &fakeWriter{}
	n := newKafkaNotifier(w, "fines")

	if err := n.Notify(context.Background(), recorded); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "Alice" {
		t.Errorf("key = %q, want Alice", msg.Key)
	}

	var body map[string]any
	if err := json.Unmarshal(msg.Value, &body); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if body["op"] != "fine_recorded" || body["balance"] != float64(150) {
		t.Errorf("payload = %v", body)
	}
	if body["message_id"] == "" {
		t.Error("payload has no message id")
	}

	if err := n.Close(); err != nil || !w.closed {
		t.Errorf("Close() = %v, closed = %v", err, w.closed)
	}
}

func TestKafkaNotifierWriteError(t *testing.T) {
	boom := errors.New("no brokers")
	n := newKafkaNotifier(&fakeWriter{err: boom}, "fines")
	err := n.Notify(context.Background(), recorded)
	if !errors.Is(err, boom) {
		t.Fatalf("Notify() error = %v, want wrapped %v", err, boom)
	}
	if !strings.Contains(err.Error(), "fines") {
		t.Errorf("error %q does not name the topic", err)
	}
}

func TestDiscordNotifier(t *testing.T) {
	s := &fakeSender{}
	n := newDiscordNotifier(s, "chan-1")

	if err := n.Notify(context.Background(), recorded); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if s.channel != "chan-1" || len(s.sent) != 1 {
		t.Fatalf("sent %v to %q", s.sent, s.channel)
	}
	if !strings.Contains(s.sent[0], "$50") || !strings.Contains(s.sent[0], "$150") {
		t.Errorf("message = %q", s.sent[0])
	}

	// Nothing is posted for reconciliations.
	if err := n.Notify(context.Background(), core.Change{Op: core.OpBookReconciled}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(s.sent) != 1 {
		t.Errorf("sent %d messages, want 1", len(s.sent))
	}

	s.err = errors.New("401 Unauthorized")
	if err := n.Notify(context.Background(), recorded); err == nil {
		t.Error("expected send error")
	}
}

func TestFormatChange(t *testing.T) {
	tests := []struct {
		name   string
		change core.Change
		want   string
	}{
		{"member", core.Change{Op: core.OpMemberAdded, Member: "Bob"}, "**Bob** joined"},
		{"fine", recorded, "fined $50 (#7)"},
		{"delete", core.Change{Op: core.OpEntryDeleted, EntryID: 3, Member: "Bob", Amount: 30}, "$30 refunded, balance $0"},
		{"rules", core.Change{Op: core.OpRulesReplaced}, "rules updated"},
		{"events", core.Change{Op: core.OpEventsReplaced}, "catalog updated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatChange(tt.change); !strings.Contains(got, tt.want) {
				t.Errorf("FormatChange() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
	if got := FormatChange(core.Change{Op: core.OpBookReconciled}); got != "" {
		t.Errorf("FormatChange(reconciled) = %q, want empty", got)
	}
}

func TestMulti(t *testing.T) {
	w := &fakeWriter{}
	failing := &fakeSender{err: errors.New("down")}
	m := Multi{newKafkaNotifier(w, "t"), nil, newDiscordNotifier(failing, "c")}

	err := m.Notify(context.Background(), recorded)
	if err == nil || !strings.Contains(err.Error(), "notifier 2") {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(w.msgs) != 1 {
		t.Error("first notifier was skipped after a later failure")
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !w.closed {
		t.Error("kafka writer not closed")
	}
}
