package packetcache

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/minicraftmp/server/internal/core/wire"
)

type recorder struct {
	sent []wire.Message
	err  error
}

func (r *recorder) transmit(m wire.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m)
	return nil
}

func TestCache_DefersCachedTypes(t *testing.T) {
	c := New()
	rec := &recorder{}

	c.BeginCaching(wire.Add, wire.Entity)

	messages := []wire.Message{
		{Type: wire.Add, Payload: "a"},
		{Type: wire.Ping, Payload: "p"},
		{Type: wire.Entity, Payload: "1;x,1"},
		{Type: wire.Add, Payload: "b"},
	}
	for _, m := range messages {
		if _, err := c.Send(m, rec.transmit); err != nil {
			t.Fatalf("Send() returned an unexpected error: %v", err)
		}
	}

	// Only the uncached type may reach the transport before the flush.
	want := []wire.Message{{Type: wire.Ping, Payload: "p"}}
	if diff := cmp.Diff(want, rec.sent); diff != "" {
		t.Fatalf("messages sent before flush did not match expected; diff:\n%s", diff)
	}
	if c.Pending() != 3 {
		t.Fatalf("Pending() = %d, want 3", c.Pending())
	}

	if err := c.Flush(rec.transmit); err != nil {
		t.Fatalf("Flush() returned an unexpected error: %v", err)
	}

	want = append(want, messages[0], messages[2], messages[3])
	if diff := cmp.Diff(want, rec.sent); diff != "" {
		t.Errorf("messages sent after flush did not match expected; diff:\n%s", diff)
	}
	if c.Pending() != 0 || c.Caching(wire.Add) || c.Caching(wire.Entity) {
		t.Errorf("cache was not emptied by Flush()")
	}

	// A second flush must not resend anything.
	if err := c.Flush(rec.transmit); err != nil {
		t.Fatalf("Flush() returned an unexpected error: %v", err)
	}
	if len(rec.sent) != 4 {
		t.Errorf("second Flush() resent messages; got %d sends", len(rec.sent))
	}
}

func TestCache_BeginCachingIsAdditive(t *testing.T) {
	c := New()
	rec := &recorder{}

	c.BeginCaching(wire.Add)
	_, _ = c.Send(wire.Message{Type: wire.Add, Payload: "1"}, rec.transmit)
	c.BeginCaching(wire.Remove, wire.Add)
	_, _ = c.Send(wire.Message{Type: wire.Remove, Payload: "2"}, rec.transmit)
	_, _ = c.Send(wire.Message{Type: wire.Add, Payload: "3"}, rec.transmit)

	if !c.Caching(wire.Add) || !c.Caching(wire.Remove) {
		t.Fatalf("BeginCaching() replaced the existing type set")
	}
	if len(rec.sent) != 0 {
		t.Fatalf("cached messages reached the transport: %v", rec.sent)
	}

	_ = c.Flush(rec.transmit)
	want := []wire.Message{
		{Type: wire.Add, Payload: "1"},
		{Type: wire.Remove, Payload: "2"},
		{Type: wire.Add, Payload: "3"},
	}
	if diff := cmp.Diff(want, rec.sent); diff != "" {
		t.Errorf("flush order did not match submission order; diff:\n%s", diff)
	}
}

func TestCache_SendsDuringFlushAreNotRebuffered(t *testing.T) {
	c := New()
	var sent []wire.Message

	var transmit TransmitFunc
	transmit = func(m wire.Message) error {
		sent = append(sent, m)
		if m.Payload == "first" {
			// A send triggered while flushing goes straight out.
			if deferred, _ := c.Send(wire.Message{Type: wire.Add, Payload: "nested"}, transmit); deferred {
				t.Errorf("message sent during flush was deferred")
			}
		}
		return nil
	}

	c.BeginCaching(wire.Add)
	_, _ = c.Send(wire.Message{Type: wire.Add, Payload: "first"}, transmit)
	_, _ = c.Send(wire.Message{Type: wire.Add, Payload: "second"}, transmit)
	_ = c.Flush(transmit)

	want := []string{"first", "nested", "second"}
	var got []string
	for _, m := range sent {
		got = append(got, m.Payload)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected send order; diff:\n%s", diff)
	}
}

func TestCache_FlushError(t *testing.T) {
	c := New()
	c.BeginCaching(wire.Add)
	_, _ = c.Send(wire.Message{Type: wire.Add, Payload: "1"}, nil)

	errBroken := errors.New("broken pipe")
	rec := &recorder{err: errBroken}
	if err := c.Flush(rec.transmit); !errors.Is(err, errBroken) {
		t.Fatalf("Flush() error = %v, want %v", err, errBroken)
	}
	if c.Pending() != 0 || c.Caching(wire.Add) {
		t.Errorf("cache was not emptied after a failed flush")
	}
}
