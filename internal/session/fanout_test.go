package session

import (
	"testing"
)

// recordingListener appends every received event kind to a shared log under
// a caller-supplied label.
type recordingListener struct {
	label string
	log   *[]string
	hook  func(Event)
}

func (l *recordingListener) OnSessionEvent(ev Event) {
	*l.log = append(*l.log, l.label+":"+ev.Kind.String())
	if l.hook != nil {
		l.hook(ev)
	}
}

func TestFanoutDeliversInSubscriptionOrder(t *testing.T) {
	f := NewFanout()
	var got []string

	for _, label := range []string{"a", "b", "c"} {
		f.Subscribe(&recordingListener{label: label, log: &got})
	}

	f.Dispatch(Event{Kind: Bell})

	want := []string{"a:bell", "b:bell", "c:bell"}
	if len(got) != len(want) {
		t.Fatalf("deliveries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFanoutExactlyOncePerListener(t *testing.T) {
	f := NewFanout()
	var got []string
	l := &recordingListener{label: "a", log: &got}

	f.Subscribe(l)
	f.Subscribe(l) // duplicate subscription is a no-op

	f.Dispatch(Event{Kind: TextChanged})

	if len(got) != 1 {
		t.Errorf("listener invoked %d times, want 1", len(got))
	}
	if f.Len() != 1 {
		t.Errorf("Len() = %d, want 1", f.Len())
	}
}

func TestFanoutUnsubscribedListenerReceivesNothing(t *testing.T) {
	f := NewFanout()
	var got []string
	a := &recordingListener{label: "a", log: &got}
	b := &recordingListener{label: "b", log: &got}

	f.Subscribe(a)
	f.Subscribe(b)
	f.Unsubscribe(a)

	f.Dispatch(Event{Kind: Bell})

	if len(got) != 1 || got[0] != "b:bell" {
		t.Errorf("deliveries = %v, want [b:bell]", got)
	}
}

func TestFanoutUnsubscribeUnknownIsNoop(t *testing.T) {
	f := NewFanout()
	var got []string
	a := &recordingListener{label: "a", log: &got}

	f.Unsubscribe(a)
	f.Subscribe(a)
	f.Unsubscribe(&recordingListener{label: "x", log: &got})

	f.Dispatch(Event{Kind: Bell})
	if len(got) != 1 {
		t.Errorf("deliveries = %v, want exactly one", got)
	}
}

func TestFanoutListenerAddedDuringDispatchMissesEvent(t *testing.T) {
	f := NewFanout()
	var got []string

	late := &recordingListener{label: "late", log: &got}
	first := &recordingListener{label: "first", log: &got}
	first.hook = func(Event) { f.Subscribe(late) }

	f.Subscribe(first)
	f.Dispatch(Event{Kind: Bell})

	if len(got) != 1 || got[0] != "first:bell" {
		t.Errorf("deliveries = %v, want [first:bell]", got)
	}

	// The late listener participates in the next dispatch.
	got = got[:0]
	f.Dispatch(Event{Kind: Bell})
	if len(got) != 2 || got[1] != "late:bell" {
		t.Errorf("second dispatch deliveries = %v, want [first:bell late:bell]", got)
	}
}

func TestFanoutListenerRemovedDuringDispatchReceivesNothingFurther(t *testing.T) {
	f := NewFanout()
	var got []string

	b := &recordingListener{label: "b", log: &got}
	a := &recordingListener{label: "a", log: &got}
	a.hook = func(Event) { f.Unsubscribe(b) }

	f.Subscribe(a)
	f.Subscribe(b)

	f.Dispatch(Event{Kind: Bell})

	if len(got) != 1 || got[0] != "a:bell" {
		t.Errorf("deliveries = %v, want [a:bell]", got)
	}
}

type panickyListener struct{}

func (panickyListener) OnSessionEvent(Event) { panic("boom") }

func TestFanoutPanicDoesNotBlockDelivery(t *testing.T) {
	f := NewFanout()
	var got []string

	p := &panickyListener{}
	f.Subscribe(p)
	f.Subscribe(&recordingListener{label: "after", log: &got})

	f.Dispatch(Event{Kind: Bell})

	if len(got) != 1 || got[0] != "after:bell" {
		t.Errorf("deliveries = %v, want [after:bell] despite earlier panic", got)
	}
}
