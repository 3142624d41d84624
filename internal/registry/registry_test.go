package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/firehose-io/firehose/internal/event"
	logpkg "github.com/firehose-io/firehose/pkg/log"
)

// fakeLink records upstream subscribe/unsubscribe traffic. Subscribes on
// blockOn park until release closes, with waiting counting parked calls.
type fakeLink struct {
	mu          sync.Mutex
	subscribed  map[string]int
	subscribes  int
	unsubscribe int
	failNext    bool
	blockOn     string
	release     chan struct{}
	waiting     int
}

func newFakeLink() *fakeLink { return &fakeLink{subscribed: map[string]int{}} }

func (f *fakeLink) Subscribe(_ context.Context, channel string) error {
	f.mu.Lock()
	if f.failNext {
		f.failNext = false
		f.mu.Unlock()
		return context.DeadlineExceeded
	}
	if f.blockOn == channel {
		f.waiting++
		release := f.release
		f.mu.Unlock()
		<-release
		f.mu.Lock()
	}
	f.subscribed[channel]++
	f.subscribes++
	f.mu.Unlock()
	return nil
}

func (f *fakeLink) Unsubscribe(_ context.Context, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed[channel]--
	f.unsubscribe++
	return nil
}

func (f *fakeLink) count(channel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribed[channel]
}

type recordingListener struct {
	mu       sync.Mutex
	got      []*event.Message
	panicked bool
}

func (l *recordingListener) Deliver(_ string, msg *event.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.panicked {
		panic("listener failure")
	}
	l.got = append(l.got, msg)
}

func (l *recordingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.got)
}

func newRegistryForTest(t *testing.T) (*Registry, *fakeLink) {
	t.Helper()
	link := newFakeLink()
	return New(link, nil, logpkg.NewNopLogger()), link
}

func TestRefcountInvariant(t *testing.T) {
	r, link := newRegistryForTest(t)
	ctx := context.Background()
	a, b := &recordingListener{}, &recordingListener{}

	if err := r.Register(ctx, "timeline:public", a); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := r.Register(ctx, "timeline:public", b); err != nil {
		t.Fatalf("register b: %v", err)
	}
	if link.count("timeline:public") != 1 {
		t.Fatalf("want exactly 1 upstream subscription, got %d", link.count("timeline:public"))
	}
	if link.subscribes != 1 {
		t.Fatalf("want 1 subscribe call, got %d", link.subscribes)
	}

	r.Unregister(ctx, "timeline:public", a)
	if link.count("timeline:public") != 1 {
		t.Fatalf("unsubscribed while a listener remains")
	}
	r.Unregister(ctx, "timeline:public", b)
	if link.count("timeline:public") != 0 {
		t.Fatalf("expected upstream unsubscribe when last listener left")
	}
	if r.ListenerCount("timeline:public") != 0 {
		t.Fatalf("entry should be deleted")
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r, link := newRegistryForTest(t)
	ctx := context.Background()
	a := &recordingListener{}

	r.Unregister(ctx, "timeline:public", a) // never registered

	if err := r.Register(ctx, "timeline:public", a); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.Unregister(ctx, "timeline:public", a)
	r.Unregister(ctx, "timeline:public", a) // second removal is a no-op
	if link.unsubscribe != 1 {
		t.Fatalf("want exactly 1 unsubscribe call, got %d", link.unsubscribe)
	}
}

func TestDispatchFanout(t *testing.T) {
	r, _ := newRegistryForTest(t)
	ctx := context.Background()
	a, b, other := &recordingListener{}, &recordingListener{}, &recordingListener{}

	_ = r.Register(ctx, "timeline:public", a)
	_ = r.Register(ctx, "timeline:public", b)
	_ = r.Register(ctx, "timeline:42", other)

	r.Dispatch("timeline:public", []byte(`{"event":"update","payload":{"id":"1"}}`))

	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("want each public listener invoked once, got %d and %d", a.count(), b.count())
	}
	if other.count() != 0 {
		t.Fatalf("listener on another channel must not be invoked")
	}
}

func TestDispatchSurvivesPanickingListener(t *testing.T) {
	r, _ := newRegistryForTest(t)
	ctx := context.Background()
	bad := &recordingListener{panicked: true}
	good := &recordingListener{}

	_ = r.Register(ctx, "timeline:public", bad)
	_ = r.Register(ctx, "timeline:public", good)

	r.Dispatch("timeline:public", []byte(`{"event":"update","payload":{"id":"1"}}`))

	if good.count() != 1 {
		t.Fatalf("panicking listener blocked delivery to the rest")
	}
}

func TestDispatchDropsMalformedMessage(t *testing.T) {
	r, _ := newRegistryForTest(t)
	ctx := context.Background()
	a := &recordingListener{}
	_ = r.Register(ctx, "timeline:public", a)

	r.Dispatch("timeline:public", []byte(`{not json`))

	if a.count() != 0 {
		t.Fatalf("malformed message must be dropped")
	}
}

func TestSlowSubscribeDoesNotStallOtherChannels(t *testing.T) {
	r, link := newRegistryForTest(t)
	ctx := context.Background()
	link.blockOn = "timeline:hashtag:slow"
	link.release = make(chan struct{})

	a := &recordingListener{}
	if err := r.Register(ctx, "timeline:public", a); err != nil {
		t.Fatalf("register: %v", err)
	}

	regDone := make(chan error, 1)
	go func() {
		regDone <- r.Register(ctx, "timeline:hashtag:slow", &recordingListener{})
	}()
	deadline := time.Now().Add(2 * time.Second)
	for {
		link.mu.Lock()
		parked := link.waiting > 0
		link.mu.Unlock()
		if parked {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("slow subscribe never started")
		}
		time.Sleep(time.Millisecond)
	}

	// Fanout on an unrelated channel must proceed while the subscribe ack
	// is still pending.
	r.Dispatch("timeline:public", []byte(`{"event":"update","payload":{"id":"1"}}`))
	if a.count() != 1 {
		t.Fatalf("dispatch stalled behind a pending subscribe on another channel")
	}

	close(link.release)
	if err := <-regDone; err != nil {
		t.Fatalf("slow register: %v", err)
	}
	if link.count("timeline:hashtag:slow") != 1 {
		t.Fatalf("expected the slow channel to end up subscribed")
	}
}

func TestRegisterPropagatesSubscribeError(t *testing.T) {
	r, link := newRegistryForTest(t)
	link.failNext = true
	if err := r.Register(context.Background(), "timeline:public", &recordingListener{}); err == nil {
		t.Fatalf("expected subscribe error")
	}
	if r.ListenerCount("timeline:public") != 0 {
		t.Fatalf("failed register must not leave a listener behind")
	}
	// A later register should retry the upstream subscribe.
	if err := r.Register(context.Background(), "timeline:public", &recordingListener{}); err != nil {
		t.Fatalf("register after failure: %v", err)
	}
	if link.count("timeline:public") != 1 {
		t.Fatalf("expected upstream subscription after retry")
	}
}
