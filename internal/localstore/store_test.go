package localstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/localstore"
)

func TestStoreWriteReadRoundTrip(t *testing.T) {
	store := localstore.NewArea(nil).Open("tab-1")

	if err := store.Write("section_hero", map[string]any{"title": "Hi"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, ok := store.Read("section_hero")
	if !ok {
		t.Fatal("expected value to be present")
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["title"] != "Hi" {
		t.Fatalf("unexpected value %v", got)
	}
}

func TestStoreReadFailsSoft(t *testing.T) {
	backend := localstore.NewMemoryBackend(0)
	if err := backend.Set(context.Background(), "section_broken", []byte("{not json")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store := localstore.NewArea(backend).Open("tab")

	if _, ok := store.Read("section_broken"); ok {
		t.Fatal("expected malformed entry to read as absent")
	}
	if _, ok := store.Read("missing"); ok {
		t.Fatal("expected missing key to read as absent")
	}
	if _, ok := store.Read("  "); ok {
		t.Fatal("expected blank key to read as absent")
	}
}

func TestStoreWriteFailureKeepsPreviousValueAndDispatchesNothing(t *testing.T) {
	area := localstore.NewArea(localstore.NewMemoryBackend(64))
	store := area.Open("tab")

	if err := store.Write("k", "small"); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	var changes []localstore.Change
	store.Subscribe(func(c localstore.Change) { changes = append(changes, c) })

	err := store.Write("k", strings.Repeat("x", 128))
	if !errors.Is(err, localstore.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	raw, ok := store.Read("k")
	if !ok || string(raw) != `"small"` {
		t.Fatalf("expected previous value to survive, got %s (%v)", raw, ok)
	}
	if len(changes) != 0 {
		t.Fatalf("expected no change notifications, got %d", len(changes))
	}
}

func TestStoreWriteRejectsUnserializableValue(t *testing.T) {
	store := localstore.NewArea(nil).Open("tab")
	err := store.Write("k", map[string]any{"fn": func() {}})
	if !errors.Is(err, localstore.ErrSerialization) {
		t.Fatalf("expected serialization error, got %v", err)
	}
	if _, ok := store.Read("k"); ok {
		t.Fatal("expected nothing to be persisted")
	}
}

func TestStoreDispatchesSyntheticAndNativeThroughOneSubscription(t *testing.T) {
	area := localstore.NewArea(nil)
	writer := area.Open("writer")
	reader := area.Open("reader")

	var own, other []localstore.Change
	writer.Subscribe(func(c localstore.Change) { own = append(own, c) })
	reader.Subscribe(func(c localstore.Change) { other = append(other, c) })

	if err := writer.Write("section_hero", map[string]string{"title": "X"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	if len(own) != 1 || own[0].Origin != localstore.OriginSynthetic || own[0].Key != "section_hero" {
		t.Fatalf("unexpected writer changes: %+v", own)
	}
	if len(other) != 1 || other[0].Origin != localstore.OriginNative {
		t.Fatalf("unexpected reader changes: %+v", other)
	}
	if string(own[0].NewValue) != `{"title":"X"}` {
		t.Fatalf("unexpected payload %s", own[0].NewValue)
	}
	if own[0].Type() != localstore.EventLocalStorageUpdated {
		t.Fatalf("unexpected event type %q", own[0].Type())
	}
}

func TestStoreRemoveBroadcastsNilValue(t *testing.T) {
	area := localstore.NewArea(nil)
	store := area.Open("tab")
	_ = store.Write("k", 1)

	var got []localstore.Change
	store.Subscribe(func(c localstore.Change) { got = append(got, c) })

	if err := store.Remove("k"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(got) != 1 || !got[0].Removed() {
		t.Fatalf("expected removal change, got %+v", got)
	}
	if _, ok := store.Read("k"); ok {
		t.Fatal("expected key to be gone")
	}
}

func TestClosedStoreStopsReceivingAndRejectsWrites(t *testing.T) {
	area := localstore.NewArea(nil)
	writer := area.Open("writer")
	closed := area.Open("closed")

	var got int
	closed.Subscribe(func(localstore.Change) { got++ })
	closed.Close()

	_ = writer.Write("k", "v")
	if got != 0 {
		t.Fatalf("expected closed store to receive nothing, got %d", got)
	}
	if err := closed.Write("k", "v"); !errors.Is(err, localstore.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestMemoryBackendQuotaAccounting(t *testing.T) {
	backend := localstore.NewMemoryBackend(10)
	ctx := context.Background()

	if err := backend.Set(ctx, "a", []byte("1234")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := backend.Set(ctx, "a", []byte("123456789")); err != nil {
		t.Fatalf("replacing within quota should succeed: %v", err)
	}
	if backend.Used() != 10 {
		t.Fatalf("expected 10 bytes used, got %d", backend.Used())
	}
	if err := backend.Set(ctx, "b", []byte("1")); !errors.Is(err, localstore.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	_ = backend.Delete(ctx, "a")
	if backend.Used() != 0 {
		t.Fatalf("expected usage reset, got %d", backend.Used())
	}
}

func TestSubscriberWritesAreDeliveredInCommitOrder(t *testing.T) {
	area := localstore.NewArea(nil)
	writer := area.Open("writer")
	other := area.Open("other")

	var seen []string
	other.Subscribe(func(c localstore.Change) { seen = append(seen, c.Key) })
	writer.Subscribe(func(c localstore.Change) {
		if c.Key == "first" {
			if err := writer.Write("second", 2); err != nil {
				t.Errorf("nested write: %v", err)
			}
		}
	})

	done := make(chan error, 1)
	go func() { done <- writer.Write("first", 1) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("write: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("write from a subscriber blocked the area")
	}

	if strings.Join(seen, ",") != "first,second" {
		t.Fatalf("expected commit order, got %v", seen)
	}
	if _, ok := other.Read("second"); !ok {
		t.Fatal("expected nested write to be persisted")
	}
}

func TestSubscriberPanicDoesNotStallDelivery(t *testing.T) {
	area := localstore.NewArea(nil)
	store := area.Open("tab")

	var keys []string
	store.Subscribe(func(c localstore.Change) {
		if c.Key == "boom" {
			panic("subscriber failure")
		}
	})
	store.Subscribe(func(c localstore.Change) { keys = append(keys, c.Key) })

	if err := store.Write("boom", 1); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Write("after", 2); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(keys) == 0 || keys[len(keys)-1] != "after" {
		t.Fatalf("expected later writes to be delivered, got %v", keys)
	}
}

func TestStoreUpdateReadsCurrentValue(t *testing.T) {
	backend := localstore.NewMemoryBackend(0)
	if err := backend.Set(context.Background(), "broken", []byte("{nope")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store := localstore.NewArea(backend).Open("tab")

	var changes []localstore.Change
	store.Subscribe(func(c localstore.Change) { changes = append(changes, c) })

	increment := func(raw json.RawMessage, ok bool) (any, error) {
		n := 0
		if ok {
			if err := json.Unmarshal(raw, &n); err != nil {
				return nil, err
			}
		}
		return n + 1, nil
	}
	for range 2 {
		if err := store.Update("counter", increment); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	raw, _ := store.Read("counter")
	if string(raw) != "2" {
		t.Fatalf("expected counter 2, got %s", raw)
	}

	var sawOK bool
	if err := store.Update("broken", func(_ json.RawMessage, ok bool) (any, error) {
		sawOK = ok
		return "fixed", nil
	}); err != nil {
		t.Fatalf("update malformed: %v", err)
	}
	if sawOK {
		t.Fatal("expected malformed value to be reported absent")
	}

	rejected := errors.New("rejected")
	before := len(changes)
	if err := store.Update("counter", func(json.RawMessage, bool) (any, error) { return nil, rejected }); !errors.Is(err, rejected) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if len(changes) != before {
		t.Fatal("expected no dispatch for a rejected update")
	}
	if raw, _ := store.Read("counter"); string(raw) != "2" {
		t.Fatalf("expected counter unchanged, got %s", raw)
	}
}
