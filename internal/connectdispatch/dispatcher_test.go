package connectdispatch

import (
	"context"
	"testing"
	"time"

	"github.com/device-model/server/internal/authz"
	"github.com/device-model/server/internal/device"
	"github.com/device-model/server/internal/model"
	"github.com/device-model/server/internal/subscription"
	"github.com/device-model/server/internal/wire"
)

func newTestDevice() *device.Device {
	d := device.New(device.Config{Slot: 1})
	pd := &model.ParamDescriptor{Oid: "/count", Type: wire.TypeInt32, Scope: authz.ScopeOperate}
	d.AddParam("count", model.NewParam("count", pd, wire.Int32Value(0)))
	return d
}

func TestDispatcherReceivesValueUpdate(t *testing.T) {
	dev := newTestDevice()
	az := authz.New([]string{"operate:w"})
	disp := New(dev, subscription.New(), az, Config{})
	defer disp.Close()

	if err := dev.SetValue("/count", wire.Int32Value(1), az, false); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := disp.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if msg.Value == nil || msg.Value.Oid != "/count" {
		t.Fatalf("expected a value update for /count, got %+v", msg)
	}
}

func TestDispatcherRespectsSubscriptionFilter(t *testing.T) {
	dev := newTestDevice()
	pd := &model.ParamDescriptor{Oid: "/other", Type: wire.TypeInt32, Scope: authz.ScopeOperate}
	dev.AddParam("other", model.NewParam("other", pd, wire.Int32Value(0)))

	az := authz.New([]string{"operate:w"})
	subs := subscription.New()
	subs.Add("/count")
	disp := New(dev, subs, az, Config{DetailLevel: wire.DetailSubscriptions})
	defer disp.Close()

	if err := dev.SetValue("/other", wire.Int32Value(9), az, false); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if err := dev.SetValue("/count", wire.Int32Value(1), az, false); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := disp.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if msg.Value.Oid != "/count" {
		t.Fatalf("expected only the subscribed oid to be delivered, got %s", msg.Value.Oid)
	}
}

func TestDispatcherOmitsUnauthorizedParam(t *testing.T) {
	dev := device.New(device.Config{Slot: 1})
	pd := &model.ParamDescriptor{Oid: "/secret", Type: wire.TypeInt32, Scope: authz.ScopeAdmin}
	dev.AddParam("secret", model.NewParam("secret", pd, wire.Int32Value(0)))

	writerAz := authz.New([]string{"admin:w"})
	monitorAz := authz.New([]string{"monitor"})
	disp := New(dev, subscription.New(), monitorAz, Config{})
	defer disp.Close()

	if err := dev.SetValue("/secret", wire.Int32Value(5), writerAz, false); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := disp.Next(ctx); err == nil {
		t.Fatal("expected Next to time out: update should be silently dropped per read authorization")
	}
}

func TestDispatcherCancellation(t *testing.T) {
	dev := newTestDevice()
	az := authz.New([]string{"operate:w"})
	disp := New(dev, subscription.New(), az, Config{})
	defer disp.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := disp.Next(ctx); err == nil {
		t.Fatal("expected Next to fail on an already-cancelled context")
	}
}

// TestDispatcherEvictsOldestWhenQueueFull exercises spec §4.8's bounded-
// queue MUST: a full queue drops the oldest buffered event, never the
// newest, so a slow consumer still ends up with the most recent values.
func TestDispatcherEvictsOldestWhenQueueFull(t *testing.T) {
	dev := newTestDevice()
	az := authz.New([]string{"operate:w"})
	disp := New(dev, subscription.New(), az, Config{MaxSize: 2})
	defer disp.Close()

	for _, v := range []int32{1, 2, 3} {
		if err := dev.SetValue("/count", wire.Int32Value(v), az, false); err != nil {
			t.Fatalf("SetValue(%d): %v", v, err)
		}
	}
	if got := disp.Dropped(); got != 1 {
		t.Fatalf("expected exactly 1 dropped event, got %d", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, err := disp.Next(ctx)
	if err != nil {
		t.Fatalf("Next (1st): %v", err)
	}
	if first.Value.Value.Int32 != 2 {
		t.Fatalf("expected oldest-evicted queue to yield value 2 first, got %d", first.Value.Value.Int32)
	}

	second, err := disp.Next(ctx)
	if err != nil {
		t.Fatalf("Next (2nd): %v", err)
	}
	if second.Value.Value.Int32 != 3 {
		t.Fatalf("expected value 3 second, got %d", second.Value.Value.Int32)
	}
}
