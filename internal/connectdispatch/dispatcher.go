// Package connectdispatch implements the per-stream Connect dispatcher:
// one priority queue per client fed by a device's valueSetByClient,
// valueSetByServer and languageAdded signals, drained by the RPC handler
// goroutine into PushUpdates messages (spec §4.8 Connect, §5). Grounded on
// the teacher's gnmi_server Client/LimitedQueue pair, swapping the
// timestamp-ordered gnmi.Value priority item for a sequence-ordered
// wire.PushUpdates item since this model has no wall-clock timestamps.
package connectdispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Workiva/go-datastructures/queue"
	log "github.com/golang/glog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/device-model/server/internal/authz"
	"github.com/device-model/server/internal/device"
	"github.com/device-model/server/internal/subscription"
	"github.com/device-model/server/internal/wire"
)

// item wraps a PushUpdates with a monotonic sequence number so the
// underlying queue.PriorityQueue (ordered, not FIFO by default) delivers
// messages in the order they were produced.
type item struct {
	seq int64
	msg *wire.PushUpdates
}

func (i item) Compare(other queue.Item) int {
	o := other.(item)
	switch {
	case i.seq < o.seq:
		return -1
	case i.seq > o.seq:
		return 1
	default:
		return 0
	}
}

// Dispatcher serves one Connect stream: it subscribes to a device's
// signals, filters them by detail-level/subscription/authz, and exposes a
// blocking Next() the RPC handler drains into wire messages (spec §4.8).
type Dispatcher struct {
	dev    *device.Device
	subs   *subscription.Manager
	az     *authz.Authorizer
	detail wire.DetailLevel
	force  bool

	q       *queue.PriorityQueue
	nextSeq int64
	maxSize int

	unsubValue func()
	unsubLang  func()

	closeOnce sync.Once
	dropped   atomic.Int64
}

// Config bounds a Dispatcher's behavior.
type Config struct {
	QueueHint   int              // initial capacity hint, forwarded to queue.NewPriorityQueue
	MaxSize     int              // 0 means unbounded; when full, the oldest item is evicted to make room
	DetailLevel wire.DetailLevel // spec §4.7 Connect(detail-level, force?); filters pushed values the same way DeviceSerializer does
	Force       bool             // spec §4.7 Connect force flag; reserved for a future forced-resync trigger, carried through but not yet load-bearing
}

// New subscribes to dev's signals and begins buffering PushUpdates for
// this client. Call Close when the stream ends.
func New(dev *device.Device, subs *subscription.Manager, az *authz.Authorizer, cfg Config) *Dispatcher {
	hint := cfg.QueueHint
	if hint <= 0 {
		hint = 8
	}
	d := &Dispatcher{
		dev:     dev,
		subs:    subs,
		az:      az,
		detail:  cfg.DetailLevel,
		force:   cfg.Force,
		q:       queue.NewPriorityQueue(hint, false),
		maxSize: cfg.MaxSize,
	}
	d.unsubValue = dev.SubscribeValue(d.onValue)
	d.unsubLang = dev.SubscribeLanguage(d.onLanguage)
	return d
}

func (d *Dispatcher) onValue(c device.ValueChange) {
	pd := d.dev.TopLevelDescriptor(c.Oid)
	if pd == nil {
		return
	}
	if !d.dev.ShouldSendParam(pd, d.detail, d.subs, d.az) {
		return
	}
	d.enqueue(&wire.PushUpdates{
		Slot:  d.dev.Slot(),
		Value: &wire.ValueUpdate{Oid: c.Oid, ElementIndex: c.ElementIndex, Value: c.Value},
	})
}

func (d *Dispatcher) onLanguage(e device.LanguageEvent) {
	d.enqueue(&wire.PushUpdates{
		Slot: d.dev.Slot(),
		LanguagePack: &wire.LanguagePackComponent{
			Language: e.Language,
			Pack:     e.Pack,
			Removed:  e.Removed,
		},
	})
}

// enqueue appends msg, evicting the oldest buffered item first if the
// queue is already at its bound (spec §4.8: "events to a full queue MUST
// be dropped with the oldest event evicted (not the newest)"). Value
// updates are idempotent, so losing the oldest in favor of the newest is
// the spec-sanctioned coalescing policy.
func (d *Dispatcher) enqueue(msg *wire.PushUpdates) {
	for d.q.Len() >= int64(queueCeiling(d.cfgMaxSize())) {
		if _, err := d.q.Get(1); err != nil {
			break
		}
		d.dropped.Add(1)
		log.Warningf("connect dispatcher for slot %d evicting oldest update: queue full", d.dev.Slot())
	}
	seq := atomic.AddInt64(&d.nextSeq, 1)
	if err := d.q.Put(item{seq: seq, msg: msg}); err != nil {
		log.Errorf("connect dispatcher for slot %d failed to enqueue: %v", d.dev.Slot(), err)
	}
}

// cfgMaxSize and queueCeiling exist only to keep enqueue's bound check
// readable; 0 (unbounded) maps to a very large ceiling rather than special
// casing the comparison.
func (d *Dispatcher) cfgMaxSize() int { return d.maxSize }

func queueCeiling(maxSize int) int {
	if maxSize <= 0 {
		return 1 << 30
	}
	return maxSize
}

// Next blocks until a PushUpdates is available or ctx is cancelled (spec
// §4.8 Connect: "the stream delivers updates in the order they occurred,
// blocking the RPC goroutine between updates rather than polling").
func (d *Dispatcher) Next(ctx context.Context) (*wire.PushUpdates, error) {
	type result struct {
		items []queue.Item
		err   error
	}
	resCh := make(chan result, 1)
	go func() {
		items, err := d.q.Get(1)
		resCh <- result{items: items, err: err}
	}()

	select {
	case <-ctx.Done():
		d.q.Dispose()
		return nil, status.FromContextError(ctx.Err()).Err()
	case r := <-resCh:
		if r.err != nil {
			if d.q.Disposed() {
				return nil, status.Error(codes.Aborted, "connect stream closed")
			}
			return nil, status.Errorf(codes.Internal, "dequeue failed: %v", r.err)
		}
		return r.items[0].(item).msg, nil
	}
}

// Close unsubscribes from the device's signals and disposes the queue.
// Safe to call more than once.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		if d.unsubValue != nil {
			d.unsubValue()
		}
		if d.unsubLang != nil {
			d.unsubLang()
		}
		d.q.Dispose()
	})
}

// Dropped returns how many updates were discarded because the queue was
// full (spec §4.8 bounded-queue policy).
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }
