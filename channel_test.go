package pika

import (
	"errors"
	"testing"
	"time"
)

type intRecord struct {
	Value int64
}

type wideRecord struct {
	Seq  uint64
	Body [56]byte
}

func uniqueChannelName(t *testing.T) string {
	t.Helper()
	return "test-channel-" + t.Name()
}

// Scenario: one-to-one, 100 records, locked engine — producer sends
// [0..99], consumer receives them in order.
func TestLockedEngineInOrderDelivery(t *testing.T) {
	name := uniqueChannelName(t)
	producer, err := Create[intRecord](name, 8, RoleProducer)
	if err != nil {
		t.Fatalf("Create producer: %v", err)
	}
	defer producer.Drop()

	consumer, err := Create[intRecord](name, 8, RoleConsumer)
	if err != nil {
		t.Fatalf("Create consumer: %v", err)
	}
	defer consumer.Drop()

	done := make(chan error, 1)
	go func() {
		for i := int64(0); i < 100; i++ {
			rec := intRecord{Value: i}
			if err := producer.Send(&rec, time.Second); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for i := int64(0); i < 100; i++ {
		var rec intRecord
		if err := consumer.Receive(&rec, time.Second); err != nil {
			t.Fatalf("Receive %d: %v", i, err)
		}
		if rec.Value != i {
			t.Fatalf("record %d out of order: got %d", i, rec.Value)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("producer: %v", err)
	}
}

// Scenario: lock-free, one-to-one, 1000 records, queue_size=4 — zero
// drops, received in order.
func TestLockFreeEngineNoDrops(t *testing.T) {
	name := uniqueChannelName(t)
	producer, err := Create[intRecord](name, 4, RoleProducer, WithSPSC(true))
	if err != nil {
		t.Fatalf("Create producer: %v", err)
	}
	defer producer.Drop()

	consumer, err := Create[intRecord](name, 4, RoleConsumer, WithSPSC(true))
	if err != nil {
		t.Fatalf("Create consumer: %v", err)
	}
	defer consumer.Drop()

	done := make(chan error, 1)
	go func() {
		for i := int64(0); i < 1000; i++ {
			rec := intRecord{Value: i}
			if err := producer.Send(&rec, time.Second); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for i := int64(0); i < 1000; i++ {
		var rec intRecord
		if err := consumer.Receive(&rec, time.Second); err != nil {
			t.Fatalf("Receive %d: %v", i, err)
		}
		if rec.Value != i {
			t.Fatalf("record %d out of order: got %d", i, rec.Value)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("producer: %v", err)
	}
}

// Scenario: inter-thread, queue_size=4, 100 records with 1ms timeouts —
// every Send/Receive either succeeds or times out and is retried; the
// final consumed sequence equals the produced sequence.
func TestTimeoutRetryPreservesSequence(t *testing.T) {
	name := uniqueChannelName(t)
	producer, err := Create[intRecord](name, 4, RoleProducer)
	if err != nil {
		t.Fatalf("Create producer: %v", err)
	}
	defer producer.Drop()

	consumer, err := Create[intRecord](name, 4, RoleConsumer)
	if err != nil {
		t.Fatalf("Create consumer: %v", err)
	}
	defer consumer.Drop()

	const n = 100
	done := make(chan error, 1)
	go func() {
		for i := int64(0); i < n; i++ {
			rec := intRecord{Value: i}
			for {
				err := producer.Send(&rec, time.Millisecond)
				if err == nil {
					break
				}
				if !IsTimeout(err) {
					done <- err
					return
				}
			}
		}
		done <- nil
	}()

	for i := int64(0); i < n; i++ {
		var rec intRecord
		for {
			err := consumer.Receive(&rec, time.Millisecond)
			if err == nil {
				break
			}
			if !IsTimeout(err) {
				t.Fatalf("Receive %d: unexpected error %v", i, err)
			}
		}
		if rec.Value != i {
			t.Fatalf("record %d out of order: got %d", i, rec.Value)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("producer: %v", err)
	}
}

// Scenario: parameter-mismatch rejection — first endpoint creates /m with
// queue_size=4; second endpoint opens /m with queue_size=8, fails with a
// channel error; the first endpoint remains usable.
func TestParameterMismatchRejectionKeepsFirstEndpointUsable(t *testing.T) {
	name := uniqueChannelName(t)
	first, err := Create[intRecord](name, 4, RoleProducer)
	if err != nil {
		t.Fatalf("Create first: %v", err)
	}
	defer first.Drop()

	_, err = Create[intRecord](name, 8, RoleConsumer)
	if err == nil {
		t.Fatal("Create with a mismatched queue_size: expected error")
	}
	var pikaErr *Error
	if !errors.As(err, &pikaErr) || pikaErr.Kind != KindChannel {
		t.Fatalf("Create with a mismatched queue_size: got %v, want a channel error", err)
	}

	rec := intRecord{Value: 7}
	if err := first.Send(&rec, 0); err != nil {
		t.Fatalf("first endpoint unusable after rejected reattach: %v", err)
	}
}

// Scenario: disconnect detection — consumer creates the channel, producer
// creates and immediately drops, consumer observes IsConnected()==false.
func TestDisconnectDetection(t *testing.T) {
	name := uniqueChannelName(t)
	consumer, err := Create[intRecord](name, 2, RoleConsumer)
	if err != nil {
		t.Fatalf("Create consumer: %v", err)
	}
	defer consumer.Drop()

	producer, err := Create[intRecord](name, 2, RoleProducer)
	if err != nil {
		t.Fatalf("Create producer: %v", err)
	}
	if !consumer.IsConnected() {
		t.Fatal("IsConnected before producer drop: want true")
	}
	if err := producer.Drop(); err != nil {
		t.Fatalf("Drop producer: %v", err)
	}
	if consumer.IsConnected() {
		t.Fatal("IsConnected after producer drop: want false")
	}
}

// Scenario: full-queue blocking — queue_size=1, no consumer, the second
// Send(timeout=0) returns timeout.
func TestFullQueueBlockingWithZeroTimeout(t *testing.T) {
	name := uniqueChannelName(t)
	producer, err := Create[intRecord](name, 1, RoleProducer)
	if err != nil {
		t.Fatalf("Create producer: %v", err)
	}
	defer producer.Drop()

	first := intRecord{Value: 1}
	if err := producer.Send(&first, 0); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	second := intRecord{Value: 2}
	if err := producer.Send(&second, 0); !IsTimeout(err) {
		t.Fatalf("second Send on a full queue_size=1 channel: got %v, want timeout", err)
	}
}

func TestCreateRejectsNonSelfContainedRecordType(t *testing.T) {
	type withPointer struct {
		P *int
	}
	_, err := Create[withPointer](uniqueChannelName(t), 4, RoleProducer)
	if err == nil {
		t.Fatal("Create with a pointer-bearing record type: expected error")
	}
}

func TestZeroCopyUnsupportedOnLockFree(t *testing.T) {
	name := uniqueChannelName(t)
	producer, err := Create[intRecord](name, 4, RoleProducer, WithSPSC(true))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer producer.Drop()

	if _, err := producer.AcquireFront(0); !errors.Is(err, ErrZeroCopyUnsupported) {
		t.Fatalf("AcquireFront on a lock-free channel: got %v, want unsupported", err)
	}
}

func TestZeroCopyFrontBackRoundTrip(t *testing.T) {
	name := uniqueChannelName(t)
	producer, err := Create[wideRecord](name, 4, RoleProducer)
	if err != nil {
		t.Fatalf("Create producer: %v", err)
	}
	defer producer.Drop()

	consumer, err := Create[wideRecord](name, 4, RoleConsumer)
	if err != nil {
		t.Fatalf("Create consumer: %v", err)
	}
	defer consumer.Drop()

	slot, err := producer.AcquireFront(0)
	if err != nil {
		t.Fatalf("AcquireFront: %v", err)
	}
	slot.Seq = 42
	if err := producer.ReleaseFront(slot); err != nil {
		t.Fatalf("ReleaseFront: %v", err)
	}

	var out wideRecord
	if err := consumer.Receive(&out, time.Second); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if out.Seq != 42 {
		t.Fatalf("got Seq=%d, want 42", out.Seq)
	}
}
