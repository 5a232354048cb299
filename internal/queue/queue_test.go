package queue

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

func TestInMemoryQueueDelivers(t *testing.T) {
	q := NewInMemoryQueue(zerolog.Nop())
	got := make(chan DispatchTrigger, 1)
	_ = q.Subscribe(TopicDispatchTriggers, func(p any) error {
		tr, err := Decode[DispatchTrigger](p)
		if err != nil {
			return err
		}
		got <- tr
		return nil
	})

	if err := q.Publish(TopicDispatchTriggers, NewDispatchTrigger("scheduled", 7)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case tr := <-got:
		if tr.CampaignID != 7 || tr.Reason != "scheduled" || tr.ID == "" {
			t.Errorf("unexpected trigger %+v", tr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("trigger not delivered")
	}
}

func TestInMemoryQueueNoSubscribers(t *testing.T) {
	q := NewInMemoryQueue(zerolog.Nop())
	if err := q.Publish("nobody", 1); err == nil {
		t.Error("expected an error without subscribers")
	}
}

func TestInMemoryQueueRetries(t *testing.T) {
	q := NewInMemoryQueue(zerolog.Nop())
	q.RetryDelay = time.Millisecond

	var mu sync.Mutex
	calls := 0
	_ = q.Subscribe("jobs", func(any) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	_ = q.Publish("jobs", 1)
	q.Wait()

	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestInMemoryQueueGivesUp(t *testing.T) {
	q := NewInMemoryQueue(zerolog.Nop())
	q.RetryDelay = time.Millisecond
	q.MaxRetries = 2

	var mu sync.Mutex
	calls := 0
	_ = q.Subscribe("jobs", func(any) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return errors.New("always")
	})
	_ = q.Publish("jobs", 1)
	q.Wait()

	if calls != 3 {
		t.Errorf("expected 1 call + 2 retries, got %d", calls)
	}
}

func TestDecode(t *testing.T) {
	ev := OutcomeEvent{EntryID: 3, Status: "sent"}
	if got, err := Decode[OutcomeEvent](ev); err != nil || got.EntryID != 3 {
		t.Errorf("value payload: %+v %v", got, err)
	}
	if got, err := Decode[OutcomeEvent](&ev); err != nil || got.Status != "sent" {
		t.Errorf("pointer payload: %+v %v", got, err)
	}
	if got, err := Decode[OutcomeEvent]([]byte(`{"entry_id": 9, "status": "failed"}`)); err != nil || got.EntryID != 9 {
		t.Errorf("json payload: %+v %v", got, err)
	}
	if _, err := Decode[OutcomeEvent](42); err == nil {
		t.Error("expected an error for an int payload")
	}
}

func TestRetryCountHeader(t *testing.T) {
	if n := retryCount(amqp.Table{}); n != 0 {
		t.Errorf("missing header = %d", n)
	}
	if n := retryCount(amqp.Table{retryHeader: int32(2)}); n != 2 {
		t.Errorf("int32 header = %d", n)
	}
	if n := retryCount(amqp.Table{retryHeader: int64(4)}); n != 4 {
		t.Errorf("int64 header = %d", n)
	}
}

func TestOutcomeLogger(t *testing.T) {
	var buf bytes.Buffer
	q := NewInMemoryQueue(zerolog.Nop())
	if err := StartOutcomeLogger(q, zerolog.New(zerolog.SyncWriter(&buf))); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	_ = q.Publish(TopicDeliveryOutcomes, OutcomeEvent{RunID: "r1", EntryID: 3, Status: "failed", Error: "rate limited"})
	_ = q.Publish(TopicDeliveryOutcomes, []byte("{broken"))
	q.Wait()

	out := buf.String()
	if !strings.Contains(out, `"entry_id":3`) || !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("outcome not logged as a warning: %s", out)
	}
	if !strings.Contains(out, "invalid outcome event") {
		t.Errorf("malformed outcome not reported: %s", out)
	}
}
