package resultlog

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ruslano69/tdtp-mysqldump/pkg/dump"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

func sampleResult() *dump.Result {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &dump.Result{
		ID:       "d-1",
		Database: "shop",
		Stats: []dump.TableStats{
			{Name: "orders", Rows: 10},
			{Name: "users", Rows: 5},
		},
		File:     "/backup/shop.sql.zst",
		Bytes:    4096,
		Checksum: "00ff00ff00ff00ff",
		Started:  started,
		Finished: started.Add(1500 * time.Millisecond),
	}
}

func TestRedisPublisher_SetAndPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	ps := sub.Subscribe(ctx, Channel("nightly"))
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		t.Fatalf("Subscribe error = %v", err)
	}

	p := NewRedisPublisher(Config{Name: "nightly", Address: mr.Addr(), TTL: 60})
	defer p.Close()

	if err := p.Publish(ctx, sampleResult(), nil); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	raw, err := mr.Get(StateKey("nightly"))
	if err != nil {
		t.Fatalf("state key missing: %v", err)
	}
	if ttl := mr.TTL(StateKey("nightly")); ttl != 60*time.Second {
		t.Errorf("TTL = %v, want 60s", ttl)
	}

	var got DumpResult
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if got.Status != "success" || got.Rows != 15 || got.Tables != 2 || got.DurationMs != 1500 {
		t.Errorf("unexpected state: %+v", got)
	}
	if got.Error != nil {
		t.Errorf("unexpected error field: %s", *got.Error)
	}

	select {
	case msg := <-ps.Channel():
		if msg.Payload != raw {
			t.Errorf("published payload differs from state")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

func TestRedisPublisher_Failure(t *testing.T) {
	mr := miniredis.RunT(t)

	p := NewRedisPublisher(Config{Name: "nightly", Address: mr.Addr()})
	defer p.Close()

	execErr := fmt.Errorf("%w: column type UUID", dumperr.ErrCatalogDrift)
	if err := p.Publish(context.Background(), nil, execErr); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	raw, _ := mr.Get(StateKey("nightly"))
	var got DumpResult
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if got.Status != "failed" || got.ErrorClass != "catalog_drift" || got.Error == nil {
		t.Errorf("unexpected state: %+v", got)
	}
	if mr.TTL(StateKey("nightly")) != 0 {
		t.Error("zero TTL must keep the key forever")
	}
}

func TestRedisPublisher_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	p := NewRedisPublisher(Config{Name: "nightly", Address: addr})
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := p.Publish(ctx, sampleResult(), nil)
	if !dumperr.Retryable(err) {
		t.Errorf("Publish() error = %v, want connection class", err)
	}
}
