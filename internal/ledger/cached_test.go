package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"reminders/internal/domain"
)

type countingLedger struct {
	Ledger
	isSentCalls int
	listCalls   int
}

func (c *countingLedger) IsSent(ctx context.Context, id string) (bool, error) {
	c.isSentCalls++
	return c.Ledger.IsSent(ctx, id)
}

func (c *countingLedger) List(ctx context.Context) ([]domain.SentMessageRecord, error) {
	c.listCalls++
	return c.Ledger.List(ctx)
}

// pausingLedger holds its first IsSent answer until release is closed.
type pausingLedger struct {
	Ledger
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (p *pausingLedger) IsSent(ctx context.Context, id string) (bool, error) {
	sent, err := p.Ledger.IsSent(ctx, id)
	p.once.Do(func() {
		close(p.read)
		<-p.release
	})
	return sent, err
}

func TestCachedLedgerContract(t *testing.T) {
	t.Parallel()

	exerciseLedger(t, NewCachedLedger(NewMemoryLedger(), time.Minute))
}

func TestCachedLedgerInvalidatesOnWrite(t *testing.T) {
	t.Parallel()

	backing := &countingLedger{Ledger: NewMemoryLedger()}
	cached := NewCachedLedger(backing, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if sent, _ := cached.IsSent(ctx, "m1"); sent {
			t.Fatalf("unexpected sent")
		}
		_, _ = cached.List(ctx)
	}
	if backing.isSentCalls != 1 || backing.listCalls != 1 {
		t.Fatalf("expected cached reads, got isSent=%d list=%d", backing.isSentCalls, backing.listCalls)
	}

	if err := cached.MarkSent(ctx, domain.SentMessageRecord{MessageID: "m1", SentAt: time.Now()}); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if sent, _ := cached.IsSent(ctx, "m1"); !sent {
		t.Fatalf("mark must be visible immediately")
	}
	records, _ := cached.List(ctx)
	if len(records) != 1 {
		t.Fatalf("list must be refreshed after mark: %+v", records)
	}

	if err := cached.UnmarkSent(ctx, "m1"); err != nil {
		t.Fatalf("unmark: %v", err)
	}
	if sent, _ := cached.IsSent(ctx, "m1"); sent {
		t.Fatalf("unmark must be visible immediately")
	}
}

func TestCachedLedgerDropsReadRacingMark(t *testing.T) {
	t.Parallel()

	backing := &pausingLedger{Ledger: NewMemoryLedger(), read: make(chan struct{}), release: make(chan struct{})}
	cached := NewCachedLedger(backing, time.Minute)
	ctx := context.Background()

	done := make(chan bool, 1)
	go func() {
		sent, _ := cached.IsSent(ctx, "m1")
		done <- sent
	}()

	<-backing.read
	if err := cached.MarkSent(ctx, domain.SentMessageRecord{MessageID: "m1", SentAt: time.Now()}); err != nil {
		t.Fatalf("mark: %v", err)
	}
	close(backing.release)
	if stale := <-done; stale {
		t.Fatalf("racing read observed its pre-mark snapshot as sent")
	}

	if sent, _ := cached.IsSent(ctx, "m1"); !sent {
		t.Fatalf("stale pre-mark answer was cached past the mark")
	}
}
