package store

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := NewLedger(":memory:", 8, nil)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedgerInsertAssignsIncreasingSequence(t *testing.T) {
	l := newTestLedger(t)

	started := time.Now().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		if err := l.insert(Entry{
			RequestID:      "req-1",
			ClientIdentity: "client-a",
			Input:          "https://example.com/watch",
			Phase:          "completed",
			AudioOK:        1,
			StartedAt:      started,
			FinishedAt:     time.Now(),
		}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	rows, err := l.db.Query(`SELECT sequence FROM job_history ORDER BY sequence ASC`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var sequences []int
	for rows.Next() {
		var seq int
		if err := rows.Scan(&seq); err != nil {
			t.Fatalf("scan: %v", err)
		}
		sequences = append(sequences, seq)
	}

	if len(sequences) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(sequences))
	}
	for i, seq := range sequences {
		if seq != i+1 {
			t.Errorf("sequence[%d] = %d, want %d", i, seq, i+1)
		}
	}
}

func TestLedgerRunDrainsRecordedEntries(t *testing.T) {
	l := newTestLedger(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	l.Record(Entry{
		RequestID:      "req-2",
		ClientIdentity: "client-b",
		Input:          "https://example.com/album",
		Phase:          "failed",
		VideoErr:       1,
		ErrorMessage:   "external tool failed",
		StartedAt:      time.Now(),
		FinishedAt:     time.Now(),
	})

	deadline := time.After(2 * time.Second)
	for {
		var count int
		if err := l.db.QueryRow(`SELECT COUNT(*) FROM job_history WHERE request_id = ?`, "req-2").Scan(&count); err != nil {
			t.Fatalf("query: %v", err)
		}
		if count == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for ledger to drain entry")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestLedgerRecordDropsWhenBufferFull(t *testing.T) {
	l, err := NewLedger(":memory:", 1, nil)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	defer l.Close()

	// Fill the buffer without a drain goroutine running.
	l.Record(Entry{RequestID: "req-3", StartedAt: time.Now()})
	l.Record(Entry{RequestID: "req-4", StartedAt: time.Now()})

	if len(l.C) != 1 {
		t.Fatalf("expected buffer to hold exactly 1 entry, got %d", len(l.C))
	}
}

func TestLedgerInsertNullsEmptyErrorMessage(t *testing.T) {
	l := newTestLedger(t)

	if err := l.insert(Entry{
		RequestID: "req-5",
		StartedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var errMsg sql.NullString
	if err := l.db.QueryRow(`SELECT error_message FROM job_history WHERE request_id = ?`, "req-5").Scan(&errMsg); err != nil {
		t.Fatalf("query: %v", err)
	}
	if errMsg.Valid {
		t.Errorf("expected NULL error_message, got %q", errMsg.String)
	}
}
