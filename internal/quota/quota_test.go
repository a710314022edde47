package quota

import (
	"testing"
	"time"

	"github.com/fvitu/offliner/internal/shared"
)

func testLimits() Limits {
	return Limits{
		MaxDownloadsPerHour:       2,
		MaxDownloadsPerDay:        3,
		MaxDurationMinutesPerHour: 100,
		MaxDurationMinutesPerDay:  200,
		MaxContentDurationMinutes: 60,
		MaxPlaylistItems:          10,
	}
}

func reasonOf(err error) shared.QuotaReason {
	v, ok := err.(Violation)
	if !ok {
		return ""
	}
	return v.Reason
}

func TestCheckAllowsWithinLimits(t *testing.T) {
	tr := New(testLimits(), nil)
	if err := tr.Check("client1", 10*time.Minute); err != nil {
		t.Fatalf("expected allowed, got %v", err)
	}
}

func TestCheckContentDurationExceeded(t *testing.T) {
	tr := New(testLimits(), nil)
	err := tr.Check("client1", 61*time.Minute)
	if reasonOf(err) != shared.QuotaReasonContentDuration {
		t.Fatalf("reason = %v, want content_duration_exceeded", err)
	}
}

func TestCheckContentDurationExactlyAtCapDenied(t *testing.T) {
	tr := New(testLimits(), nil)
	err := tr.Check("client1", 60*time.Minute)
	if reasonOf(err) != shared.QuotaReasonContentDuration {
		t.Fatalf("reason = %v, want content_duration_exceeded (tie at cap is a violation)", err)
	}
}

func TestCheckHourlyCountExceededAtExactCap(t *testing.T) {
	now := time.Now()
	tr := New(testLimits(), func() time.Time { return now })
	tr.Record("client1", 5*time.Minute, 2)

	err := tr.Check("client1", 5*time.Minute)
	if reasonOf(err) != shared.QuotaReasonHourlyCount {
		t.Fatalf("reason = %v, want hourly_downloads_exceeded", err)
	}
}

func TestCheckDailyCountExceeded(t *testing.T) {
	limits := testLimits()
	limits.MaxDownloadsPerHour = 100 // isolate daily check
	now := time.Now()
	tr := New(limits, func() time.Time { return now })
	tr.Record("client1", 1*time.Minute, 3)

	err := tr.Check("client1", 1*time.Minute)
	if reasonOf(err) != shared.QuotaReasonDailyCount {
		t.Fatalf("reason = %v, want daily_downloads_exceeded", err)
	}
}

func TestCheckHourlyDurationExceeded(t *testing.T) {
	limits := testLimits()
	limits.MaxDownloadsPerHour = 1000
	limits.MaxDownloadsPerDay = 1000
	now := time.Now()
	tr := New(limits, func() time.Time { return now })
	tr.Record("client1", 50*time.Minute, 1)

	err := tr.Check("client1", 51*time.Minute)
	if reasonOf(err) != shared.QuotaReasonHourlyDuration {
		t.Fatalf("reason = %v, want hourly_duration_exceeded", err)
	}
}

func TestCheckDailyDurationExceeded(t *testing.T) {
	limits := testLimits()
	limits.MaxDownloadsPerHour = 1000
	limits.MaxDownloadsPerDay = 1000
	limits.MaxDurationMinutesPerHour = 10000
	now := time.Now()
	tr := New(limits, func() time.Time { return now })
	tr.Record("client1", 199*time.Minute, 1)

	err := tr.Check("client1", 2*time.Minute)
	if reasonOf(err) != shared.QuotaReasonDailyDuration {
		t.Fatalf("reason = %v, want daily_duration_exceeded", err)
	}
}

func TestCheckPruneDropsEntriesOlderThanDay(t *testing.T) {
	start := time.Now()
	current := start
	tr := New(testLimits(), func() time.Time { return current })

	tr.Record("client1", 5*time.Minute, 2)
	current = start.Add(25 * time.Hour)

	if err := tr.Check("client1", 5*time.Minute); err != nil {
		t.Fatalf("expected allowed once entries age out, got %v", err)
	}
}

func TestCheckReturnsFirstViolationInOrder(t *testing.T) {
	// Both hourly count and content duration would trip; content duration
	// must win since it's evaluated first and doesn't depend on history.
	tr := New(testLimits(), nil)
	tr.Record("client1", 5*time.Minute, 2)

	err := tr.Check("client1", 120*time.Minute)
	if reasonOf(err) != shared.QuotaReasonContentDuration {
		t.Fatalf("reason = %v, want content_duration_exceeded (checked first)", err)
	}
}

func TestRecordIgnoresNonPositiveCount(t *testing.T) {
	tr := New(testLimits(), nil)
	tr.Record("client1", 5*time.Minute, 0)
	if err := tr.Check("client1", 5*time.Minute); err != nil {
		t.Fatalf("expected allowed, got %v", err)
	}
}

func TestCheckIsolatesDifferentClients(t *testing.T) {
	now := time.Now()
	tr := New(testLimits(), func() time.Time { return now })
	tr.Record("client1", 5*time.Minute, 2)

	if err := tr.Check("client2", 5*time.Minute); err != nil {
		t.Fatalf("client2 should be unaffected by client1's history, got %v", err)
	}
}
