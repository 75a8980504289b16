package store

import (
	"testing"

	"github.com/vigilapp/vigil/internal/model"
)

func TestIsOnBreakInclusiveBounds(t *testing.T) {
	db := setupTestDB(t)
	bs := NewBreakStore(db)

	if _, err := bs.Create(1, "2024-06-01", "2024-06-05"); err != nil {
		t.Fatalf("create break: %v", err)
	}

	cases := []struct {
		date string
		want bool
	}{
		{"2024-05-31", false},
		{"2024-06-01", true},
		{"2024-06-03", true},
		{"2024-06-05", true},
		{"2024-06-06", false},
	}
	for _, tc := range cases {
		got, err := bs.IsOnBreak(1, tc.date)
		if err != nil {
			t.Fatalf("is on break %s: %v", tc.date, err)
		}
		if got != tc.want {
			t.Errorf("IsOnBreak(%s) = %v, want %v", tc.date, got, tc.want)
		}
	}
}

func TestIsOnBreakIgnoresCanceled(t *testing.T) {
	db := setupTestDB(t)
	bs := NewBreakStore(db)

	brk, err := bs.Create(1, "2024-06-01", "2024-06-05")
	if err != nil {
		t.Fatalf("create break: %v", err)
	}
	if err := bs.UpdateStatus(brk.ID, model.BreakCanceled); err != nil {
		t.Fatalf("cancel break: %v", err)
	}

	got, err := bs.IsOnBreak(1, "2024-06-03")
	if err != nil {
		t.Fatalf("is on break: %v", err)
	}
	if got {
		t.Error("canceled break should not excuse check-ins")
	}
}

func TestIsOnBreakOtherSender(t *testing.T) {
	db := setupTestDB(t)
	bs := NewBreakStore(db)

	if _, err := bs.Create(1, "2024-06-01", "2024-06-05"); err != nil {
		t.Fatalf("create break: %v", err)
	}

	got, err := bs.IsOnBreak(2, "2024-06-03")
	if err != nil {
		t.Fatalf("is on break: %v", err)
	}
	if got {
		t.Error("break should only cover its own sender")
	}
}
