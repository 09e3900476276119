package tier

import (
	"context"
	"testing"
)

func TestStatic_IsPaidTier(t *testing.T) {
	ctx := context.Background()
	s := NewStatic([]string{"pro-1", "pro-2", ""})

	tests := []struct {
		userID string
		want   bool
	}{
		{"pro-1", true},
		{"pro-2", true},
		{"free-1", false},
		{"", false},
	}

	for _, tt := range tests {
		got, err := s.IsPaidTier(ctx, tt.userID)
		if err != nil {
			t.Fatalf("IsPaidTier(%q) error = %v", tt.userID, err)
		}
		if got != tt.want {
			t.Errorf("IsPaidTier(%q) = %v, want %v", tt.userID, got, tt.want)
		}
	}
}

func TestStatic_Empty(t *testing.T) {
	s := NewStatic(nil)
	got, err := s.IsPaidTier(context.Background(), "anyone")
	if err != nil {
		t.Fatalf("IsPaidTier() error = %v", err)
	}
	if got {
		t.Error("IsPaidTier() = true with no paid users configured")
	}
}
