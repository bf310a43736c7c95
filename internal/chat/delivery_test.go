package chat

import "testing"

func TestEstimateResponseTokens(t *testing.T) {
	tests := []struct {
		message string
		want    int
	}{
		{"ok", 40},
		{"Got it", 40},
		{"makes sense!", 40},
		{"continue", 40},
		{"Why do goroutines leak?", 250},
		{"how does select work", 250},
		{"Explain channels to me", 250},
		{"is a nil map writable?", 250},
		{"", 250},
		{"I tried the exercise and here is my solution", 150},
	}
	for _, tt := range tests {
		if got := EstimateResponseTokens(tt.message); got != tt.want {
			t.Errorf("EstimateResponseTokens(%q) = %d; want %d", tt.message, got, tt.want)
		}
	}
}

func TestShouldStream(t *testing.T) {
	if ShouldStream(40, 100) {
		t.Error("short acknowledgement should not stream")
	}
	if !ShouldStream(250, 100) {
		t.Error("full explanation should stream")
	}
	if !ShouldStream(100, 100) {
		t.Error("threshold itself should stream")
	}
	if ShouldStream(40, 0) {
		t.Error("zero threshold should fall back to the default, not stream everything")
	}
}
