package deduction

import "testing"

func TestGuardEvaluate(t *testing.T) {
	g := Guard{BufferPercent: 10, ResumeRunwayDays: 3}

	tests := []struct {
		name        string
		balance     int64
		daily       int64
		shouldPause bool
		required    int64
	}{
		{"well funded", 2000, 1000, false, 1100},
		{"underfunded", 900, 1000, true, 1100},
		{"exactly at buffered requirement", 1100, 1000, false, 1100},
		{"one cent short", 1099, 1000, true, 1100},
		{"requirement rounds half-up", 2000, 999, false, 1099},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Evaluate(tt.balance, tt.daily)
			if d.ShouldPause != tt.shouldPause {
				t.Errorf("ShouldPause = %v, want %v", d.ShouldPause, tt.shouldPause)
			}
			if d.Required != tt.required {
				t.Errorf("Required = %d, want %d", d.Required, tt.required)
			}
			if d.Balance != tt.balance {
				t.Errorf("Balance = %d, want %d", d.Balance, tt.balance)
			}
		})
	}
}

func TestGuardCanAutoResume(t *testing.T) {
	g := Guard{BufferPercent: 10, ResumeRunwayDays: 3}

	if !g.CanAutoResume(3000, 1000) {
		t.Error("balance of exactly 3 days should resume")
	}
	if g.CanAutoResume(2990, 1000) {
		t.Error("balance of 2.99 days must stay paused")
	}
	if !g.CanAutoResume(5000, 1000) {
		t.Error("balance above 3 days should resume")
	}
}
