package rss

import "testing"

func TestTierScore(t *testing.T) {
	cases := []struct {
		tier int
		want float64
	}{
		{1, 100},
		{2, 60},
		{3, 30},
		{0, 30},
		{99, 30},
	}
	for _, c := range cases {
		if got := TierScore(c.tier); got != c.want {
			t.Errorf("tier=%d: expected %v, got %v", c.tier, c.want, got)
		}
	}
}

func TestTruncateSummary(t *testing.T) {
	short := "hello world"
	if got := truncateSummary(short); got != short {
		t.Errorf("expected short summary untouched, got %q", got)
	}

	long := make([]byte, maxSummaryLen+100)
	for i := range long {
		long[i] = 'a'
	}
	got := truncateSummary(string(long))
	if len(got) != maxSummaryLen {
		t.Errorf("expected truncation to %d bytes, got %d", maxSummaryLen, len(got))
	}
}
