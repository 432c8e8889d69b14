package usecase

import (
	"testing"
	"time"
)

func TestEffectiveTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 14, 0, 0, 0, time.UTC)
	ms := func(d time.Duration) *int64 {
		v := now.Add(d).UnixMilli()
		return &v
	}
	zero := int64(0)

	cases := []struct {
		name   string
		client *int64
		want   time.Time
	}{
		{name: "missing", client: nil, want: now},
		{name: "zero", client: &zero, want: now},
		{name: "inside window", client: ms(-20 * time.Second), want: now.Add(-20 * time.Second)},
		{name: "edge of window", client: ms(time.Minute), want: now.Add(time.Minute)},
		{name: "too far behind", client: ms(-2 * time.Minute), want: now},
		{name: "too far ahead", client: ms(90 * time.Second), want: now},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := effectiveTime(now, tc.client, DefaultMaxClockSkew)
			if !got.Equal(tc.want) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
