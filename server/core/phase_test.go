package core

import (
	"testing"
	"time"
)

func TestRunnerOrdersByPhase(t *testing.T) {
	r := NewRunner()
	var got []string
	r.RegisterFunc(PhaseOutput, func(time.Duration) { got = append(got, "output") })
	r.RegisterFunc(PhaseUpdate, func(time.Duration) { got = append(got, "update-a") })
	r.RegisterFunc(PhasePreUpdate, func(time.Duration) { got = append(got, "pre") })
	r.RegisterFunc(PhaseUpdate, func(time.Duration) { got = append(got, "update-b") })

	r.Tick(time.Millisecond)

	want := []string{"pre", "update-a", "update-b", "output"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d = %s, want %s", i, got[i], want[i])
		}
	}
}
