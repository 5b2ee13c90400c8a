package states_test

import (
	"reflect"
	"testing"

	"aircheck/internal/states"
)

func TestReplaceKeepsOneStatePerTrack(t *testing.T) {
	set := states.AllPending(false)
	set.Replace(states.OptimizationRunning)
	set.Replace(states.OptimizationSeeLog)

	count := 0
	for _, state := range set.States() {
		if state.Track() == states.TrackOptimization {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one optimization state, got %d in %v", count, set.States())
	}
	if state, ok := set.Get(states.TrackOptimization); !ok || state != states.OptimizationSeeLog {
		t.Fatalf("expected %q, got %q", states.OptimizationSeeLog, state)
	}
}

func TestCanonicalOrderIndependentOfInsertion(t *testing.T) {
	a := states.NewSet(states.InternalLegacyURLUsed, states.PublishDone, states.WaveformDone, states.OptimizationDone)
	b := states.NewSet(states.WaveformDone, states.OptimizationDone, states.PublishDone, states.InternalLegacyURLUsed)

	want := []string{
		string(states.WaveformDone),
		string(states.OptimizationDone),
		string(states.PublishDone),
		string(states.InternalLegacyURLUsed),
	}
	if !reflect.DeepEqual(a.Values(), want) {
		t.Fatalf("unexpected order: %v", a.Values())
	}
	if !reflect.DeepEqual(a.Values(), b.Values()) {
		t.Fatalf("sets with same members sort differently: %v vs %v", a.Values(), b.Values())
	}
}

func TestAllPendingIncludesLegacyMarker(t *testing.T) {
	set := states.AllPending(true)
	want := []string{
		string(states.WaveformPending),
		string(states.OptimizationPending),
		string(states.PublishPending),
		string(states.InternalLegacyURLUsed),
	}
	if !reflect.DeepEqual(set.Values(), want) {
		t.Fatalf("unexpected members: %v", set.Values())
	}

	if got := states.AllPending(false).Values(); len(got) != 3 {
		t.Fatalf("expected three pending states, got %v", got)
	}
}

func TestDecodeRejectsUnknownValues(t *testing.T) {
	if _, err := states.Decode([]string{"Waveform: Done", "Frobnicate: Busy"}); err == nil {
		t.Fatal("expected error for unknown value")
	}

	set, err := states.Decode([]string{"Publish: Running", "Waveform: Done"})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"Waveform: Done", "Publish: Running"}
	if !reflect.DeepEqual(set.Values(), want) {
		t.Fatalf("unexpected decode result: %v", set.Values())
	}
}

func TestTrackTagging(t *testing.T) {
	tests := []struct {
		state states.State
		track states.Track
	}{
		{states.WaveformRunning, states.TrackWaveform},
		{states.OptimizationSeeLog, states.TrackOptimization},
		{states.PublishError, states.TrackPublish},
		{states.InternalImported, states.TrackInternal},
	}
	for _, tc := range tests {
		if got := tc.state.Track(); got != tc.track {
			t.Errorf("%q: expected track %q, got %q", tc.state, tc.track, got)
		}
	}
	if states.State("bogus").Valid() {
		t.Fatal("bogus value reported valid")
	}
}
