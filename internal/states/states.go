// Package states models the compound processing status of an upload.
//
// Every upload carries one status value per independent concern ("track"):
// waveform rendering, audio optimization, platform publishing, and internal
// markers. The full collection is persisted in the tabular store as a
// multi-select field, so the values double as their wire representation.
package states

import (
	"fmt"
	"sort"
	"strings"
)

// Track identifies one of the independently tracked process concerns.
type Track string

const (
	TrackWaveform     Track = "Waveform"
	TrackOptimization Track = "Optimization"
	TrackPublish      Track = "Publish"
	TrackInternal     Track = "Internal"
)

// trackOrder fixes the canonical sort order of tracks within a set.
var trackOrder = []Track{TrackWaveform, TrackOptimization, TrackPublish, TrackInternal}

// State is a single tagged track state as stored in the multi-select field.
type State string

const (
	WaveformPending State = "Waveform: Pending"
	WaveformRunning State = "Waveform: Running"
	WaveformDone    State = "Waveform: Done"
	WaveformError   State = "Waveform: Error"

	OptimizationPending State = "Optimization: Pending"
	OptimizationRunning State = "Optimization: Running"
	OptimizationDone    State = "Optimization: Done"
	OptimizationSeeLog  State = "Optimization: Done, see log"
	OptimizationError   State = "Optimization: Error"

	PublishPending State = "Publish: Pending"
	PublishRunning State = "Publish: Running"
	PublishDone    State = "Publish: Done"
	PublishError   State = "Publish: Error"

	InternalLegacyURLUsed State = "Internal: Legacy URL used"
	InternalImported      State = "Internal: Imported"
)

var allStates = []State{
	WaveformPending,
	WaveformRunning,
	WaveformDone,
	WaveformError,
	OptimizationPending,
	OptimizationRunning,
	OptimizationDone,
	OptimizationSeeLog,
	OptimizationError,
	PublishPending,
	PublishRunning,
	PublishDone,
	PublishError,
	InternalLegacyURLUsed,
	InternalImported,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// Track returns the track a state is tagged with.
func (s State) Track() Track {
	value := string(s)
	for _, track := range trackOrder {
		if strings.HasPrefix(value, string(track)+":") {
			return track
		}
	}
	return ""
}

// Valid reports whether the value is a known track state.
func (s State) Valid() bool {
	_, ok := stateSet[s]
	return ok
}

// Set is the order-normalized collection of current track states for one
// upload. At most one state per track is present at any time.
type Set struct {
	states []State
}

// NewSet builds a set from the given states, keeping only the first state
// seen per track and normalizing the order.
func NewSet(states ...State) Set {
	set := Set{}
	seen := make(map[Track]struct{}, len(trackOrder))
	for _, state := range states {
		track := state.Track()
		if track == "" {
			continue
		}
		if _, dup := seen[track]; dup {
			continue
		}
		seen[track] = struct{}{}
		set.states = append(set.states, state)
	}
	set.sort()
	return set
}

// AllPending returns the set a fresh upload starts with. When the upload was
// submitted through a legacy URL the internal marker is included as well.
func AllPending(legacyURLUsed bool) Set {
	states := []State{WaveformPending, OptimizationPending, PublishPending}
	if legacyURLUsed {
		states = append(states, InternalLegacyURLUsed)
	}
	return NewSet(states...)
}

// Decode parses the raw multi-select values from the store into a set. Values
// that do not match a known state yield an error rather than being dropped,
// so schema drift in the store surfaces immediately.
func Decode(values []string) (Set, error) {
	states := make([]State, 0, len(values))
	for _, value := range values {
		state := State(value)
		if !state.Valid() {
			return Set{}, fmt.Errorf("states: unknown track state %q", value)
		}
		states = append(states, state)
	}
	return NewSet(states...), nil
}

// Replace swaps the state of the given state's track, removing any prior
// state with the same track tag. Replacing is idempotent per track.
func (s *Set) Replace(state State) {
	track := state.Track()
	if track == "" {
		return
	}
	keep := s.states[:0]
	for _, existing := range s.states {
		if existing.Track() != track {
			keep = append(keep, existing)
		}
	}
	s.states = append(keep, state)
	s.sort()
}

// Get returns the current state of a track, if any.
func (s Set) Get(track Track) (State, bool) {
	for _, state := range s.states {
		if state.Track() == track {
			return state, true
		}
	}
	return "", false
}

// States returns the member states in canonical order.
func (s Set) States() []State {
	out := make([]State, len(s.states))
	copy(out, s.states)
	return out
}

// Values returns the member states as raw store values in canonical order.
func (s Set) Values() []string {
	out := make([]string, len(s.states))
	for i, state := range s.states {
		out[i] = string(state)
	}
	return out
}

// sort orders the members waveform < optimization < publish < internal,
// independent of insertion order.
func (s *Set) sort() {
	rank := func(state State) int {
		for i, track := range trackOrder {
			if state.Track() == track {
				return i
			}
		}
		return len(trackOrder)
	}
	sort.SliceStable(s.states, func(i, j int) bool {
		ri, rj := rank(s.states[i]), rank(s.states[j])
		if ri != rj {
			return ri < rj
		}
		return s.states[i] < s.states[j]
	})
}

func (s Set) String() string {
	return strings.Join(s.Values(), ", ")
}
