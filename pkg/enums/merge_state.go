package enums

import "fmt"

// MergeState tracks the one-shot guest-to-server cart reconciliation.
// NotMerged permits a merge attempt, Merging blocks re-entry while one is in
// flight, Merged is terminal for the lifetime of the in-memory store.
type MergeState string

const (
	MergeStateNotMerged MergeState = "not_merged"
	MergeStateMerging   MergeState = "merging"
	MergeStateMerged    MergeState = "merged"
)

var validMergeStates = []MergeState{
	MergeStateNotMerged,
	MergeStateMerging,
	MergeStateMerged,
}

// String implements fmt.Stringer.
func (m MergeState) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MergeState.
func (m MergeState) IsValid() bool {
	for _, candidate := range validMergeStates {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMergeState converts raw input into a MergeState.
func ParseMergeState(value string) (MergeState, error) {
	for _, candidate := range validMergeStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid merge state %q", value)
}
