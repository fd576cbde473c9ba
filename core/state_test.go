package booking

import "testing"

func TestSnapshotIsIsolatedFromLiveState(t *testing.T) {
	state := newBookingState("book me a haircut", 3)
	state.Intent = testIntent()
	state.CandidateProviders = testProviders()
	state.addTranscript("provider", "hello?")

	snapshot := state.Snapshot()

	state.CandidateProviders[0].Name = "mutated"
	state.Transcript[0].Content = "mutated"
	state.Intent.ServiceType = "mutated"

	if snapshot.CandidateProviders[0].Name != "Clipper's Corner" {
		t.Fatalf("expected the snapshot's providers to be isolated, got %q", snapshot.CandidateProviders[0].Name)
	}
	if snapshot.Transcript[0].Content != "hello?" {
		t.Fatalf("expected the snapshot's transcript to be isolated, got %q", snapshot.Transcript[0].Content)
	}
	if snapshot.Intent.ServiceType != "haircut" {
		t.Fatalf("expected the snapshot's intent to be isolated, got %q", snapshot.Intent.ServiceType)
	}
}

func TestSnapshotDropsLiveCallHandle(t *testing.T) {
	state := newBookingState("book me a haircut", 3)
	state.CallHandle = newCallStub()

	if snapshot := state.Snapshot(); snapshot.CallHandle != nil {
		t.Fatalf("expected the snapshot to drop the live call handle")
	}
}

func TestResetForRestartKeepsSessionIdentity(t *testing.T) {
	state := newBookingState("book me a haircut", 3)
	state.Intent = testIntent()
	state.CandidateProviders = testProviders()
	provider := state.CandidateProviders[0]
	state.SelectedProvider = &provider
	state.ConfirmationNumber = "4892"
	state.CallApproved = true
	state.TurnCount = 4
	state.appendError(ErrorKindSearch, StageSearchProviders, "transient", true)

	id := state.SessionID
	state.resetForRestart()

	if state.SessionID != id {
		t.Fatalf("expected the session id to survive a restart")
	}
	if len(state.Errors) != 1 {
		t.Fatalf("expected the error trail to survive a restart, got %d records", len(state.Errors))
	}
	if state.Intent.Resolved() || state.SelectedProvider != nil || state.ConfirmationNumber != "" ||
		state.CallApproved || state.TurnCount != 0 || state.CandidateProviders != nil {
		t.Fatalf("expected per-booking fields to be cleared, got %+v", state)
	}
}

func TestErrorTrailIsAppendOnly(t *testing.T) {
	state := newBookingState("", 3)
	if state.lastError() != nil {
		t.Fatalf("expected no error record on a fresh state")
	}

	state.appendError(ErrorKindCalendar, StageCheckCalendar, "first", true)
	state.appendError(ErrorKindCall, StagePlaceCall, "second", false)

	if len(state.Errors) != 2 {
		t.Fatalf("expected both records to be kept, got %d", len(state.Errors))
	}
	last := state.lastError()
	if last.Kind != ErrorKindCall || last.Message != "second" {
		t.Fatalf("expected the most recent record, got %+v", last)
	}
}

func TestTopCandidatesBoundsShortlist(t *testing.T) {
	state := newBookingState("", 3)
	state.CandidateProviders = testProviders()

	if got := len(state.topCandidates(2)); got != 2 {
		t.Fatalf("expected a shortlist of 2, got %d", got)
	}
	if got := len(state.topCandidates(10)); got != 3 {
		t.Fatalf("expected the shortlist to cap at the candidate count, got %d", got)
	}
}
