package intents

import (
	"testing"
	"time"
)

func TestResolvedRequiresCoreFields(t *testing.T) {
	intent := Intent{
		ServiceType:   "haircut",
		PartySize:     1,
		RequestedDate: "2026-09-01",
		RequestedTime: "19:00",
	}
	if !intent.Resolved() {
		t.Fatalf("expected a complete intent to be resolved")
	}

	partial := intent
	partial.RequestedTime = ""
	if partial.Resolved() {
		t.Fatalf("expected an intent without a time to be unresolved")
	}

	if (Intent{}).Resolved() {
		t.Fatalf("expected an empty intent to be unresolved")
	}
}

func TestStartTimeParsesRequestedSlot(t *testing.T) {
	intent := Intent{RequestedDate: "2026-09-01", RequestedTime: "19:00"}
	start, err := intent.StartTime()
	if err != nil {
		t.Fatalf("expected the slot to parse, got %v", err)
	}
	want := time.Date(2026, 9, 1, 19, 0, 0, 0, time.Local)
	if !start.Equal(want) {
		t.Fatalf("expected %v, got %v", want, start)
	}

	if _, err := (Intent{RequestedDate: "tomorrow", RequestedTime: "7pm"}).StartTime(); err == nil {
		t.Fatalf("expected an unparseable slot to fail")
	}
}

func TestMergeOverlaysNonEmptyFields(t *testing.T) {
	base := Intent{
		ServiceType:   "haircut",
		PartySize:     1,
		RequestedDate: "2026-09-01",
		RequestedTime: "19:00",
		Location:      "downtown",
	}

	merged := base.Merge(Intent{RequestedTime: "20:00"})
	if merged.RequestedTime != "20:00" {
		t.Fatalf("expected the correction to win, got %q", merged.RequestedTime)
	}
	if merged.ServiceType != "haircut" || merged.Location != "downtown" {
		t.Fatalf("expected untouched fields to survive, got %+v", merged)
	}

	if unchanged := base.Merge(Intent{}); unchanged != base {
		t.Fatalf("expected merging an empty intent to change nothing, got %+v", unchanged)
	}
}

func TestParseErrorMessage(t *testing.T) {
	err := &ParseError{Utterance: "play some music", Reason: "no booking request recognized"}
	if err.Error() == "" {
		t.Fatalf("expected a descriptive message")
	}
}
