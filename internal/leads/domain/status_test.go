package domain

import "testing"

func TestMapToValidStatusSynonyms(t *testing.T) {
	cases := []struct {
		raw  string
		want Status
	}{
		{"new", StatusNew},
		{"NEW", StatusNew},
		{"  open ", StatusNew},
		{"", StatusNew},
		{"in_progress", StatusInProgress},
		{"contacted", StatusInProgress},
		{"qualified", StatusFollowUp},
		{"proposal", StatusFollowUp},
		{"negotiation", StatusFollowUp},
		{"Follow Up", StatusFollowUp},
		{"no_answer", StatusNotAnswering},
		{"unreachable", StatusNotAnswering},
		{"closed", StatusClosed},
		{"closed_won", StatusWon},
		{"Closed Won", StatusWon},
		{"closed_lost", StatusLost},
		{"disqualified", StatusLost},
	}

	for _, tc := range cases {
		if got := MapToValidStatus(tc.raw); got != tc.want {
			t.Errorf("MapToValidStatus(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

// Any input, including garbage, must land inside the closed set.
func TestMapToValidStatusClosure(t *testing.T) {
	inputs := []string{
		"", "new", "garbage", "🤷", "WON!!", "status=won", "NULL", "nil",
		"qualified", "closed_won", "some very long unknown status string",
	}

	for _, raw := range inputs {
		got := MapToValidStatus(raw)
		if !IsValidStatus(got) {
			t.Errorf("MapToValidStatus(%q) = %q, not in the closed set", raw, got)
		}
	}
}

func TestMapToValidStatusUnknownFallsBackToInProgress(t *testing.T) {
	if got := MapToValidStatus("definitely-not-a-status"); got != StatusInProgress {
		t.Errorf("unknown status mapped to %q, want %q", got, StatusInProgress)
	}
}

func TestAdvanceStatus(t *testing.T) {
	cases := []struct {
		current Status
		want    Status
	}{
		{StatusNew, StatusInProgress},
		{StatusInProgress, StatusInProgress},
		{StatusFollowUp, StatusFollowUp},
		{StatusNotAnswering, StatusNotAnswering},
		{StatusClosed, StatusClosed},
		{StatusWon, StatusWon},
		{StatusLost, StatusLost},
	}

	for _, tc := range cases {
		if got := AdvanceStatus(tc.current); got != tc.want {
			t.Errorf("AdvanceStatus(%q) = %q, want %q", tc.current, got, tc.want)
		}
	}
}
