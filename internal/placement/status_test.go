package placement

import (
	"testing"
)

func TestStatusRank(t *testing.T) {
	tests := []struct {
		status Status
		want   int
	}{
		{StatusApplied, 1},
		{StatusEligible, 2},
		{StatusShortlisted, 3},
		{StatusInterviewScheduled, 4},
		{StatusOffered, 5},
		{StatusJoined, 6},
		{StatusRejected, 0},
		{Status("bogus"), 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Rank(); got != tt.want {
				t.Errorf("Rank() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"next stage", StatusApplied, StatusEligible, true},
		{"skip ahead", StatusApplied, StatusOffered, true},
		{"straight to joined", StatusShortlisted, StatusJoined, true},
		{"same status", StatusShortlisted, StatusShortlisted, false},
		{"backwards", StatusShortlisted, StatusEligible, false},
		{"backwards to applied", StatusOffered, StatusApplied, false},
		{"reject from applied", StatusApplied, StatusRejected, true},
		{"reject from offered", StatusOffered, StatusRejected, true},
		{"reject from joined", StatusJoined, StatusRejected, false},
		{"reject twice", StatusRejected, StatusRejected, false},
		{"leave rejected", StatusRejected, StatusJoined, false},
		{"unknown target", StatusApplied, Status("hired"), false},
		{"unknown current", Status("hired"), StatusJoined, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := CheckTransition(tt.from, tt.to)
			if ok != tt.want {
				t.Errorf("CheckTransition(%s, %s) = %v (%s), want %v", tt.from, tt.to, ok, reason, tt.want)
			}
			if !ok && reason == "" {
				t.Error("refusal should carry a reason")
			}
		})
	}
}

// Every accepted sequence of transitions keeps forward ranks non-decreasing;
// only entries into Rejected may break the order.
func TestCheckTransition_HistoryRanksNeverRegress(t *testing.T) {
	all := Statuses()
	var walk func(path []Status)
	walk = func(path []Status) {
		cur := path[len(path)-1]
		for _, next := range all {
			if ok, _ := CheckTransition(cur, next); !ok {
				continue
			}
			if next != StatusRejected && next.Rank() <= cur.Rank() {
				t.Fatalf("path %v -> %s regresses", path, next)
			}
			walk(append(append([]Status{}, path...), next))
		}
	}
	walk([]Status{StatusApplied})
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    Status
		wantErr bool
	}{
		{"applied", StatusApplied, false},
		{"  Shortlisted ", StatusShortlisted, false},
		{"InterviewScheduled", StatusInterviewScheduled, false},
		{"interview-scheduled", StatusInterviewScheduled, false},
		{"Interview Scheduled", StatusInterviewScheduled, false},
		{"REJECTED", StatusRejected, false},
		{"hired", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseStatus(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStatus(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
