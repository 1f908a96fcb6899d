package workflow

import (
	"errors"
	"testing"
)

func TestParseTrigger(t *testing.T) {
	tests := []struct {
		input string
		want  Trigger
		ok    bool
	}{
		{"APPROVE", TriggerApprove, true},
		{"approve", TriggerApprove, true},
		{" Reject ", TriggerReject, true},
		{"CANCEL", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseTrigger(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseTrigger(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDecide_FromPending(t *testing.T) {
	tests := []struct {
		trigger Trigger
		want    string
	}{
		{TriggerApprove, "APPROVED"},
		{TriggerReject, "REJECTED"},
	}

	for _, tt := range tests {
		t.Run(tt.trigger.String(), func(t *testing.T) {
			next, err := Decide("PENDING", tt.trigger)
			if err != nil {
				t.Fatalf("Decide() failed: %v", err)
			}
			if next != tt.want {
				t.Errorf("Decide() = %v, want %v", next, tt.want)
			}
		})
	}
}

func TestDecide_TerminalStatesRejectEverything(t *testing.T) {
	for _, status := range []string{"APPROVED", "REJECTED", "UNKNOWN", ""} {
		t.Run(status, func(t *testing.T) {
			next, err := Decide(status, TriggerApprove)
			if next != status {
				t.Errorf("Decide() should keep status, got %v", next)
			}
			var transitionErr *TransitionError
			if !errors.As(err, &transitionErr) {
				t.Fatalf("Decide() error = %v, want *TransitionError", err)
			}
			if transitionErr.From != State(status) {
				t.Errorf("TransitionError.From = %v, want %v", transitionErr.From, status)
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Decide() error should wrap ErrInvalidTransition")
			}
		})
	}
}

func TestDecide_UnknownTrigger(t *testing.T) {
	if _, err := Decide("PENDING", Trigger("CANCEL")); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Decide() error = %v, want ErrInvalidTransition", err)
	}
}
