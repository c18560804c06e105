package permanent

import (
	"errors"
	"fmt"
	"testing"
)

func TestMarkAndIs(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("unknown transition")
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: sentinel, want: false},
		{name: "marked", err: Mark(sentinel), want: true},
		{name: "wrapped marked", err: fmt.Errorf("handle: %w", Mark(sentinel)), want: true},
		{name: "errorf", err: Errorf(sentinel, "quote %s", "Q1"), want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Is(tt.err); got != tt.want {
				t.Fatalf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorfKeepsSentinel(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("no message applies")
	err := Errorf(sentinel, "trigger %s", "birthday")
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel to stay reachable")
	}
	if err.Error() != "no message applies: trigger birthday" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if Mark(nil) != nil {
		t.Fatalf("Mark(nil) must be nil")
	}
}
