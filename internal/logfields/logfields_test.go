package logfields

import (
	"errors"
	"testing"
)

func TestErrorAttrNil(t *testing.T) {
	a := Error(nil)
	if a.Key != KeyError {
		t.Fatalf("expected key %q got %q", KeyError, a.Key)
	}
	if a.Value.String() != "" {
		t.Fatalf("expected empty value for nil error, got %q", a.Value.String())
	}
}

func TestErrorAttrNonNil(t *testing.T) {
	a := Error(errors.New("boom"))
	if a.Value.String() != "boom" {
		t.Fatalf("expected 'boom', got %q", a.Value.String())
	}
}

func TestAttrKeysMatchConstants(t *testing.T) {
	cases := []struct {
		got  string
		want string
	}{
		{Task("t").Key, KeyTask},
		{Round(1).Key, KeyRound},
		{Nonce("n").Key, KeyNonce},
		{Repository("r").Key, KeyRepo},
		{Stage("s").Key, KeyStage},
		{Attempt(2).Key, KeyAttempt},
		{Outcome("created").Key, KeyOutcome},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Fatalf("attr key mismatch: got %q want %q", c.got, c.want)
		}
	}
}
