package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestOf(t *testing.T) {
	cause := errors.New("adc stuck")
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, OK},
		{"bare code", Timeout, Timeout},
		{"wrapped", Wrap(Timeout, "sample", cause), Timeout},
		{"foreign", cause, Error},
		{"fmt wrapped code", fmt.Errorf("exchange: %w", Timeout), Timeout},
		{"fmt wrapped E", fmt.Errorf("set: %w", Wrap(InvalidParams, "set_time", cause)), InvalidParams},
		{"fmt wrapped foreign", fmt.Errorf("read: %w", cause), Error},
	}
	for _, tc := range cases {
		if got := Of(tc.err); got != tc.want {
			t.Errorf("%s: Of() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestWrapUnwrapAndMessage(t *testing.T) {
	cause := errors.New("bad hour")
	e := Wrap(InvalidParams, "set_time", cause)
	if !errors.Is(e, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
	if got := e.Error(); got != "set_time: invalid_params: bad hour" {
		t.Fatalf("unexpected message %q", got)
	}
}
