package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := Configuration("regrid", "unknown interpolation %q", "quintic")
	want := `[CONFIGURATION regrid] unknown interpolation "quintic"`
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}

	cause := errors.New("disk full")
	wrapped := IO("write", cause, "cannot append rows")
	if !errors.Is(wrapped, cause) {
		t.Fatal("expected wrapped error to unwrap to cause")
	}
	if got := wrapped.Error(); got != "[IO write] cannot append rows: disk full" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestIsAndKindOf(t *testing.T) {
	err := fmt.Errorf("setup: %w", Selection("resolve", "no data description left"))

	if !Is(err, KindSelection) {
		t.Fatal("expected selection kind")
	}
	if Is(err, KindStructural) {
		t.Fatal("unexpected structural kind")
	}
	if KindOf(err) != KindSelection {
		t.Fatalf("KindOf = %q", KindOf(err))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatal("plain errors have no kind")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(KindIO, "op", nil, "msg") != nil {
		t.Fatal("Wrap(nil) must return nil")
	}
}
