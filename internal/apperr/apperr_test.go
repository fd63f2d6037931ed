package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_ThroughWrapping(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("dispatch: %w", Wrap(KindGateway, "gateway.Dispatch", base))

	if got := KindOf(err); got != KindGateway {
		t.Fatalf("expected gateway kind, got %s", got)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	if KindOf(base) != KindUnknown {
		t.Fatalf("plain errors must be unknown kind")
	}
	if Is(nil, KindGateway) {
		t.Fatalf("nil error has no kind")
	}
}

func TestErrorAndDetail(t *testing.T) {
	e := New(KindPlanDenied, "plan.Authorize", "upgrade required")
	if e.Error() != "plan.Authorize: plan_denied: upgrade required" {
		t.Fatalf("unexpected message: %q", e.Error())
	}
	if Detail(e) != "upgrade required" {
		t.Fatalf("unexpected detail: %q", Detail(e))
	}

	w := &Error{Kind: KindAuth, Message: "token expired", Err: errors.New("exp")}
	if Detail(w) != "token expired: exp" {
		t.Fatalf("unexpected detail: %q", Detail(w))
	}
	if Detail(errors.New("plain")) != "plain" {
		t.Fatalf("plain detail mismatch")
	}
}
