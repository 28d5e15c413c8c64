package auth

import (
	"context"
	"testing"

	"github.com/2389/shelf-gateway/internal/store"
)

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()
	if p := FromContext(ctx); p != nil {
		t.Errorf("FromContext() on empty context = %+v, want nil", p)
	}

	want := &Principal{ID: "u1", Role: store.RoleUser}
	ctx = WithPrincipal(ctx, want)
	if got := FromContext(ctx); got != want {
		t.Errorf("FromContext() = %+v, want %+v", got, want)
	}

	var nilPrincipal *Principal
	if nilPrincipal.IsAdmin() {
		t.Error("nil principal reported as admin")
	}
}
