package fakeapi

import (
	"context"
	"net/http/httptest"
	"testing"

	"expensectl/internal/model"
)

func withIdentity(ctx context.Context, who model.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, who)
}

func identityFrom(ctx context.Context) model.Identity {
	who, _ := ctx.Value(ctxKey{}).(model.Identity)
	return who
}

// Start serves s on an httptest server that is closed when the test ends.
func Start(t testing.TB, s *Server) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}
