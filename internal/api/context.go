package api

import (
	"context"
	"net/http"
	"strings"
)

const (
	headerClientID = "X-Client-Id"
	queryClientID  = "clientId"

	maxClientIDLen = 128
)

type clientIDKey struct{}

// ClientIDFromRequest returns the peer id a request announces, from the
// X-Client-Id header or else the clientId query parameter. Ids that are
// blank or longer than 128 bytes count as absent.
func ClientIDFromRequest(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(headerClientID))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get(queryClientID))
	}

	if len(id) > maxClientIDLen {
		return ""
	}

	return id
}

// ClientIDFromContext returns the peer id stored by the client middleware,
// or "" when the peer announced none.
func ClientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey{}).(string)

	return id
}

func withClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, clientID)
}
