package dataapi

import (
	"net/http"
)

// Doer is the HTTP session used to talk to the org. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// session is either borrowed from the caller, who keeps ownership of it, or owned by
// the client for the span of a single request.
type session struct {
	shared Doer
}

func borrowedSession(doer Doer) session {
	return session{shared: doer}
}

// acquire returns the session to use for one request and a release func that must be
// called once the response body has been consumed. Only owned sessions are closed.
func (s session) acquire() (Doer, func()) {
	if s.shared != nil {
		return s.shared, func() {}
	}

	owned := &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	return owned, owned.CloseIdleConnections
}
