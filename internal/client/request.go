package client

import "net/http"

// Request is the authorization variant of an outgoing call.
type Request interface {
	apply(*http.Request)
	Authorized() bool
}

// AnonymousRequest carries no credentials.
type AnonymousRequest struct{}

func (AnonymousRequest) apply(*http.Request) {}

// Authorized reports false.
func (AnonymousRequest) Authorized() bool { return false }

// AuthorizedRequest carries a bearer token.
type AuthorizedRequest struct {
	Token string
}

func (r AuthorizedRequest) apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+r.Token)
}

// Authorized reports true.
func (AuthorizedRequest) Authorized() bool { return true }

// Anonymous returns the unauthenticated variant.
func Anonymous() Request {
	return AnonymousRequest{}
}

// Bearer returns the authorized variant for token.
func Bearer(token string) Request {
	return AuthorizedRequest{Token: token}
}
