package domain

import (
	"context"
	"time"
)

// Credential is the token used for web service calls together with the
// server it was issued by.
type Credential struct {
	Server   string    `json:"server"`
	Token    string    `json:"token"`
	Username string    `json:"username,omitempty"`
	Created  time.Time `json:"created,omitempty"`
}

// RemoteFunctionCall names a web service function and its parameters.
type RemoteFunctionCall struct {
	Function string
	Params   Value
}

type Transport interface {
	// Call invokes the function and returns the decoded response.
	Call(ctx context.Context, cred Credential, call RemoteFunctionCall) (Value, error)
	// CallRaw invokes the function and returns the response body untouched.
	CallRaw(ctx context.Context, cred Credential, call RemoteFunctionCall) ([]byte, error)
}

type TokenFetcher interface {
	FetchToken(ctx context.Context, server, username, password, service string) (string, error)
}

type TokenStore interface {
	SaveToken(ctx context.Context, cred Credential) error
	ReadToken(ctx context.Context, server string) (Credential, error)
	DeleteToken(ctx context.Context, server string) error
	Close() error
}

// Directory finds people outside the site so they can be registered.
type Directory interface {
	LookupUser(ctx context.Context, username string) (NewUser, error)
}
