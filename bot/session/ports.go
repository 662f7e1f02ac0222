package session

import "context"

// Handle is a live connection for one linked account. Handles are owned by
// the supervisor and must only be touched from the run loop goroutine.
type Handle interface {
	Phone() string
	// Ping checks that the connection is still usable.
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// LoginFlow is an in-progress interactive link started by BeginLogin. Submit
// finishes it with the confirmation code the user received.
type LoginFlow interface {
	Submit(ctx context.Context, code string) (Handle, error)
	Abort(ctx context.Context) error
}

// Dialer opens connections for the supervisor. Implementations wrap the
// actual wire client; the supervisor only sees these two entry points.
type Dialer interface {
	// Dial restores a connection from a saved credential artifact.
	Dial(ctx context.Context, phone, credentialPath string) (Handle, error)
	// BeginLogin starts a fresh interactive link for a number that has no
	// usable credential artifact yet.
	BeginLogin(ctx context.Context, phone, credentialPath string) (LoginFlow, error)
}
