package basicauth

import (
	"context"
	"crypto/subtle"

	"github.com/pkg/errors"
)

var errInvalidCredentials = errors.New("invalid username or password")

// Validator checks a username/password pair presented during the handshake.
type Validator interface {
	Validate(ctx context.Context, username, password string) error
}

// StaticUsers is a Validator over a fixed username to password table.
type StaticUsers map[string]string

// Validate implements Validator.
func (u StaticUsers) Validate(_ context.Context, username, password string) error {
	want, ok := u[username]
	match := subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1
	if !ok || !match {
		return errInvalidCredentials
	}
	return nil
}
