package basicauth

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"google.golang.org/grpc/credentials"
)

const (
	// AuthorizationHeader is the metadata key carrying credentials.
	// gRPC lowercases it on the wire.
	AuthorizationHeader = "Authorization"
	// BasicPrefix is the scheme prefix of the handshake credential.
	BasicPrefix = "Basic "
	// BearerPrefix is the scheme prefix of the session token.
	BearerPrefix = "Bearer "
)

// EncodingError is returned when a credential cannot be encoded as text.
// It names the offending field but never carries its value.
type EncodingError struct {
	Field string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("basicauth: %s is not valid UTF-8", e.Field)
}

// BasicCredentials implements credentials.PerRPCCredentials.
// It sends the username and password only on the handshake call.
type BasicCredentials struct {
	username, password string
	insecure           bool
}

var _ credentials.PerRPCCredentials = (*BasicCredentials)(nil)

// NewBasicCredentials returns credentials for the given pair. Any string,
// including the empty string, is accepted.
func NewBasicCredentials(username, password string) *BasicCredentials {
	return &BasicCredentials{username: username, password: password}
}

// WithInsecure returns a copy that allows being sent over an insecure transport.
func (c *BasicCredentials) WithInsecure(insecure bool) *BasicCredentials {
	cp := *c
	cp.insecure = insecure
	return &cp
}

// Authorize returns the headers to attach to a call of the given full method
// name. Calls other than the handshake get an empty, non-nil set.
func (c *BasicCredentials) Authorize(method string) (map[string]string, error) {
	if !IsHandshake(method) {
		return map[string]string{}, nil
	}
	value, err := encodeBasic(c.username, c.password)
	if err != nil {
		return nil, err
	}
	return map[string]string{AuthorizationHeader: value}, nil
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (c *BasicCredentials) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	ri, ok := credentials.RequestInfoFromContext(ctx)
	if !ok {
		return map[string]string{}, nil
	}
	return c.Authorize(ri.Method)
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
func (c *BasicCredentials) RequireTransportSecurity() bool {
	return !c.insecure
}

// IsHandshake reports whether method names the handshake call. The match is
// case-insensitive on the full name.
func IsHandshake(method string) bool {
	return strings.EqualFold(method, HandshakeMethod)
}

func encodeBasic(username, password string) (string, error) {
	if !utf8.ValidString(username) {
		return "", &EncodingError{Field: "username"}
	}
	if !utf8.ValidString(password) {
		return "", &EncodingError{Field: "password"}
	}
	return BasicPrefix + base64.StdEncoding.EncodeToString([]byte(username+":"+password)), nil
}

var (
	errMissingCredentials = errors.New("missing credentials")
	errWrongScheme        = errors.New("unsupported authorization scheme")
	errMalformedBasic     = errors.New("malformed basic credentials")
)

// parseBasic is the server-side inverse of encodeBasic. The username ends at
// the first colon, so a password may contain colons and a username may not.
func parseBasic(header string) (username, password string, err error) {
	if header == "" {
		return "", "", errMissingCredentials
	}
	if !equalFoldPrefix(header, BasicPrefix) {
		return "", "", errWrongScheme
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(BasicPrefix):]))
	if err != nil {
		return "", "", errors.Wrap(err, "malformed basic credentials")
	}
	username, password, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", "", errMalformedBasic
	}
	return username, password, nil
}

// equalFoldPrefix reports whether s starts with prefix, ignoring case.
func equalFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
