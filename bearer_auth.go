package basicauth

import (
	"context"
	"sync/atomic"

	"google.golang.org/grpc/credentials"
)

// bearerAuth implements credentials.PerRPCCredentials for every call after
// the handshake. The token is set once the handshake succeeds.
type bearerAuth struct {
	token    atomic.Value // string
	insecure bool
}

var _ credentials.PerRPCCredentials = (*bearerAuth)(nil)

func (a *bearerAuth) set(token string) {
	a.token.Store(token)
}

func (a *bearerAuth) get() string {
	t, _ := a.token.Load().(string)
	return t
}

func (a *bearerAuth) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	ri, ok := credentials.RequestInfoFromContext(ctx)
	if ok && IsHandshake(ri.Method) {
		return map[string]string{}, nil
	}
	token := a.get()
	if token == "" {
		// the server rejects the call
		return map[string]string{}, nil
	}
	return map[string]string{AuthorizationHeader: BearerPrefix + token}, nil
}

func (a *bearerAuth) RequireTransportSecurity() bool {
	return !a.insecure
}
