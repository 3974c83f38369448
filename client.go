package basicauth // import "github.com/chuangbo/basicauth"

import (
	"context"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const handshakeTimeout = 3 * time.Second

// Client authenticates against a basicauth server with a username and
// password, and uses the issued bearer token for every later call.
type Client struct {
	Server, CertFile string
	ServerPort       int
	Insecure         bool

	Username, Password string

	// Target overrides Server:ServerPort as the grpc dial target.
	Target string
	// DialOptions are appended to the options built by Dial.
	DialOptions []grpc.DialOption

	Logger *zap.Logger

	bearer bearerAuth
	gc     *grpc.ClientConn
	ac     AuthServiceClient
}

// Dial connects the server at server:port and performs the handshake
func Dial(server string, port int, username, password string) (*Client, error) {
	c := &Client{Server: server, ServerPort: port, Username: username, Password: password}
	return c, c.Dial()
}

// Dial connects the server and performs the handshake
func (c *Client) Dial() error {
	target := c.Target
	if target == "" {
		target = fmt.Sprintf("%s:%d", c.Server, c.ServerPort)
	}

	var opt grpc.DialOption

	if c.Insecure {
		opt = grpc.WithTransportCredentials(insecure.NewCredentials())
	} else {
		creds, err := c.GetTransportCredentials()
		if err != nil {
			return errors.Wrapf(err, "could not get transport credentials")
		}

		opt = grpc.WithTransportCredentials(creds)
	}

	c.bearer.insecure = c.Insecure
	opts := append([]grpc.DialOption{
		opt,
		grpc.WithPerRPCCredentials(NewBasicCredentials(c.Username, c.Password).WithInsecure(c.Insecure)),
		grpc.WithPerRPCCredentials(&c.bearer),
	}, c.DialOptions...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return errors.Wrapf(err, "failed to connect server %s", target)
	}

	c.gc = conn
	c.ac = NewAuthServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()
	if err := c.Handshake(ctx); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// Close closes the connection to the server
func (c *Client) Close() error {
	if c.gc == nil {
		return nil
	}
	return c.gc.Close()
}

// GetTransportCredentials returns tls credentials from cert file or system root ca
func (c *Client) GetTransportCredentials() (creds credentials.TransportCredentials, err error) {
	if c.CertFile != "" {
		creds, err = credentials.NewClientTLSFromFile(c.CertFile, "")
	} else {
		rootCAs, err := x509.SystemCertPool()
		if err != nil {
			return nil, err
		}
		creds = credentials.NewClientTLSFromCert(rootCAs, "")
	}
	return
}

// Handshake exchanges the username and password for a bearer token.
func (c *Client) Handshake(ctx context.Context) error {
	if c.ac == nil {
		return errors.New("could not handshake on a non-connected client")
	}
	c.logger().Info("handshaking", zap.String("version", Version))
	r, err := c.ac.Handshake(ctx, wrapperspb.String(Version))
	if err != nil {
		return errors.Wrap(err, "handshake failed")
	}
	c.bearer.set(r.GetValue())
	c.logger().Info("handshake succeeded")
	return nil
}

// Whoami asks the server which user the session belongs to.
func (c *Client) Whoami(ctx context.Context) (string, error) {
	if c.ac == nil {
		return "", errors.New("could not call a non-connected client")
	}
	r, err := c.ac.Whoami(ctx, &emptypb.Empty{})
	if err != nil {
		return "", errors.Wrap(err, "whoami failed")
	}
	return r.GetValue(), nil
}

// Token returns the bearer token of the current session, empty before the handshake.
func (c *Client) Token() string {
	return c.bearer.get()
}

func (c *Client) logger() *zap.Logger {
	return nopIfNil(c.Logger)
}
