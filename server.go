package basicauth // import "github.com/chuangbo/basicauth"

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type userKey struct{}

// Server exchanges Basic credentials for bearer tokens and serves the
// bearer-protected AuthService methods.
type Server struct {
	GRPCAddr, MetricsAddr string

	CertFile, KeyFile string

	Users  Validator
	Tokens *TokenIssuer
	Logger *zap.Logger

	mu         sync.Mutex // protects grpcServer and httpServer
	grpcServer *grpc.Server
	httpServer *http.Server
}

// NewServer builds a server from a validated config.
func NewServer(cfg Config, logger *zap.Logger) (*Server, error) {
	ttl, err := cfg.TTL()
	if err != nil {
		return nil, err
	}
	tokens, err := NewTokenIssuer([]byte(cfg.TokenSecret), ttl)
	if err != nil {
		return nil, err
	}
	return &Server{
		GRPCAddr:    cfg.Listen,
		MetricsAddr: cfg.MetricsListen,
		CertFile:    cfg.CertFile,
		KeyFile:     cfg.KeyFile,
		Users:       cfg.StaticUsers(),
		Tokens:      tokens,
		Logger:      logger,
	}, nil
}

// ListenAndServe loads the config at path and serves until the server fails
func ListenAndServe(path string) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	logger := NewLogger(cfg.LogFile)
	defer logger.Sync()

	server, err := NewServer(cfg, logger)
	if err != nil {
		return err
	}
	if err := server.ListenAndServe(); err != nil {
		return errors.Wrap(err, "could not listen and serve")
	}
	return nil
}

// ListenAndServe listens on the grpc addr, and on the metrics addr when set
func (s *Server) ListenAndServe() error {
	lis, err := net.Listen("tcp", s.GRPCAddr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen grpc on %s", s.GRPCAddr)
	}

	if s.MetricsAddr != "" {
		s.mu.Lock()
		s.httpServer = &http.Server{
			Addr:              s.MetricsAddr,
			Handler:           MetricsHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		hs := s.httpServer
		s.mu.Unlock()

		go func() {
			s.logger().Info("starting metrics server", zap.String("addr", s.MetricsAddr))
			if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger().Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	return s.Serve(lis)
}

// Serve accepts grpc connections on lis
func (s *Server) Serve(lis net.Listener) error {
	gs, err := s.NewGRPCServer()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.grpcServer = gs
	s.mu.Unlock()

	s.logger().Info("starting grpc server", zap.String("addr", lis.Addr().String()))
	if err := gs.Serve(lis); err != nil {
		return errors.Wrapf(err, "failed to serve grpc on %s", lis.Addr())
	}
	return nil
}

// NewGRPCServer returns a grpc server with AuthService registered and the
// bearer interceptor installed.
func (s *Server) NewGRPCServer() (*grpc.Server, error) {
	if s.Users == nil || s.Tokens == nil {
		return nil, errors.New("server requires users and a token issuer")
	}

	opts := []grpc.ServerOption{grpc.UnaryInterceptor(s.authorize)}

	if s.CertFile != "" && s.KeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(s.CertFile, s.KeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "certificates invalid")
		}
		opts = append(opts, grpc.Creds(creds))
	}

	gs := grpc.NewServer(opts...)
	RegisterAuthServiceServer(gs, s)
	return gs, nil
}

// Shutdown stops the servers gracefully
func (s *Server) Shutdown() error {
	s.mu.Lock()
	gs, hs := s.grpcServer, s.httpServer
	s.mu.Unlock()

	if gs != nil {
		gs.GracefulStop()
	}
	if hs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(ctx); err != nil {
			return errors.Wrap(err, "could not shutdown metrics server")
		}
	}
	return nil
}

// Handshake checks the Basic credentials and issues a bearer token
func (s *Server) Handshake(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	ok, err := checkVersionCompatible(req.GetValue())
	if err != nil {
		handshakesTotal.WithLabelValues("bad_version").Inc()
		return nil, status.Errorf(codes.InvalidArgument, "invalid client version %q", req.GetValue())
	}
	if !ok {
		handshakesTotal.WithLabelValues("incompatible").Inc()
		return nil, status.Errorf(codes.FailedPrecondition,
			"client version %s not in [%s, %s]", req.GetValue(), MinClientVersion, Version)
	}

	username, password, err := parseBasic(firstHeader(ctx, AuthorizationHeader))
	if err != nil {
		handshakesTotal.WithLabelValues("malformed").Inc()
		s.logger().Info("handshake rejected", zap.Error(err))
		return nil, status.Error(codes.Unauthenticated, "basic credentials required")
	}

	if err := s.Users.Validate(ctx, username, password); err != nil {
		handshakesTotal.WithLabelValues("denied").Inc()
		s.logger().Info("handshake rejected", zap.Error(err))
		return nil, status.Error(codes.Unauthenticated, "invalid username or password")
	}

	token, err := s.Tokens.Issue(username)
	if err != nil {
		handshakesTotal.WithLabelValues("error").Inc()
		s.logger().Error("could not issue token", zap.Error(err))
		return nil, status.Error(codes.Internal, "could not issue token")
	}

	handshakesTotal.WithLabelValues("ok").Inc()
	return wrapperspb.String(token), nil
}

// Whoami returns the user the caller's token was issued to
func (s *Server) Whoami(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	username, ok := ctx.Value(userKey{}).(string)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "valid token required")
	}
	return wrapperspb.String(username), nil
}

// authorize requires a valid bearer token on every call but the handshake.
func (s *Server) authorize(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if IsHandshake(info.FullMethod) {
		return handler(ctx, req)
	}

	username, err := s.Authenticated(firstHeader(ctx, AuthorizationHeader))
	if err != nil {
		authorizedCallsTotal.WithLabelValues(info.FullMethod, "denied").Inc()
		return nil, status.Error(codes.Unauthenticated, "valid token required")
	}

	authorizedCallsTotal.WithLabelValues(info.FullMethod, "ok").Inc()
	return handler(context.WithValue(ctx, userKey{}, username), req)
}

// Authenticated checks a bearer authorization header and returns its user
func (s *Server) Authenticated(header string) (string, error) {
	if len(header) <= len(BearerPrefix) || !equalFoldPrefix(header, BearerPrefix) {
		return "", errInvalidToken
	}
	return s.Tokens.Verify(header[len(BearerPrefix):])
}

func (s *Server) logger() *zap.Logger {
	return nopIfNil(s.Logger)
}

func firstHeader(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	// metadata.MD.Get lowercases the key
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}
