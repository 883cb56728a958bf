package grpcserver

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	log "github.com/golang/glog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/reflection"

	"github.com/device-model/server/internal/handlers"
	"github.com/device-model/server/internal/subscription"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Config mirrors the teacher's gnmi_server.Config shape: an optional TCP
// port and an optional Unix domain socket, either or both configured.
type Config struct {
	Port         int
	UnixSocket   string
	AuthRequired bool
	ServerOpts   []grpc.ServerOption
}

// Server manages a device-model gRPC listener, optionally dual-homed over
// TCP and a Unix domain socket (spec §6, grounded on
// gnmi_server/server.go's NewServer/Serve/Stop/ForceStop).
type Server struct {
	s           *grpc.Server
	lis         net.Listener
	udsServer   *grpc.Server
	udsListener net.Listener
	config      *Config
}

// NewServer builds listeners per Config and registers the device-model
// service on each configured transport.
func NewServer(config *Config, h *handlers.Handlers) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("grpcserver: config not provided")
	}
	svc := &deviceModelService{
		h:             h,
		authRequired:  config.AuthRequired,
		subscriptions: subscription.NewRegistry(),
	}

	srv := &Server{config: config}

	if config.Port > 0 {
		srv.s = grpc.NewServer(config.ServerOpts...)
		reflection.Register(srv.s)
		srv.s.RegisterService(&serviceDesc, svc)

		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", config.Port))
		if err != nil {
			return nil, fmt.Errorf("grpcserver: listening on port %d: %w", config.Port, err)
		}
		srv.lis = lis
	}

	if config.UnixSocket != "" {
		srv.udsServer = grpc.NewServer(config.ServerOpts...)
		reflection.Register(srv.udsServer)
		srv.udsServer.RegisterService(&serviceDesc, svc)

		if err := os.MkdirAll(filepath.Dir(config.UnixSocket), 0o750); err != nil {
			srv.closeListeners()
			return nil, fmt.Errorf("grpcserver: creating socket directory: %w", err)
		}
		os.Remove(config.UnixSocket)
		lis, err := net.Listen("unix", config.UnixSocket)
		if err != nil {
			srv.closeListeners()
			return nil, fmt.Errorf("grpcserver: listening on unix socket %s: %w", config.UnixSocket, err)
		}
		srv.udsListener = lis
	}

	if srv.lis == nil && srv.udsListener == nil {
		return nil, fmt.Errorf("grpcserver: no listener configured: set Port or UnixSocket")
	}
	return srv, nil
}

func (srv *Server) closeListeners() {
	if srv.lis != nil {
		srv.lis.Close()
	}
	if srv.udsListener != nil {
		srv.udsListener.Close()
	}
}

// Serve blocks serving every configured listener until one exits.
func (srv *Server) Serve() error {
	errChan := make(chan error, 2)
	started := 0

	if srv.s != nil && srv.lis != nil {
		started++
		go func() {
			log.V(1).Infof("grpcserver: listening on %s", srv.lis.Addr())
			errChan <- srv.s.Serve(srv.lis)
		}()
	}
	if srv.udsServer != nil && srv.udsListener != nil {
		started++
		go func() {
			log.V(1).Infof("grpcserver: listening on %s", srv.udsListener.Addr())
			errChan <- srv.udsServer.Serve(srv.udsListener)
		}()
	}
	if started == 0 {
		return fmt.Errorf("grpcserver: Serve called with no listeners")
	}
	return <-errChan
}

// Stop gracefully stops every listener, waiting for in-flight RPCs.
func (srv *Server) Stop() {
	if srv.s != nil {
		srv.s.GracefulStop()
	}
	if srv.udsServer != nil {
		srv.udsServer.GracefulStop()
	}
	srv.cleanupSocket()
}

// ForceStop stops immediately, dropping in-flight RPCs.
func (srv *Server) ForceStop() {
	if srv.s != nil {
		srv.s.Stop()
	}
	if srv.udsServer != nil {
		srv.udsServer.Stop()
	}
	srv.cleanupSocket()
}

func (srv *Server) cleanupSocket() {
	if srv.config.UnixSocket != "" {
		os.Remove(srv.config.UnixSocket)
	}
}
