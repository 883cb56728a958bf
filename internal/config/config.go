// Package config holds global, flag-populated configuration for the
// device-model server, in the same shape and Initialize()-populates-a-
// package-global idiom as the teacher's
// sonic-gnmi-standalone/internal/config package.
package config

import (
	"flag"
	"time"

	"github.com/golang/glog"
)

// Config holds every flag-derived setting the server's main needs to
// build its transports and load its device(s).
type Config struct {
	GRPCPort        int
	RESTPort        int
	UnixSocket      string
	AuthRequired    bool
	DeviceDesc      string
	AssetRoot       string
	ShutdownTimeout time.Duration
}

// Global is populated once by Initialize and read by main.
var Global *Config

// Initialize defines flags, parses them, and populates Global. Call once
// from main before constructing any server.
func Initialize() {
	grpcPort := flag.Int("grpc-port", 9090, "Port to serve the gRPC device-model service on")
	restPort := flag.Int("rest-port", 8080, "Port to serve the REST/SSE device-model service on")
	unixSocket := flag.String("unix-socket", "", "Optional unix domain socket to additionally serve gRPC on")
	authRequired := flag.Bool("auth-required", false, "Require a verified bearer token on every request")
	deviceDesc := flag.String("device-description", "", "Path to the YAML device-description file to load (its slot field sets the slot)")
	assetRoot := flag.String("asset-root", "", "Filesystem root AssetRequest resolves external-object fqoids against")
	shutdownTimeout := flag.Duration("shutdown-timeout", 10*time.Second, "Maximum time to wait for graceful shutdown")

	flag.Parse()

	Global = &Config{
		GRPCPort:        *grpcPort,
		RESTPort:        *restPort,
		UnixSocket:      *unixSocket,
		AuthRequired:    *authRequired,
		DeviceDesc:      *deviceDesc,
		AssetRoot:       *assetRoot,
		ShutdownTimeout: *shutdownTimeout,
	}
	glog.V(1).Infof("config: grpc-port=%d rest-port=%d auth-required=%t device-description=%q asset-root=%q",
		Global.GRPCPort, Global.RESTPort, Global.AuthRequired, Global.DeviceDesc, Global.AssetRoot)
}
