// Package main wires up and runs the device-model server: a gRPC
// listener and a REST/SSE listener, both driven by the same
// internal/handlers.Handlers over a shared internal/device.Registry,
// grounded on the teacher's cmd/server/main.go (config.Initialize, glog,
// SIGINT/SIGTERM handling, Stop/ForceStop with a shutdown-timeout race).
//
// Available command-line flags:
//
//	-grpc-port int
//	    Port to serve the gRPC device-model service on (default 9090)
//	-rest-port int
//	    Port to serve the REST/SSE device-model service on (default 8080)
//	-unix-socket string
//	    Optional unix domain socket to additionally serve gRPC on
//	-auth-required
//	    Require a verified bearer token on every request
//	-device-description string
//	    Path to the YAML device-description file to load (its slot field sets the slot)
//	-asset-root string
//	    Filesystem root AssetRequest resolves external-object fqoids against
//	-shutdown-timeout duration
//	    Maximum time to wait for graceful shutdown (default 10s)
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"github.com/device-model/server/internal/asset"
	"github.com/device-model/server/internal/authn"
	"github.com/device-model/server/internal/config"
	"github.com/device-model/server/internal/device"
	"github.com/device-model/server/internal/devicedesc"
	"github.com/device-model/server/internal/grpcserver"
	"github.com/device-model/server/internal/handlers"
	"github.com/device-model/server/internal/restserver"
)

func main() {
	config.Initialize()
	defer glog.Flush()

	if err := authn.SeedDevKey(); err != nil {
		glog.Fatalf("Failed to seed dev token signing key: %v", err)
	}

	registry := device.NewRegistry()
	if config.Global.DeviceDesc != "" {
		dev, err := devicedesc.Load(config.Global.DeviceDesc)
		if err != nil {
			glog.Fatalf("Failed to load device description %s: %v", config.Global.DeviceDesc, err)
		}
		registry.Put(dev)
		glog.Infof("Loaded device description %s into slot %d", config.Global.DeviceDesc, dev.Slot())
	} else {
		glog.Warning("No -device-description given; starting with no populated slots")
	}

	h := handlers.New(registry)

	var assets *asset.Store
	if config.Global.AssetRoot != "" {
		assets = asset.New(config.Global.AssetRoot)
	}

	grpcSrv, err := grpcserver.NewServer(&grpcserver.Config{
		Port:         config.Global.GRPCPort,
		UnixSocket:   config.Global.UnixSocket,
		AuthRequired: config.Global.AuthRequired,
	}, h)
	if err != nil {
		glog.Fatalf("Failed to create gRPC server: %v", err)
	}

	restSrv := restserver.New(h, restserver.Config{
		Port:         config.Global.RESTPort,
		AuthRequired: config.Global.AuthRequired,
		Assets:       assets,
	})

	glog.Infof("Starting device-model server: grpc-port=%d rest-port=%d auth-required=%t",
		config.Global.GRPCPort, config.Global.RESTPort, config.Global.AuthRequired)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 2)
	go func() { errChan <- grpcSrv.Serve() }()
	go func() { errChan <- restSrv.Serve() }()

	select {
	case err := <-errChan:
		if err != nil {
			glog.Fatalf("Server error: %v", err)
		}
	case sig := <-signalChan:
		glog.Infof("Received signal: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), config.Global.ShutdownTimeout)
		defer cancel()

		done := make(chan struct{})
		go func() {
			grpcSrv.Stop()
			if err := restSrv.Stop(ctx); err != nil {
				glog.Errorf("REST server shutdown error: %v", err)
			}
			close(done)
		}()

		select {
		case <-ctx.Done():
			glog.Warning("Shutdown timed out, forcing exit")
			grpcSrv.ForceStop()
		case <-done:
			glog.Info("Graceful shutdown completed")
		}
	}
}
