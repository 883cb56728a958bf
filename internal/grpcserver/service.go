package grpcserver

import (
	"context"
	"io"

	log "github.com/golang/glog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/device-model/server/internal/authn"
	"github.com/device-model/server/internal/authz"
	"github.com/device-model/server/internal/connectdispatch"
	"github.com/device-model/server/internal/handlers"
	"github.com/device-model/server/internal/reqctx"
	"github.com/device-model/server/internal/subscription"
	"github.com/device-model/server/internal/wire"
)

// deviceModelService implements every RPC contract from spec §4.7/§6
// against a shared Handlers instance. It is registered manually as a
// grpc.ServiceDesc (serviceDesc below) instead of through generated
// stub code, matching the hand-rolled JSON wire representation chosen in
// codec.go.
type deviceModelService struct {
	h             *handlers.Handlers
	authRequired  bool
	subscriptions *subscription.Registry
}

// authorize pulls the bearer token out of incoming gRPC metadata, parses
// its claims (no signature check, per internal/authn's doc comment), and
// builds an Authorizer from the granted scopes (spec §4.1, §4.7).
func (s *deviceModelService) authorize(ctx context.Context) (*authz.Authorizer, error) {
	if !s.authRequired {
		return authz.Disabled, nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no metadata on request")
	}
	tokens := md.Get("authorization")
	if len(tokens) == 0 {
		return nil, status.Error(codes.Unauthenticated, "no bearer token provided")
	}
	claims, err := authn.ParseClaims(stripBearer(tokens[0]))
	if err != nil {
		return nil, err
	}
	return authz.FromRoles(claims.Scopes, true)
}

func stripBearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return header
}

func (s *deviceModelService) getValue(ctx context.Context, req *SlotOidRequest) (*GetValueResponse, error) {
	az, err := s.authorize(ctx)
	if err != nil {
		return nil, err
	}
	v, err := s.h.GetValue(req.Slot, req.Oid, az)
	if err != nil {
		return nil, wire.AsStatus(err).Err()
	}
	return &GetValueResponse{Value: v}, nil
}

func (s *deviceModelService) setValue(ctx context.Context, req *SetValueRequest) (*Empty, error) {
	az, err := s.authorize(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.h.SetValue(req.Slot, req.Oid, req.Value, az); err != nil {
		return nil, wire.AsStatus(err).Err()
	}
	return &Empty{}, nil
}

func (s *deviceModelService) multiSetValue(ctx context.Context, req *MultiSetValueRequest) (*Empty, error) {
	az, err := s.authorize(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.h.MultiSetValue(req.Slot, req.Values, az); err != nil {
		return nil, wire.AsStatus(err).Err()
	}
	return &Empty{}, nil
}

func (s *deviceModelService) getParam(ctx context.Context, req *SlotOidRequest) (*GetParamResponse, error) {
	az, err := s.authorize(ctx)
	if err != nil {
		return nil, err
	}
	pc, err := s.h.GetParam(req.Slot, req.Oid, az)
	if err != nil {
		return nil, wire.AsStatus(err).Err()
	}
	return &GetParamResponse{Param: *pc}, nil
}

func (s *deviceModelService) languagePackRequest(ctx context.Context, req *LanguagePackRequest) (*LanguagePackResponse, error) {
	if _, err := s.authorize(ctx); err != nil {
		return nil, err
	}
	pack, err := s.h.LanguagePackRequest(req.Slot, req.ID)
	if err != nil {
		return nil, wire.AsStatus(err).Err()
	}
	return &LanguagePackResponse{Pack: pack}, nil
}

func (s *deviceModelService) addLanguage(ctx context.Context, req *AddLanguageRequest) (*Empty, error) {
	az, err := s.authorize(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.h.AddLanguage(req.Slot, req.ID, req.Name, req.Pack.Words, az); err != nil {
		return nil, wire.AsStatus(err).Err()
	}
	return &Empty{}, nil
}

func (s *deviceModelService) languages(ctx context.Context, req *LanguagesRequest) (*LanguagesResponse, error) {
	if _, err := s.authorize(ctx); err != nil {
		return nil, err
	}
	list, err := s.h.Languages(req.Slot)
	if err != nil {
		return nil, wire.AsStatus(err).Err()
	}
	return &LanguagesResponse{Languages: list}, nil
}

func (s *deviceModelService) getPopulatedSlots(ctx context.Context, _ *Empty) (*SlotListResponse, error) {
	if _, err := s.authorize(ctx); err != nil {
		return nil, err
	}
	return &SlotListResponse{Slots: s.h.GetPopulatedSlots()}, nil
}

// deviceRequestStream drives a DeviceSerializer, writing one
// DeviceComponentResponse per yield (spec §4.7 DeviceRequest).
func (s *deviceModelService) deviceRequestStream(srv any, stream grpc.ServerStream) error {
	rc, _ := reqctx.GetContext(stream.Context())
	req := new(DeviceRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	az, err := s.authorize(stream.Context())
	if err != nil {
		return err
	}
	subs := subscription.New()
	for _, o := range req.SubscribedOids {
		subs.Add(o)
	}
	ser, err := s.h.DeviceRequest(req.Slot, req.DetailLevel, subs, req.Shallow, az)
	if err != nil {
		return wire.AsStatus(err).Err()
	}
	for ser.HasMore() {
		if isCancelled(stream.Context()) {
			log.V(1).Infof("[%s] DeviceRequest cancelled", rc.ID)
			return status.Error(codes.Canceled, "client cancelled")
		}
		comp, err := ser.GetNext()
		if err != nil {
			return wire.AsStatus(err).Err()
		}
		if comp == nil {
			break
		}
		if err := stream.SendMsg(&DeviceComponentResponse{Component: *comp}); err != nil {
			return err
		}
	}
	return nil
}

func (s *deviceModelService) paramInfoRequestStream(srv any, stream grpc.ServerStream) error {
	req := new(ParamInfoRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	az, err := s.authorize(stream.Context())
	if err != nil {
		return err
	}
	infos, err := s.h.ParamInfoRequest(req.Slot, req.Oid, req.Recursive, az)
	if err != nil {
		return wire.AsStatus(err).Err()
	}
	for _, info := range infos {
		if isCancelled(stream.Context()) {
			return status.Error(codes.Canceled, "client cancelled")
		}
		if err := stream.SendMsg(&ParamInfoResponse{Info: info}); err != nil {
			return err
		}
	}
	return nil
}

func (s *deviceModelService) executeCommandStream(srv any, stream grpc.ServerStream) error {
	req := new(ExecuteCommandRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	az, err := s.authorize(stream.Context())
	if err != nil {
		return err
	}
	responder, err := s.h.ExecuteCommand(req.Slot, req.Oid, req.Value, req.Respond, az)
	if err != nil {
		return wire.AsStatus(err).Err()
	}
	if !req.Respond || responder == nil {
		return stream.SendMsg(&CommandResponse{NoResponse: true})
	}
	for {
		if isCancelled(stream.Context()) {
			return status.Error(codes.Canceled, "client cancelled")
		}
		v, exc, ok := responder.Next()
		if !ok {
			return nil
		}
		resp := &CommandResponse{Response: v}
		if exc != nil {
			resp.Exception = &CommandException{Type: exc.Type, Details: exc.Details}
			resp.Response = nil
		}
		if err := stream.SendMsg(resp); err != nil {
			return err
		}
	}
}

func (s *deviceModelService) updateSubscriptionsStream(srv any, stream grpc.ServerStream) error {
	req := new(UpdateSubscriptionsRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	az, err := s.authorize(stream.Context())
	if err != nil {
		return err
	}
	subs := s.subscriptions.For(req.Slot, peerKey(stream.Context()))
	components, err := s.h.UpdateSubscriptions(req.Slot, subs, req.Add, req.Remove, az)
	if err != nil {
		return wire.AsStatus(err).Err()
	}
	for _, pc := range components {
		if err := stream.SendMsg(&GetParamResponse{Param: *pc}); err != nil {
			return err
		}
	}
	return nil
}

func (s *deviceModelService) connectStream(srv any, stream grpc.ServerStream) error {
	req := new(ConnectRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	az, err := s.authorize(stream.Context())
	if err != nil {
		return err
	}
	subs := s.subscriptions.For(req.Slot, peerKey(stream.Context()))
	disp, err := s.h.Connect(req.Slot, subs, az, connectdispatch.Config{
		MaxSize:     256,
		DetailLevel: req.DetailLevel,
		Force:       req.Force,
	})
	if err != nil {
		return wire.AsStatus(err).Err()
	}
	defer disp.Close()

	for {
		msg, err := disp.Next(stream.Context())
		if err != nil {
			if status.Code(err) == codes.Canceled {
				return nil
			}
			return err
		}
		if err := stream.SendMsg(&PushUpdatesResponse{Updates: *msg}); err != nil {
			return err
		}
	}
}

func isCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func peerKey(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	rc, _ := reqctx.GetContext(ctx)
	return rc.ID
}

// serviceDesc is the hand-assembled equivalent of what a .proto-driven
// protoc-gen-go-grpc invocation would emit: one grpc.ServiceDesc binding
// method names to the handlers above (spec §6: wire codec/codegen are
// scaffolding the spec assumes, not functionality it specifies).
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "devicemodel.DeviceModel",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetValue", Handler: unaryHandler(func(s *deviceModelService, ctx context.Context, req any) (any, error) {
			return s.getValue(ctx, req.(*SlotOidRequest))
		}, func() any { return new(SlotOidRequest) })},
		{MethodName: "SetValue", Handler: unaryHandler(func(s *deviceModelService, ctx context.Context, req any) (any, error) {
			return s.setValue(ctx, req.(*SetValueRequest))
		}, func() any { return new(SetValueRequest) })},
		{MethodName: "MultiSetValue", Handler: unaryHandler(func(s *deviceModelService, ctx context.Context, req any) (any, error) {
			return s.multiSetValue(ctx, req.(*MultiSetValueRequest))
		}, func() any { return new(MultiSetValueRequest) })},
		{MethodName: "GetParam", Handler: unaryHandler(func(s *deviceModelService, ctx context.Context, req any) (any, error) {
			return s.getParam(ctx, req.(*SlotOidRequest))
		}, func() any { return new(SlotOidRequest) })},
		{MethodName: "LanguagePackRequest", Handler: unaryHandler(func(s *deviceModelService, ctx context.Context, req any) (any, error) {
			return s.languagePackRequest(ctx, req.(*LanguagePackRequest))
		}, func() any { return new(LanguagePackRequest) })},
		{MethodName: "AddLanguage", Handler: unaryHandler(func(s *deviceModelService, ctx context.Context, req any) (any, error) {
			return s.addLanguage(ctx, req.(*AddLanguageRequest))
		}, func() any { return new(AddLanguageRequest) })},
		{MethodName: "Languages", Handler: unaryHandler(func(s *deviceModelService, ctx context.Context, req any) (any, error) {
			return s.languages(ctx, req.(*LanguagesRequest))
		}, func() any { return new(LanguagesRequest) })},
		{MethodName: "GetPopulatedSlots", Handler: unaryHandler(func(s *deviceModelService, ctx context.Context, req any) (any, error) {
			return s.getPopulatedSlots(ctx, req.(*Empty))
		}, func() any { return new(Empty) })},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "DeviceRequest", Handler: streamHandler((*deviceModelService).deviceRequestStream), ServerStreams: true},
		{StreamName: "ParamInfoRequest", Handler: streamHandler((*deviceModelService).paramInfoRequestStream), ServerStreams: true},
		{StreamName: "ExecuteCommand", Handler: streamHandler((*deviceModelService).executeCommandStream), ServerStreams: true},
		{StreamName: "UpdateSubscriptions", Handler: streamHandler((*deviceModelService).updateSubscriptionsStream), ServerStreams: true},
		{StreamName: "Connect", Handler: streamHandler((*deviceModelService).connectStream), ServerStreams: true},
	},
	Metadata: "devicemodel.proto",
}

func unaryHandler(
	fn func(s *deviceModelService, ctx context.Context, req any) (any, error),
	newReq func() any,
) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := newReq()
		if err := dec(req); err != nil {
			return nil, err
		}
		s := srv.(*deviceModelService)
		if interceptor == nil {
			return fn(s, ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: s, FullMethod: serviceDesc.ServiceName}
		handler := func(ctx context.Context, req any) (any, error) { return fn(s, ctx, req) }
		return interceptor(ctx, req, info, handler)
	}
}

func streamHandler(fn func(s *deviceModelService, srv any, stream grpc.ServerStream) error) func(srv any, stream grpc.ServerStream) error {
	return func(srv any, stream grpc.ServerStream) error {
		s := srv.(*deviceModelService)
		if err := fn(s, srv, stream); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		return nil
	}
}
