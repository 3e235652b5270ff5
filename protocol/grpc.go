package protocol

import (
	"context"

	"google.golang.org/grpc"
)

// gRPC 服务与方法全名
const (
	MetaServiceName         = "beacon.MetaService"
	NotificationServiceName = "beacon.NotificationService"
	ConfigServiceName       = "beacon.ConfigService"

	MethodGetServices = "/" + MetaServiceName + "/GetServices"
	MethodWatch       = "/" + NotificationServiceName + "/Watch"
	MethodGetConfig   = "/" + ConfigServiceName + "/GetConfig"
)

// 三个方法均为服务端流：发送一条消息表示 OK，不发送消息直接结束表示 NOT_MODIFIED
var (
	GetServicesStreamDesc = &grpc.StreamDesc{StreamName: "GetServices", ServerStreams: true}
	WatchStreamDesc       = &grpc.StreamDesc{StreamName: "Watch", ServerStreams: true}
	GetConfigStreamDesc   = &grpc.StreamDesc{StreamName: "GetConfig", ServerStreams: true}
)

// ============================================================================
// 服务端接口
// ============================================================================

// MetaServiceServer 服务发现服务端。
type MetaServiceServer interface {
	GetServices(ctx context.Context, req *DiscoveryRequest) (*DiscoveryResponse, error)
}

// NotificationServiceServer 长轮询服务端，返回 nil 响应表示没有变化
type NotificationServiceServer interface {
	Watch(ctx context.Context, req *WatchNotificationRequest) (*WatchNotificationResponse, error)
}

// ConfigServiceServer 配置服务端，返回 nil 响应表示没有变化
type ConfigServiceServer interface {
	GetConfig(ctx context.Context, req *GetConfigRequest) (*GetConfigResponse, error)
}

// RegisterMetaServiceServer 注册服务发现服务
func RegisterMetaServiceServer(s grpc.ServiceRegistrar, srv MetaServiceServer) {
	s.RegisterService(&metaServiceDesc, srv)
}

// RegisterNotificationServiceServer 注册长轮询服务
func RegisterNotificationServiceServer(s grpc.ServiceRegistrar, srv NotificationServiceServer) {
	s.RegisterService(&notificationServiceDesc, srv)
}

// RegisterConfigServiceServer 注册配置服务
func RegisterConfigServiceServer(s grpc.ServiceRegistrar, srv ConfigServiceServer) {
	s.RegisterService(&configServiceDesc, srv)
}

var metaServiceDesc = grpc.ServiceDesc{
	ServiceName: MetaServiceName,
	HandlerType: (*MetaServiceServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    GetServicesStreamDesc.StreamName,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(DiscoveryRequest)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			out, err := srv.(MetaServiceServer).GetServices(stream.Context(), in)
			return sendIfPresent(stream, out, err)
		},
	}},
	Metadata: "beacon/meta.proto",
}

var notificationServiceDesc = grpc.ServiceDesc{
	ServiceName: NotificationServiceName,
	HandlerType: (*NotificationServiceServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    WatchStreamDesc.StreamName,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(WatchNotificationRequest)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			out, err := srv.(NotificationServiceServer).Watch(stream.Context(), in)
			return sendIfPresent(stream, out, err)
		},
	}},
	Metadata: "beacon/notification.proto",
}

var configServiceDesc = grpc.ServiceDesc{
	ServiceName: ConfigServiceName,
	HandlerType: (*ConfigServiceServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    GetConfigStreamDesc.StreamName,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(GetConfigRequest)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			out, err := srv.(ConfigServiceServer).GetConfig(stream.Context(), in)
			return sendIfPresent(stream, out, err)
		},
	}},
	Metadata: "beacon/config.proto",
}

func sendIfPresent[T any](stream grpc.ServerStream, out *T, err error) error {
	if err != nil || out == nil {
		return err
	}
	return stream.SendMsg(out)
}
