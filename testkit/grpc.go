package testkit

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/protocol"
	"github.com/ceyewan/beacon/signature"
	"github.com/ceyewan/beacon/trace"
	"github.com/ceyewan/beacon/transport"
)

// GRPCFake 基于 bufconn 的 gRPC 假服务，实现 meta、通知与配置三个服务
type GRPCFake struct {
	*Store
	lis *bufconn.Listener
}

// NewGRPCFake 启动 gRPC 假服务，store 为空时新建，生命周期由 t.Cleanup 管理
func NewGRPCFake(t *testing.T, store *Store) *GRPCFake {
	t.Helper()
	if store == nil {
		store = NewStore()
	}
	f := &GRPCFake{Store: store, lis: bufconn.Listen(1 << 20)}

	s := grpc.NewServer(grpc.StatsHandler(trace.GRPCServerStatsHandler()))
	protocol.RegisterMetaServiceServer(s, f)
	protocol.RegisterNotificationServiceServer(s, f)
	protocol.RegisterConfigServiceServer(s, f)
	go func() { _ = s.Serve(f.lis) }()
	t.Cleanup(s.Stop)
	return f
}

// ChannelFactory 返回连接到假服务的连接工厂，忽略目标地址
func (f *GRPCFake) ChannelFactory() transport.ChannelFactory {
	return func(string) (*grpc.ClientConn, error) {
		return grpc.NewClient("passthrough:///bufnet",
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return f.lis.DialContext(ctx) }),
			grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
}

// Instance 返回一个虚拟的配置服务实例，地址只用于区分连接
func (f *GRPCFake) Instance(id string) model.ServiceInstance {
	return model.ServiceInstance{ServiceID: model.ConfigServiceID, InstanceID: id, Address: "http://" + id + ":8080/"}
}

func (f *GRPCFake) GetServices(_ context.Context, _ *protocol.DiscoveryRequest) (*protocol.DiscoveryResponse, error) {
	services, ok := f.discover()
	if !ok {
		return nil, status.Error(codes.Unavailable, "meta server unavailable")
	}
	return &protocol.DiscoveryResponse{Instances: services}, nil
}

func (f *GRPCFake) Watch(ctx context.Context, req *protocol.WatchNotificationRequest) (*protocol.WatchNotificationResponse, error) {
	f.recordMetadata(ctx)
	changes := f.waitChanges(ctx, req.AppID, req.Cluster, req.Notifications)
	if len(changes) == 0 {
		return nil, nil
	}
	return &protocol.WatchNotificationResponse{Notifications: changes}, nil
}

func (f *GRPCFake) GetConfig(ctx context.Context, req *protocol.GetConfigRequest) (*protocol.GetConfigResponse, error) {
	f.recordMetadata(ctx)
	dto, found := f.config(req.AppID, req.Cluster, req.Namespace, req.ReleaseKey)
	switch {
	case !found:
		return nil, status.Errorf(codes.NotFound, "namespace %s not found", req.Namespace)
	case dto == nil:
		return nil, nil
	default:
		return &protocol.GetConfigResponse{Config: dto}, nil
	}
}

func (f *GRPCFake) recordMetadata(ctx context.Context) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return
	}
	if v := md.Get(signature.MetadataKey(signature.HeaderAuthorization)); len(v) > 0 {
		f.recordAuth(v[0])
	}
}
