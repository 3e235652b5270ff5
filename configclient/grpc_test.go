package configclient

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/ceyewan/beacon/breaker"
	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/protocol"
	"github.com/ceyewan/beacon/signature"
	"github.com/ceyewan/beacon/transport"
	"github.com/ceyewan/beacon/xerrors"
)

type fakeConfigService struct {
	auth  atomic.Value
	calls atomic.Int32
}

func (s *fakeConfigService) Watch(ctx context.Context, req *protocol.WatchNotificationRequest) (*protocol.WatchNotificationResponse, error) {
	s.calls.Add(1)
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(signature.MetadataKey(signature.HeaderAuthorization)); len(v) > 0 {
			s.auth.Store(v[0])
		}
	}
	switch req.Notifications[0].NamespaceName {
	case "changed":
		return &protocol.WatchNotificationResponse{Notifications: []protocol.NotificationDTO{{NamespaceName: "changed", NotificationID: 9}}}, nil
	case "empty":
		return &protocol.WatchNotificationResponse{}, nil
	case "down":
		return nil, status.Error(codes.Unavailable, "maintenance")
	default:
		return nil, nil
	}
}

func (s *fakeConfigService) GetConfig(_ context.Context, req *protocol.GetConfigRequest) (*protocol.GetConfigResponse, error) {
	s.calls.Add(1)
	switch {
	case req.Namespace == "missing":
		return nil, status.Error(codes.NotFound, "namespace not found")
	case req.ReleaseKey == "r1":
		return nil, nil
	default:
		return &protocol.GetConfigResponse{Config: &protocol.ConfigDTO{
			AppID: req.AppID, Cluster: req.Cluster, NamespaceName: req.Namespace,
			ReleaseKey: "r1", Configurations: map[string]string{"k": "v"},
		}}, nil
	}
}

func newGRPCClient(t *testing.T, srv *fakeConfigService, opts ...Option) *GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	protocol.RegisterNotificationServiceServer(s, srv)
	protocol.RegisterConfigServiceServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	channels := transport.NewChannelManager(nil, transport.WithChannelFactory(func(string) (*grpc.ClientConn, error) {
		return grpc.NewClient("passthrough:///bufnet",
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
			grpc.WithTransportCredentials(insecure.NewCredentials()))
	}))
	t.Cleanup(func() { _ = channels.Close() })

	opts = append(opts, WithClock(func() time.Time { return fixedNow }))
	c, err := NewGRPC(channels, &Config{WatchTimeout: 2 * time.Second}, opts...)
	require.NoError(t, err)
	return c
}

func TestGRPCClient_Watch(t *testing.T) {
	srv := &fakeConfigService{}
	c := newGRPCClient(t, srv)
	ctx := context.Background()

	req := watchRequest("changed")
	req.AccessKeySecret = "secret"
	resp, err := c.Watch(ctx, "cs:8080", req)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOK, resp.Status)
	assert.EqualValues(t, 9, resp.Notifications[0].NotificationID)

	signed, err := protocol.NotificationsURL("", req)
	require.NoError(t, err)
	assert.Equal(t, "Apollo demo:"+signature.Sign(fixedNow.UnixMilli(), signature.PathWithQuery(signed), "secret"), srv.auth.Load())

	resp, err = c.Watch(ctx, "cs:8080", watchRequest("app"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotModified, resp.Status)
	assert.Empty(t, resp.Notifications)

	// 空通知列表等价于 NOT_MODIFIED
	resp, err = c.Watch(ctx, "cs:8080", watchRequest("empty"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotModified, resp.Status)
	assert.Empty(t, resp.Notifications)

	_, err = c.Watch(ctx, "cs:8080", watchRequest("down"))
	require.Error(t, err)
	assert.True(t, xerrors.IsTransport(err))
	assert.Contains(t, err.Error(), "Watch notifications failed. Grpc status: Unavailable")
}

func TestGRPCClient_Get(t *testing.T) {
	c := newGRPCClient(t, &fakeConfigService{})
	ctx := context.Background()

	resp, err := c.Get(ctx, "cs:8080", &model.GetConfigRequest{AppID: "demo", Namespace: "app"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusOK, resp.Status)
	assert.Equal(t, "default", resp.Config.Cluster)
	assert.Equal(t, []string{"k"}, resp.Config.Keys())

	resp, err = c.Get(ctx, "cs:8080", &model.GetConfigRequest{AppID: "demo", Namespace: "app", ReleaseKey: "r1"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotModified, resp.Status)

	_, err = c.Get(ctx, "cs:8080", &model.GetConfigRequest{AppID: "demo", Namespace: "missing"})
	require.Error(t, err)
	assert.True(t, xerrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "Get config failed. Grpc status: NotFound")
}

func TestGRPCClient_Breaker(t *testing.T) {
	b, err := breaker.New(&breaker.Config{MinimumRequests: 2, FailureRatio: 0.5, Timeout: time.Minute},
		breaker.WithIsSuccessful(IsBreakerSuccess))
	require.NoError(t, err)

	srv := &fakeConfigService{}
	c := newGRPCClient(t, srv, WithBreaker(b))
	ctx := context.Background()

	// NotFound 不计入失败
	for range 3 {
		_, err = c.Get(ctx, "cs-a:8080", &model.GetConfigRequest{AppID: "demo", Namespace: "missing"})
		assert.True(t, xerrors.IsNotFound(err))
	}
	state, err := b.State("cs-a:8080")
	require.NoError(t, err)
	assert.Equal(t, breaker.StateClosed, state)

	// 空结果按 NOT_MODIFIED 处理，同样不计入失败
	for range 3 {
		resp, err := c.Watch(ctx, "cs-b:8080", watchRequest("empty"))
		require.NoError(t, err)
		assert.Equal(t, model.StatusNotModified, resp.Status)
	}
	state, err = b.State("cs-b:8080")
	require.NoError(t, err)
	assert.Equal(t, breaker.StateClosed, state)

	for range 2 {
		_, err = c.Watch(ctx, "cs:8080", watchRequest("down"))
		require.Error(t, err)
	}
	state, err = b.State("cs:8080")
	require.NoError(t, err)
	assert.Equal(t, breaker.StateOpen, state)

	calls := srv.calls.Load()
	_, err = c.Watch(ctx, "cs:8080", watchRequest("app"))
	require.Error(t, err)
	assert.True(t, xerrors.IsTransport(err))
	assert.ErrorIs(t, err, breaker.ErrOpenState)
	assert.Equal(t, calls, srv.calls.Load())
}

func TestNewGRPC_InvalidCodec(t *testing.T) {
	channels := transport.NewChannelManager(nil)
	defer channels.Close()
	_, err := NewGRPC(channels, &Config{Codec: "xml"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	_, err = NewGRPC(nil, nil)
	assert.Error(t, err)
}
