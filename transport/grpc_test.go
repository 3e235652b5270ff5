package transport

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

	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/protocol"
	"github.com/ceyewan/beacon/xerrors"
)

// watchServer 按命名空间名决定行为
type watchServer struct {
	lastAuth atomic.Value
}

func (s *watchServer) Watch(ctx context.Context, req *protocol.WatchNotificationRequest) (*protocol.WatchNotificationResponse, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("authorization"); len(v) > 0 {
			s.lastAuth.Store(v[0])
		}
	}
	switch req.Notifications[0].NamespaceName {
	case "changed":
		return &protocol.WatchNotificationResponse{Notifications: []protocol.NotificationDTO{{NamespaceName: "changed", NotificationID: 6}}}, nil
	case "missing":
		return nil, status.Error(codes.NotFound, "namespace not found")
	case "down":
		return nil, status.Error(codes.Unavailable, "maintenance")
	case "hang":
		<-ctx.Done()
		return nil, ctx.Err()
	default:
		return nil, nil
	}
}

func startBufServer(t *testing.T, srv protocol.NotificationServiceServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	protocol.RegisterNotificationServiceServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })
	return cc
}

func watch(ctx context.Context, cc *grpc.ClientConn, ns string, opts CallOptions) (model.Status, *protocol.WatchNotificationResponse, error) {
	req := &protocol.WatchNotificationRequest{AppID: "demo", Cluster: "default", Notifications: []protocol.NotificationDTO{{NamespaceName: ns, NotificationID: 5}}}
	resp := new(protocol.WatchNotificationResponse)
	st, err := Invoke(ctx, cc, protocol.WatchStreamDesc, protocol.MethodWatch, req, resp, opts)
	return st, resp, err
}

func TestInvoke_StatusMapping(t *testing.T) {
	srv := &watchServer{}
	cc := startBufServer(t, srv)
	ctx := context.Background()

	st, resp, err := watch(ctx, cc, "changed", CallOptions{Metadata: map[string]string{"Authorization": "Apollo demo:sig"}})
	require.NoError(t, err)
	assert.Equal(t, model.StatusOK, st)
	assert.Equal(t, int64(6), resp.Notifications[0].NotificationID)
	assert.Equal(t, "Apollo demo:sig", srv.lastAuth.Load())

	st, _, err = watch(ctx, cc, "same", CallOptions{Codec: protocol.CodecMsgpack})
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotModified, st)

	_, _, err = watch(ctx, cc, "missing", CallOptions{})
	assert.True(t, xerrors.IsNotFound(err))
	assert.Equal(t, codes.NotFound, GRPCCode(err))

	_, _, err = watch(ctx, cc, "down", CallOptions{})
	var te *xerrors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "Unavailable", te.Code)
	assert.Equal(t, codes.Unavailable, GRPCCode(err))
}

func TestInvoke_Cancellation(t *testing.T) {
	cc := startBufServer(t, &watchServer{})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, _, err := watch(ctx, cc, "hang", CallOptions{})
	assert.Equal(t, codes.Canceled, GRPCCode(err))
	assert.Less(t, time.Since(start), 2*time.Second)

	_, _, err = watch(context.Background(), cc, "hang", CallOptions{Timeout: 50 * time.Millisecond})
	assert.Equal(t, codes.DeadlineExceeded, GRPCCode(err))
}

func TestChannelManager_DefaultFactoryOverTCP(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := grpc.NewServer()
	protocol.RegisterNotificationServiceServer(s, &watchServer{})
	go func() { _ = s.Serve(lis) }()
	defer s.Stop()

	m := NewChannelManager(nil)
	defer m.Close()

	cc, err := m.GetChannel(model.Endpoint("http://" + lis.Addr().String()))
	require.NoError(t, err)

	st, _, err := watch(context.Background(), cc, "changed", CallOptions{Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, model.StatusOK, st)
}
