package transport

import (
	"context"
	"errors"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/protocol"
	"github.com/ceyewan/beacon/xerrors"
)

// CallOptions 一次 gRPC 调用的参数
type CallOptions struct {
	Codec     string            // content-subtype，默认 json
	Metadata  map[string]string // 签名等请求元数据，键会被转为小写
	Timeout   time.Duration     // 为 0 时只受调用方 ctx 控制
	Operation string            // 指标 operation 标签
	Metrics   *metrics.ClientMetrics
}

// Invoke 发起服务端流调用：收到一条消息为 OK，流直接结束为 NOT_MODIFIED。
//
// 调用运行在可取消的子 ctx 上，调用方取消 ctx 即可中止正在进行的长轮询。
func Invoke(ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, method string, req, resp any, opts CallOptions) (model.Status, error) {
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	if len(opts.Metadata) > 0 {
		md := metadata.New(opts.Metadata)
		ctx = metadata.NewOutgoingContext(ctx, metadata.Join(outgoing(ctx), md))
	}
	codec := opts.Codec
	if codec == "" {
		codec = protocol.CodecJSON
	}

	start := time.Now()
	st, err := invoke(ctx, cc, desc, method, req, resp, codec)

	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case st == model.StatusNotModified:
		outcome = metrics.OutcomeNotModified
	}
	opts.Metrics.Observe(ctx, opts.Operation, metrics.GRPCStatusClass(GRPCCode(err)), outcome, time.Since(start))
	return st, err
}

func invoke(ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, method string, req, resp any, codec string) (model.Status, error) {
	stream, err := cc.NewStream(ctx, desc, method, grpc.CallContentSubtype(codec))
	if err != nil {
		return model.StatusOK, mapStatus(err)
	}
	// 服务端提前结束时 SendMsg 返回 io.EOF，真实状态由 RecvMsg 给出
	if err := stream.SendMsg(req); err != nil && !errors.Is(err, io.EOF) {
		return model.StatusOK, mapStatus(err)
	}
	if err := stream.CloseSend(); err != nil {
		return model.StatusOK, mapStatus(err)
	}

	if err := stream.RecvMsg(resp); err != nil {
		if errors.Is(err, io.EOF) {
			return model.StatusNotModified, nil
		}
		return model.StatusOK, mapStatus(err)
	}
	return model.StatusOK, nil
}

// mapStatus NOT_FOUND 映射为 NotFoundError，其余状态映射为携带状态码的 TransportError
func mapStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return xerrors.NewTransport("", err)
	}
	if st.Code() == codes.NotFound {
		return xerrors.NewNotFound(st.Message(), err)
	}
	return &xerrors.TransportError{Code: st.Code().String(), Cause: err}
}

// GRPCCode 从传输错误中取回 gRPC 状态码
func GRPCCode(err error) codes.Code {
	var te *xerrors.TransportError
	if errors.As(err, &te) {
		return status.Code(te.Cause)
	}
	if xerrors.IsNotFound(err) {
		return codes.NotFound
	}
	return status.Code(err)
}

func outgoing(ctx context.Context) metadata.MD {
	md, _ := metadata.FromOutgoingContext(ctx)
	return md
}
