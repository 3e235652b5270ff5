package transport

import (
	"net"
	"strconv"
	"strings"

	"google.golang.org/grpc/resolver"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/xerrors"
)

// SchemeMulti 多地址解析器的 scheme，目标形如 multi:///host1:port1,host2
const SchemeMulti = "multi"

// ErrEmptyTarget 多地址目标中没有任何地址
var ErrEmptyTarget = xerrors.Wrap(xerrors.ErrInvalidInput, "multi resolver: empty address list")

// MultiResolverBuilder 把逗号分隔的地址列表一次性推送给 gRPC，
// 缺少端口的地址使用 defaultPort。通过 grpc.WithResolvers 按连接注册，无需全局注册。
type MultiResolverBuilder struct {
	defaultPort int
	logger      clog.Logger
}

// NewMultiResolverBuilder 创建多地址解析器
func NewMultiResolverBuilder(defaultPort int, logger clog.Logger) *MultiResolverBuilder {
	if logger == nil {
		logger = clog.Discard()
	}
	return &MultiResolverBuilder{defaultPort: defaultPort, logger: logger}
}

func (b *MultiResolverBuilder) Scheme() string { return SchemeMulti }

func (b *MultiResolverBuilder) Build(target resolver.Target, cc resolver.ClientConn, _ resolver.BuildOptions) (resolver.Resolver, error) {
	raw := target.Endpoint()
	addrs := SplitAddresses(raw, b.defaultPort)
	if len(addrs) == 0 {
		return nil, xerrors.Wrapf(ErrEmptyTarget, "target %q", raw)
	}

	state := resolver.State{Addresses: make([]resolver.Address, 0, len(addrs))}
	for _, addr := range addrs {
		state.Addresses = append(state.Addresses, resolver.Address{Addr: addr})
	}
	if err := cc.UpdateState(state); err != nil {
		return nil, xerrors.Wrap(err, "multi resolver: update state")
	}

	b.logger.Debug("multi resolver initialized", clog.Strings("addresses", addrs))
	return multiResolver{}, nil
}

// SplitAddresses 拆分逗号列表，去除空白与空项，并补全默认端口
func SplitAddresses(raw string, defaultPort int) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, withDefaultPort(part, defaultPort))
	}
	return out
}

func withDefaultPort(addr string, defaultPort int) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	if defaultPort <= 0 {
		return addr
	}
	// 裸 IPv6 地址需要方括号
	host := strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
	return net.JoinHostPort(host, strconv.Itoa(defaultPort))
}

// multiResolver 地址固定，ResolveNow 与 Close 无需处理
type multiResolver struct{}

func (multiResolver) ResolveNow(resolver.ResolveNowOptions) {}
func (multiResolver) Close()                                {}
