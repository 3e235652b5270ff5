package transport

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/trace"
	"github.com/ceyewan/beacon/xerrors"
)

// HTTPConfig HTTP 传输配置
type HTTPConfig struct {
	// ConnectTimeout 建连超时（默认 1s）
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout" mapstructure:"connect_timeout"`

	// ReadTimeout 单次请求的默认读超时（默认 5s），长轮询请求需要在 HTTPRequest 中覆盖
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`

	// MaxIdleConnsPerHost 每个主机的空闲连接数（默认 10）
	MaxIdleConnsPerHost int `json:"max_idle_conns_per_host" yaml:"max_idle_conns_per_host" mapstructure:"max_idle_conns_per_host"`
}

func (c *HTTPConfig) setDefaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = 10
	}
}

// HTTPRequest 一次 GET 请求
type HTTPRequest struct {
	URL       string
	Header    map[string]string
	Timeout   time.Duration // 为 0 时使用 ReadTimeout
	Operation string        // 指标 operation 标签
}

// HTTPTransport 基于连接池的 GET 传输：
// 200 解码为 OK，304 为 NOT_MODIFIED，404 为 NotFoundError，其余状态码为 StatusCodeError。
type HTTPTransport struct {
	cfg     *HTTPConfig
	client  *http.Client
	logger  clog.Logger
	metrics *metrics.ClientMetrics
}

// NewHTTP 创建 HTTP 传输
func NewHTTP(cfg *HTTPConfig, opts ...Option) (*HTTPTransport, error) {
	if cfg == nil {
		cfg = &HTTPConfig{}
	}
	cfg.setDefaults()
	o := applyOptions(opts)

	cm, err := metrics.NewClientMetrics(o.meter, metrics.TransportHTTP)
	if err != nil {
		return nil, err
	}

	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		TLSClientConfig:     o.tls,
	}

	return &HTTPTransport{
		cfg:     cfg,
		client:  &http.Client{Transport: trace.HTTPTransport(base)},
		logger:  o.logger,
		metrics: cm,
	}, nil
}

// Do 发送 GET 请求，OK 时把响应体解码到 out（out 可为 nil）
func (t *HTTPTransport) Do(ctx context.Context, req *HTTPRequest, out any) (model.Status, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = t.cfg.ReadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return model.StatusOK, xerrors.NewTransport("", xerrors.Wrap(err, "build request"))
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		t.metrics.Observe(ctx, req.Operation, "unknown", metrics.OutcomeError, time.Since(start))
		return model.StatusOK, xerrors.NewTransport("", err)
	}
	defer drainAndClose(resp.Body)

	status, err := t.handle(resp, out)
	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case status == model.StatusNotModified:
		outcome = metrics.OutcomeNotModified
	}
	t.metrics.Observe(ctx, req.Operation, metrics.HTTPStatusClass(resp.StatusCode), outcome, time.Since(start))

	if err != nil {
		t.logger.DebugContext(ctx, "http request failed",
			clog.String("url", req.URL),
			clog.Int("status", resp.StatusCode),
			clog.Error(err))
	}
	return status, err
}

var errTrailingData = xerrors.New("unexpected data after response body")

func (t *HTTPTransport) handle(resp *http.Response, out any) (model.Status, error) {
	switch resp.StatusCode {
	case http.StatusOK:
		if out == nil {
			return model.StatusOK, nil
		}
		dec := json.NewDecoder(resp.Body)
		if err := dec.Decode(out); err != nil {
			return model.StatusOK, xerrors.NewTransport("", xerrors.Wrap(err, "decode response body"))
		}
		// 响应体只能包含一个 JSON 值
		if _, err := dec.Token(); !xerrors.Is(err, io.EOF) {
			return model.StatusOK, xerrors.NewTransport("", errTrailingData)
		}
		return model.StatusOK, nil
	case http.StatusNotModified:
		return model.StatusNotModified, nil
	case http.StatusNotFound:
		return model.StatusOK, xerrors.NewNotFound(resp.Request.URL.Path, nil)
	default:
		return model.StatusOK, xerrors.NewStatusCode("", resp.StatusCode)
	}
}

// Close 关闭空闲连接
func (t *HTTPTransport) Close() {
	t.client.CloseIdleConnections()
}

// drainAndClose 读尽响应体以便连接复用
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	_ = body.Close()
}
