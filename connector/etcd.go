package connector

import (
	"context"
	"sync/atomic"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/xerrors"
)

type etcdConnector struct {
	cfg     *EtcdConfig
	client  *clientv3.Client
	logger  clog.Logger
	healthy atomic.Bool
	closed  atomic.Bool
}

// NewEtcd 创建 Etcd 连接器
//
// clientv3.New 不会阻塞等待连接建立，需要调用 Connect 探测可用性。
func NewEtcd(cfg *EtcdConfig, opts ...Option) (EtcdConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "etcd config is nil")
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	client, err := clientv3.New(clientv3.Config{
		Endpoints:            cfg.Endpoints,
		Username:             cfg.Username,
		Password:             cfg.Password,
		DialTimeout:          cfg.DialTimeout,
		DialKeepAliveTime:    cfg.KeepAliveTime,
		DialKeepAliveTimeout: cfg.KeepAliveTimeout,
	})
	if err != nil {
		return nil, xerrors.Wrapf(xerrors.Join(ErrConnection, err), "etcd connector[%s]", cfg.Name)
	}

	return &etcdConnector{
		cfg:    cfg,
		client: client,
		logger: o.logger.With(clog.String("connector", "etcd"), clog.String("name", cfg.Name)),
	}, nil
}

func (c *etcdConnector) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrAlreadyClosed
	}
	if err := c.probe(ctx); err != nil {
		c.logger.Error("failed to connect to etcd", clog.Strings("endpoints", c.cfg.Endpoints), clog.Error(err))
		return xerrors.Wrapf(xerrors.Join(ErrConnection, err), "etcd connector[%s]", c.cfg.Name)
	}
	c.healthy.Store(true)
	c.logger.Info("connected to etcd", clog.Strings("endpoints", c.cfg.Endpoints))
	return nil
}

func (c *etcdConnector) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()
	_, err := c.client.Get(ctx, "beacon-health-check")
	return err
}

func (c *etcdConnector) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.healthy.Store(false)
	return c.client.Close()
}

func (c *etcdConnector) HealthCheck(ctx context.Context) error {
	if err := c.probe(ctx); err != nil {
		c.healthy.Store(false)
		return xerrors.Wrapf(err, "etcd connector[%s]: health check failed", c.cfg.Name)
	}
	c.healthy.Store(true)
	return nil
}

func (c *etcdConnector) IsHealthy() bool             { return c.healthy.Load() }
func (c *etcdConnector) Name() string                { return c.cfg.Name }
func (c *etcdConnector) GetClient() *clientv3.Client { return c.client }
