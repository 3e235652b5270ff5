package meta

import (
	"context"
	"encoding/json"
	"math"
	"path"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/connector"
	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/xerrors"
)

var (
	// ErrEtcdClosed Etcd 发现客户端已关闭
	ErrEtcdClosed = xerrors.New("meta: etcd discovery is closed")
	// ErrAlreadyRegistered 实例已注册
	ErrAlreadyRegistered = xerrors.New("meta: instance already registered")
	// ErrInvalidInstance 实例缺少 id 或地址
	ErrInvalidInstance = xerrors.New("meta: invalid service instance")
)

// EtcdConfig Etcd 服务发现配置
type EtcdConfig struct {
	// Namespace key 前缀，默认 /beacon/services
	Namespace string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`
	// Service 服务名，默认 config-service
	Service string `json:"service" yaml:"service" mapstructure:"service"`
	// Timeout 单次读取超时，默认 3s
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	// TTL 注册租约时长，默认 10s
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
}

func (c *EtcdConfig) setDefaults() {
	if c.Namespace == "" {
		c.Namespace = "/beacon/services"
	}
	c.Namespace = "/" + strings.Trim(c.Namespace, "/")
	if c.Service == "" {
		c.Service = model.ConfigServiceID
	}
	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Second
	}
	if c.TTL <= 0 {
		c.TTL = 10 * time.Second
	}
}

// leaseTTL 租约以秒为单位，不足一秒向上取整
func (c *EtcdConfig) leaseTTL() int64 {
	return max(int64(math.Ceil(c.TTL.Seconds())), 1)
}

// instanceRecord etcd 中保存的实例记录
type instanceRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type registration struct {
	leaseID clientv3.LeaseID
	cancel  context.CancelFunc
}

// EtcdClient 直接读取注册中心的服务发现实现，忽略传入的 meta 地址
type EtcdClient struct {
	cfg    *EtcdConfig
	client *clientv3.Client
	logger clog.Logger

	mu     sync.Mutex
	leases map[string]*registration
	wg     sync.WaitGroup
	closed bool
}

// NewEtcd 基于已连接的 Etcd 连接器创建服务发现客户端
func NewEtcd(conn connector.EtcdConnector, cfg *EtcdConfig, opts ...Option) (*EtcdClient, error) {
	if conn == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "meta: etcd connector is nil")
	}
	if cfg == nil {
		cfg = &EtcdConfig{}
	}
	cfg.setDefaults()

	o := applyOptions(opts)
	return &EtcdClient{
		cfg:    cfg,
		client: conn.GetClient(),
		logger: o.logger.With(clog.String("service", cfg.Service)),
		leases: make(map[string]*registration),
	}, nil
}

func (c *EtcdClient) prefix() string {
	return path.Join(c.cfg.Namespace, c.cfg.Service) + "/"
}

func (c *EtcdClient) GetServices(ctx context.Context, _ model.Endpoint, _ model.DiscoveryOptions) ([]model.ServiceInstance, error) {
	trace := c.TraceURL("", model.DiscoveryOptions{})

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.client.Get(ctx, c.prefix(),
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, &xerrors.DiscoveryError{URL: trace, Cause: xerrors.NewTransport("etcd get failed", err)}
	}

	instances := make([]model.ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var rec instanceRecord
		if err := json.Unmarshal(kv.Value, &rec); err != nil || rec.Address == "" {
			c.logger.WarnContext(ctx, "skip malformed instance record", clog.String("key", string(kv.Key)), clog.Error(err))
			continue
		}
		id := rec.ID
		if id == "" {
			id = strings.TrimPrefix(string(kv.Key), c.prefix())
		}
		name := rec.Name
		if name == "" {
			name = c.cfg.Service
		}
		instances = append(instances, model.ServiceInstance{ServiceID: name, InstanceID: id, Address: rec.Address})
	}
	return instances, nil
}

// TraceURL 形如 etcd:///beacon/services/config-service
func (c *EtcdClient) TraceURL(model.Endpoint, model.DiscoveryOptions) string {
	return "etcd://" + path.Join(c.cfg.Namespace, c.cfg.Service)
}

// Register 以租约方式注册配置服务实例，供测试与自托管的配置服务使用
func (c *EtcdClient) Register(ctx context.Context, inst model.ServiceInstance) error {
	if inst.InstanceID == "" || inst.Address == "" {
		return ErrInvalidInstance
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrEtcdClosed
	}
	if _, ok := c.leases[inst.InstanceID]; ok {
		return ErrAlreadyRegistered
	}

	lease, err := c.client.Grant(ctx, c.cfg.leaseTTL())
	if err != nil {
		return xerrors.Wrap(err, "grant lease failed")
	}

	value, err := json.Marshal(instanceRecord{ID: inst.InstanceID, Name: c.cfg.Service, Address: inst.Address})
	if err != nil {
		c.revoke(ctx, lease.ID)
		return xerrors.Wrap(err, "marshal instance failed")
	}

	key := c.prefix() + inst.InstanceID
	if _, err := c.client.Put(ctx, key, string(value), clientv3.WithLease(lease.ID)); err != nil {
		c.revoke(ctx, lease.ID)
		return xerrors.Wrap(err, "put instance failed")
	}

	kaCtx, kaCancel := context.WithCancel(context.Background())
	ch, err := c.client.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		kaCancel()
		c.revoke(ctx, lease.ID)
		return xerrors.Wrap(err, "keepalive failed")
	}

	c.leases[inst.InstanceID] = &registration{leaseID: lease.ID, cancel: kaCancel}
	c.wg.Add(1)
	go c.drainKeepAlive(inst.InstanceID, ch)

	c.logger.Info("instance registered", clog.String("instance_id", inst.InstanceID), clog.String("address", inst.Address))
	return nil
}

// Deregister 注销实例并撤销租约
func (c *EtcdClient) Deregister(ctx context.Context, instanceID string) error {
	c.mu.Lock()
	reg, ok := c.leases[instanceID]
	delete(c.leases, instanceID)
	c.mu.Unlock()

	if ok {
		reg.cancel()
		c.revoke(ctx, reg.leaseID)
	}
	if _, err := c.client.Delete(ctx, c.prefix()+instanceID); err != nil {
		return xerrors.Wrap(err, "delete instance failed")
	}
	c.logger.Info("instance deregistered", clog.String("instance_id", instanceID))
	return nil
}

// Close 停止所有续约并撤销租约，不关闭底层连接
func (c *EtcdClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	leases := c.leases
	c.leases = make(map[string]*registration)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	for _, reg := range leases {
		reg.cancel()
		c.revoke(ctx, reg.leaseID)
	}
	c.wg.Wait()
	return nil
}

func (c *EtcdClient) revoke(ctx context.Context, id clientv3.LeaseID) {
	if _, err := c.client.Revoke(ctx, id); err != nil {
		c.logger.Error("failed to revoke lease", clog.Int64("lease_id", int64(id)), clog.Error(err))
	}
}

// drainKeepAlive 消费续约应答，通道关闭说明续约结束
func (c *EtcdClient) drainKeepAlive(instanceID string, ch <-chan *clientv3.LeaseKeepAliveResponse) {
	defer c.wg.Done()
	for range ch {
	}
	c.logger.Debug("keepalive stopped", clog.String("instance_id", instanceID))
}
