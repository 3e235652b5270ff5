package testkit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/protocol"
)

// Store 假服务端的共享状态：服务实例列表与命名空间配置
//
// 只有一个 appId/cluster 维度，命名空间按名称区分。
type Store struct {
	// LongPoll 长轮询挂起时间，默认 500ms
	LongPoll time.Duration

	mu          sync.Mutex
	services    []protocol.ServiceDTO
	namespaces  map[string]*namespaceState
	changed     chan struct{}
	metaFailure bool

	metaCalls  atomic.Int32
	watchCalls atomic.Int32
	getCalls   atomic.Int32
	lastAuth   atomic.Value
}

type namespaceState struct {
	id         int64
	releaseKey string
	configs    map[string]string
}

// NewStore 创建空的 Store
func NewStore() *Store {
	return &Store{
		LongPoll:   500 * time.Millisecond,
		namespaces: make(map[string]*namespaceState),
		changed:    make(chan struct{}),
	}
}

// SetServices 设置服务发现返回的实例
func (s *Store) SetServices(instances ...model.ServiceInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services = make([]protocol.ServiceDTO, 0, len(instances))
	for _, in := range instances {
		s.services = append(s.services, protocol.FromInstance(in))
	}
}

// SetMetaFailure 让服务发现返回 503 / Unavailable
func (s *Store) SetMetaFailure(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metaFailure = fail
}

// Publish 发布命名空间的新版本，返回新的通知 ID
func (s *Store) Publish(namespace string, configs map[string]string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = &namespaceState{}
		s.namespaces[namespace] = ns
	}
	ns.id++
	ns.releaseKey = fmt.Sprintf("%s-release-%d", namespace, ns.id)
	ns.configs = configs

	close(s.changed)
	s.changed = make(chan struct{})
	return ns.id
}

// Delete 删除命名空间，之后的获取返回 404
func (s *Store) Delete(namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, namespace)
}

// MetaCalls 服务发现请求次数
func (s *Store) MetaCalls() int { return int(s.metaCalls.Load()) }

// WatchCalls 长轮询请求次数
func (s *Store) WatchCalls() int { return int(s.watchCalls.Load()) }

// GetCalls 获取配置请求次数
func (s *Store) GetCalls() int { return int(s.getCalls.Load()) }

// LastAuthorization 最近一次带签名请求的 Authorization 值
func (s *Store) LastAuthorization() string {
	v, _ := s.lastAuth.Load().(string)
	return v
}

func (s *Store) recordAuth(auth string) {
	if auth != "" {
		s.lastAuth.Store(auth)
	}
}

func (s *Store) discover() ([]protocol.ServiceDTO, bool) {
	s.metaCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metaFailure {
		return nil, false
	}
	return append([]protocol.ServiceDTO{}, s.services...), true
}

// waitChanges 立即返回已变化的命名空间；没有变化时挂起到有发布或超时
func (s *Store) waitChanges(ctx context.Context, appID, cluster string, defs []protocol.NotificationDTO) []protocol.NotificationDTO {
	s.watchCalls.Add(1)
	timer := time.NewTimer(s.LongPoll)
	defer timer.Stop()

	for {
		s.mu.Lock()
		changes := s.changesLocked(appID, cluster, defs)
		changed := s.changed
		s.mu.Unlock()

		if len(changes) > 0 {
			return changes
		}
		select {
		case <-changed:
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Store) changesLocked(appID, cluster string, defs []protocol.NotificationDTO) []protocol.NotificationDTO {
	var out []protocol.NotificationDTO
	for _, d := range defs {
		ns, ok := s.namespaces[d.NamespaceName]
		if !ok || ns.id <= d.NotificationID {
			continue
		}
		key := appID + "+" + cluster + "+" + d.NamespaceName
		out = append(out, protocol.NotificationDTO{
			NamespaceName:  d.NamespaceName,
			NotificationID: ns.id,
			Messages:       &protocol.MessagesDTO{Details: map[string]int64{key: ns.id}},
		})
	}
	return out
}

// config 命名空间不存在时 found 为 false；releaseKey 未变化时返回 nil
func (s *Store) config(appID, cluster, namespace, releaseKey string) (*protocol.ConfigDTO, bool) {
	s.getCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		return nil, false
	}
	if releaseKey != "" && releaseKey == ns.releaseKey {
		return nil, true
	}
	configs := make(map[string]string, len(ns.configs))
	for k, v := range ns.configs {
		configs[k] = v
	}
	return &protocol.ConfigDTO{
		AppID:          appID,
		Cluster:        cluster,
		NamespaceName:  namespace,
		ReleaseKey:     ns.releaseKey,
		Configurations: configs,
	}, true
}
