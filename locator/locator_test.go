package locator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/beacon/connector"
	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/ratelimit"
	"github.com/ceyewan/beacon/xerrors"
)

// fakeMeta 按调用次序返回结果
type fakeMeta struct {
	calls atomic.Int32
	fn    func(call int) ([]model.ServiceInstance, error)
}

func (f *fakeMeta) GetServices(_ context.Context, _ model.Endpoint, _ model.DiscoveryOptions) ([]model.ServiceInstance, error) {
	n := int(f.calls.Add(1))
	if f.fn == nil {
		return nil, errors.New("meta unavailable")
	}
	return f.fn(n)
}

func (f *fakeMeta) TraceURL(endpoint model.Endpoint, opts model.DiscoveryOptions) string {
	return endpoint.TrimSlash() + "/services/config?appId=" + opts.AppID
}

var (
	listA = []model.ServiceInstance{{ServiceID: "configservice", InstanceID: "i1", Address: "http://h1:8080"}}
	listB = []model.ServiceInstance{
		{ServiceID: "configservice", InstanceID: "i2", Address: "http://h2:8080"},
		{ServiceID: "configservice", InstanceID: "i3", Address: "http://h3:8080"},
	}
)

func noEnv(string) (string, bool) { return "", false }

func testConfig() *Config {
	return &Config{
		MetaAddress:         "http://meta:8080/",
		AppID:               "demo",
		DiscoveryQPS:        1000,
		DiscoveryRetryDelay: time.Millisecond,
		RefreshInterval:     time.Hour,
	}
}

func newLocator(t *testing.T, cfg *Config, m *fakeMeta, opts ...Option) *Locator {
	t.Helper()
	opts = append([]Option{withLookupEnv(noEnv)}, opts...)
	l, err := New(cfg, m, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLocator_ScenarioA(t *testing.T) {
	m := &fakeMeta{fn: func(int) ([]model.ServiceInstance, error) { return listA, nil }}
	l := newLocator(t, testConfig(), m)
	require.NoError(t, l.Initialize(context.Background()))

	services, err := l.GetServices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, listA, services)

	// 读路径不访问网络
	for range 10 {
		_, err = l.GetServices(context.Background())
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, m.calls.Load())
}

func TestLocator_QuickFailTriggersAsyncRefresh(t *testing.T) {
	var healthy atomic.Bool
	m := &fakeMeta{fn: func(int) ([]model.ServiceInstance, error) {
		if healthy.Load() {
			return listA, nil
		}
		return nil, xerrors.NewStatusCode("", 503)
	}}
	l := newLocator(t, testConfig(), m)
	require.NoError(t, l.Initialize(context.Background()))
	assert.EqualValues(t, 2, m.calls.Load())

	_, err := l.GetServices(context.Background())
	require.Error(t, err)
	assert.True(t, xerrors.IsNoServiceAvailable(err))
	assert.Contains(t, err.Error(), "http://meta:8080/services/config?appId=demo")

	healthy.Store(true)
	require.Eventually(t, func() bool {
		services, err := l.GetServices(context.Background())
		return err == nil && len(services) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLocator_EmptyListIsNotSuccess(t *testing.T) {
	m := &fakeMeta{fn: func(call int) ([]model.ServiceInstance, error) {
		if call == 1 {
			return []model.ServiceInstance{}, nil
		}
		return listB, nil
	}}
	l := newLocator(t, testConfig(), m)

	require.NoError(t, l.Refresh(context.Background()))
	assert.EqualValues(t, 2, m.calls.Load())
	services, err := l.GetServices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, listB, services)
}

func TestLocator_FailureKeepsPreviousCache(t *testing.T) {
	m := &fakeMeta{fn: func(call int) ([]model.ServiceInstance, error) {
		if call == 1 {
			return listA, nil
		}
		return nil, nil
	}}
	l := newLocator(t, testConfig(), m)
	require.NoError(t, l.Refresh(context.Background()))

	err := l.Refresh(context.Background())
	require.Error(t, err)
	var de *xerrors.DiscoveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 2, de.Attempts)
	assert.ErrorIs(t, err, ErrEmptyServices)
	assert.EqualValues(t, 3, m.calls.Load())

	services, err := l.GetServices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, listA, services)
}

func TestLocator_CacheAtomicity(t *testing.T) {
	m := &fakeMeta{fn: func(call int) ([]model.ServiceInstance, error) {
		if call%2 == 0 {
			return listB, nil
		}
		return listA, nil
	}}
	l := newLocator(t, testConfig(), m)
	require.NoError(t, l.Refresh(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			_ = l.Refresh(ctx)
		}
	}()

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				services, err := l.GetServices(context.Background())
				if !assert.NoError(t, err) {
					return
				}
				if len(services) == 1 {
					assert.Equal(t, listA, services)
				} else {
					assert.Equal(t, listB, services)
				}
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	cancel()
	wg.Wait()
}

func TestLocator_SingleFlight(t *testing.T) {
	m := &fakeMeta{}
	l := newLocator(t, testConfig(), m)

	var submitted atomic.Int32
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.GetServices(context.Background())
			assert.True(t, xerrors.IsNoServiceAvailable(err))
			if l.TryScheduleRefresh() {
				submitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, submitted.Load())
	assert.Len(t, l.tasks, 1)
	assert.True(t, l.refreshPending.Load())
	assert.Zero(t, m.calls.Load())
}

func TestLocator_StaticOverride(t *testing.T) {
	env := func(key string) (string, bool) {
		if key == EnvConfigService {
			return "http://urlA, http://urlB", true
		}
		return "", false
	}
	m := &fakeMeta{fn: func(int) ([]model.ServiceInstance, error) { return listA, nil }}
	l, err := New(&Config{AppID: "demo"}, m, withLookupEnv(env))
	require.NoError(t, err)
	defer l.Close()
	require.NoError(t, l.Initialize(context.Background()))

	services, err := l.GetServices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.ServiceInstance{
		{ServiceID: model.ConfigServiceID, InstanceID: "http://urlA", Address: "http://urlA"},
		{ServiceID: model.ConfigServiceID, InstanceID: "http://urlB", Address: "http://urlB"},
	}, services)
	assert.Zero(t, m.calls.Load())

	// 没有 meta 地址与客户端时静态地址同样可用
	nilMeta, err := New(&Config{}, nil, withLookupEnv(env))
	require.NoError(t, err)
	defer nilMeta.Close()
	require.NoError(t, nilMeta.Initialize(context.Background()))
	services, err = nilMeta.GetServices(context.Background())
	require.NoError(t, err)
	assert.Len(t, services, 2)
}

type props map[string]string

func (p props) GetString(key string) string { return p[key] }

func TestResolveOverride_Priority(t *testing.T) {
	env := map[string]string{
		EnvConfigService:           "env",
		EnvConfigServiceDeprecated: "deprecated-env",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	explicit := map[string]string{
		PropertyConfigService:           "property",
		PropertyConfigServiceDeprecated: "deprecated-property",
	}
	local := props{PropertyConfigService: "app-property"}

	tests := []struct {
		name  string
		setup func()
		want  string
	}{
		{name: "explicit property first", want: "property"},
		{name: "env second", setup: func() { delete(explicit, PropertyConfigService) }, want: "env"},
		{name: "app property third", setup: func() { delete(env, EnvConfigService) }, want: "app-property"},
		{name: "deprecated property fourth", setup: func() { delete(local, PropertyConfigService) }, want: "deprecated-property"},
		{name: "deprecated env last", setup: func() { delete(explicit, PropertyConfigServiceDeprecated) }, want: "deprecated-env"},
		{name: "none", setup: func() { delete(env, EnvConfigServiceDeprecated) }, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			got, _ := resolveOverride(explicit, local, lookup)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocator_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.DiscoveryQPS = 0.001
	m := &fakeMeta{fn: func(int) ([]model.ServiceInstance, error) { return listA, nil }}
	l := newLocator(t, cfg, m)

	require.NoError(t, l.Refresh(context.Background()))
	assert.ErrorIs(t, l.Refresh(context.Background()), ErrThrottled)
	assert.EqualValues(t, 1, m.calls.Load())
}

func TestLocator_SharedDiscoveryBudget(t *testing.T) {
	mr := miniredis.RunT(t)
	conn, err := connector.NewRedis(&connector.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()

	limiter, err := ratelimit.New(&ratelimit.Config{Driver: ratelimit.DriverDistributed}, ratelimit.WithRedisConnector(conn))
	require.NoError(t, err)
	defer limiter.Close()

	cfg := func() *Config {
		c := testConfig()
		c.DiscoveryQPS = 0.001
		return c
	}
	m := &fakeMeta{fn: func(int) ([]model.ServiceInstance, error) { return listA, nil }}
	a := newLocator(t, cfg(), m, WithLimiter(limiter))
	b := newLocator(t, cfg(), m, WithLimiter(limiter))

	require.NoError(t, a.Refresh(context.Background()))
	assert.ErrorIs(t, b.Refresh(context.Background()), ErrThrottled)
	assert.EqualValues(t, 1, m.calls.Load())

	// 限流器故障视为限流
	mr.SetError("redis down")
	assert.ErrorIs(t, b.Refresh(context.Background()), ErrThrottled)
}

func TestLocator_PeriodicRefreshAndEvictor(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshInterval = 20 * time.Millisecond

	var evicted atomic.Value
	m := &fakeMeta{fn: func(call int) ([]model.ServiceInstance, error) {
		if call < 3 {
			return listA, nil
		}
		return listB, nil
	}}
	l := newLocator(t, cfg, m, WithEvictor(func(active []model.Endpoint) { evicted.Store(active) }))
	require.NoError(t, l.Initialize(context.Background()))

	require.Eventually(t, func() bool {
		services, err := l.GetServices(context.Background())
		return err == nil && len(services) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []model.Endpoint{"http://h2:8080", "http://h3:8080"}, evicted.Load())

	require.NoError(t, l.Close())
	calls := m.calls.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, calls, m.calls.Load())
	assert.ErrorIs(t, l.Initialize(context.Background()), ErrClosed)
}

func TestNew_Validation(t *testing.T) {
	m := &fakeMeta{}
	tests := []struct {
		name string
		cfg  *Config
		meta *fakeMeta
	}{
		{name: "nil config"},
		{name: "missing meta address", cfg: &Config{AppID: "demo"}, meta: m},
		{name: "missing app id", cfg: &Config{MetaAddress: "http://meta"}, meta: m},
		{name: "negative qps", cfg: &Config{MetaAddress: "http://meta", AppID: "demo", DiscoveryQPS: -1}, meta: m},
		{name: "negative delay", cfg: &Config{MetaAddress: "http://meta", AppID: "demo", DiscoveryRetryDelay: -time.Second}, meta: m},
		{name: "nil meta", cfg: &Config{MetaAddress: "http://meta", AppID: "demo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.meta == nil {
				_, err = New(tt.cfg, nil, withLookupEnv(noEnv))
			} else {
				_, err = New(tt.cfg, tt.meta, withLookupEnv(noEnv))
			}
			assert.Error(t, err)
		})
	}
}
