package metrics

// Config 指标配置
//
//	metrics:
//	  enabled: true
//	  service_name: "beacon-client"
//	  port: 9090
//	  path: "/metrics"
type Config struct {
	// Enabled 为 false 时 New 返回 noop Meter
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// ServiceName 写入 OTel Resource 的 service.name
	ServiceName string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`

	// Version 写入 OTel Resource 的 service.version
	Version string `json:"version" yaml:"version" mapstructure:"version"`

	// Port 大于 0 时启动 Prometheus HTTP 服务
	Port int `json:"port" yaml:"port" mapstructure:"port"`

	// Path Prometheus 采集路径，默认 /metrics
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// Runtime 是否采集 Go runtime 指标（GC、goroutine、内存）
	Runtime bool `json:"runtime" yaml:"runtime" mapstructure:"runtime"`
}

// NewDevDefaultConfig 开发环境默认配置：启用指标，不暴露端口
func NewDevDefaultConfig(serviceName string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: serviceName,
		Version:     "dev",
		Path:        "/metrics",
	}
}

func (c *Config) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "beacon"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}
