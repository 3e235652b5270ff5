package trace

// Config 链路追踪配置
type Config struct {
	ServiceName string  `json:"service_name" yaml:"service_name" mapstructure:"service_name"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"` // OTLP gRPC 地址，如 localhost:4317
	Sampler     float64 `json:"sampler" yaml:"sampler" mapstructure:"sampler"`    // 采样率 [0, 1]
	Batcher     string  `json:"batcher" yaml:"batcher" mapstructure:"batcher"`    // batch|simple
	Insecure    bool    `json:"insecure" yaml:"insecure" mapstructure:"insecure"`
}

// DefaultConfig 返回默认配置
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Endpoint:    "localhost:4317",
		Sampler:     1.0,
		Batcher:     "batch",
		Insecure:    true,
	}
}

func (c *Config) validate() error {
	if c == nil {
		return errConfigNil
	}
	if c.ServiceName == "" {
		return errServiceName
	}
	if c.Endpoint == "" {
		return errEndpoint
	}
	if c.Sampler < 0 || c.Sampler > 1 {
		return errSampler
	}
	if c.Batcher != "" && c.Batcher != "batch" && c.Batcher != "simple" {
		return errBatcher
	}
	return nil
}
