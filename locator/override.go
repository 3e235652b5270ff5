package locator

import (
	"strings"

	"github.com/ceyewan/beacon/model"
)

const (
	// PropertyConfigService 静态配置服务地址属性
	PropertyConfigService = "config-service"
	// EnvConfigService 静态配置服务地址环境变量
	EnvConfigService = "BEACON_CONFIG_SERVICE"

	// PropertyConfigServiceDeprecated 已废弃的属性名
	PropertyConfigServiceDeprecated = "configService"
	// EnvConfigServiceDeprecated 已废弃的环境变量名
	EnvConfigServiceDeprecated = "BEACON_CONFIGSERVICE"
)

// resolveOverride 按优先级查找静态地址，第一个非空值生效：
// 显式属性 > 环境变量 > 本地应用属性 > 废弃属性 > 废弃环境变量
func resolveOverride(props map[string]string, local PropertySource, lookupEnv func(string) (string, bool)) (string, string) {
	env := func(key string) string {
		v, _ := lookupEnv(key)
		return v
	}
	appProp := func(key string) string {
		if local == nil {
			return ""
		}
		return local.GetString(key)
	}

	sources := []struct {
		name  string
		value func() string
	}{
		{"property " + PropertyConfigService, func() string { return props[PropertyConfigService] }},
		{"env " + EnvConfigService, func() string { return env(EnvConfigService) }},
		{"app property " + PropertyConfigService, func() string { return appProp(PropertyConfigService) }},
		{"property " + PropertyConfigServiceDeprecated, func() string { return props[PropertyConfigServiceDeprecated] }},
		{"env " + EnvConfigServiceDeprecated, func() string { return env(EnvConfigServiceDeprecated) }},
	}
	for _, s := range sources {
		if v := strings.TrimSpace(s.value()); v != "" {
			return v, s.name
		}
	}
	return "", ""
}

// parseOverride 逗号分隔的 URL 列表，每个 URL 同时作为实例 ID 与地址
func parseOverride(raw string) []model.ServiceInstance {
	var out []model.ServiceInstance
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		out = append(out, model.ServiceInstance{
			ServiceID:  model.ConfigServiceID,
			InstanceID: part,
			Address:    part,
		})
	}
	return out
}
