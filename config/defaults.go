// =============================================================================
// 📦 CureSwarm 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Database:  DefaultDatabaseConfig(),
		Swarm:     DefaultSwarmConfig(),
		Catalog:   DefaultCatalogConfig(),
		Verify:    DefaultVerifyConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
		APIKey:          "",
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "cureswarm",
		Password:        "",
		Name:            "cureswarm",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultSwarmConfig 返回默认调度与共识配置
func DefaultSwarmConfig() SwarmConfig {
	return SwarmConfig{
		HypothesisProbability: 0.10,
		QCProbability:         0.25,
		SynthesisProbability:  0.10,
		ResearchWindow:        10,
		StaleTimeout:          30 * time.Minute,
		ReclaimInterval:       5 * time.Minute,
		HypothesisFindingMin:  15,
		SynthesisFindingMin:   10,
		SynthesisMaxPerRun:    5,
		NoteAggregationMax:    5,
	}
}

// DefaultCatalogConfig 返回默认任务目录配置
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		MissionPath: "",
		PairsPath:   "",
	}
}

// DefaultVerifyConfig 返回默认引文核验配置
func DefaultVerifyConfig() VerifyConfig {
	return VerifyConfig{
		Enabled: true,
		BaseURL: "https://api.crossref.org/works",
		Timeout: 10 * time.Second,
		MailTo:  "contact@cureswarm.org",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "cureswarm",
		SampleRate:   0.1,
	}
}
