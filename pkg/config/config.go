// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Model      ModelConfig      `mapstructure:"model"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Documents  DocumentsConfig  `mapstructure:"documents"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Rules      RulesConfig      `mapstructure:"rules"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int        `mapstructure:"port"`
	Host    string     `mapstructure:"host"`
	Timeout string     `mapstructure:"timeout"`
	CORS    CORSConfig `mapstructure:"cors"`
	// RateLimitRPS 全局限流（每秒请求数），<=0 不限
	RateLimitRPS int `mapstructure:"rate_limit_rps"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM      LLMConfig `mapstructure:"llm"`
	Defaults string    `mapstructure:"defaults"` // 默认 provider 名
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置。APIKey 支持 ${ENV_VAR} 占位。
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// RetrievalConfig 证据检索配置
type RetrievalConfig struct {
	Type      string  `mapstructure:"type"` // memory | redis
	Addr      string  `mapstructure:"addr"`
	Password  string  `mapstructure:"password"`
	DB        int     `mapstructure:"db"`
	TopK      int     `mapstructure:"top_k"`
	Threshold float64 `mapstructure:"threshold"`
	// ClauseFile 启动时批量导入的条款 JSON 文件，可选
	ClauseFile string `mapstructure:"clause_file"`
}

// DocumentsConfig 理赔单证配置
type DocumentsConfig struct {
	Dir string `mapstructure:"dir"` // 单证目录；空则禁用单证比对
}

// AuditConfig 审计存储配置
type AuditConfig struct {
	Store AuditStoreConfig `mapstructure:"store"`
	Retry AuditRetryConfig `mapstructure:"retry"`
}

// AuditStoreConfig 审计落库配置
type AuditStoreConfig struct {
	Type string `mapstructure:"type"` // memory | postgres
	DSN  string `mapstructure:"dsn"`  // Postgres 连接串，type=postgres 时必填
}

// AuditRetryConfig 审计落库失败的异步重试队列配置
type AuditRetryConfig struct {
	Type     string `mapstructure:"type"` // memory | redis
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RulesConfig 业务规则阈值，零值使用内置默认
type RulesConfig struct {
	HighValueThreshold   float64 `mapstructure:"high_value_threshold"`
	LowValueThreshold    float64 `mapstructure:"low_value_threshold"`
	ConfidenceFloor      float64 `mapstructure:"confidence_floor"`
	AutoApproveConfidence float64 `mapstructure:"auto_approve_confidence"`
}

// RateLimitsConfig 限流配置
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// SecretsConfig Secret Store 配置
type SecretsConfig struct {
	Provider string            `mapstructure:"provider"` // vault | k8s | env | memory
	Config   map[string]string `mapstructure:"config"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// replaceEnvVars 替换配置中的 ${ENV_VAR} 占位（模型 API Key 等敏感项）
func replaceEnvVars(config *Config) {
	for provider, providerConfig := range config.Model.LLM.Providers {
		providerConfig.APIKey = expandEnv(providerConfig.APIKey)
		config.Model.LLM.Providers[provider] = providerConfig
	}
	config.Audit.Store.DSN = expandEnv(config.Audit.Store.DSN)
	config.Audit.Retry.Password = expandEnv(config.Audit.Retry.Password)
	config.Retrieval.Password = expandEnv(config.Retrieval.Password)
}

func expandEnv(value string) string {
	if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return value
	}
	envVar := strings.TrimSuffix(strings.TrimPrefix(value, "${"), "}")
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return value
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// LoadWorkerConfig 加载 Worker 配置（configs/worker.yaml）
func LoadWorkerConfig() (*Config, error) {
	return LoadConfig("configs/worker.yaml")
}
