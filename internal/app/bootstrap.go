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

// Package app 统一初始化：供 api 与 worker 复用，避免在 cmd 内写业务装配
package app

import (
	"context"
	"fmt"
	"strings"

	"claimguard/internal/audit"
	"claimguard/internal/document"
	"claimguard/internal/generator"
	"claimguard/internal/model/llm"
	"claimguard/internal/retrieval"
	"claimguard/pkg/config"
	"claimguard/pkg/log"
	"claimguard/pkg/secrets"
)

// Bootstrap 按配置装配的核心依赖
type Bootstrap struct {
	Config     *config.Config
	Logger     *log.Logger
	Gateway    retrieval.Gateway
	Generator  generator.Generator
	Extractor  document.Extractor // 未配置单证目录时为 nil
	AuditStore audit.Store
	RetryQueue audit.RetryQueue
	Secrets    secrets.Store

	closers []func()
}

// NewBootstrap 根据配置创建 Bootstrap（检索网关、LLM、审计存储、重试队列）
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	logCfg := &log.Config{}
	if cfg != nil {
		logCfg.Level = cfg.Log.Level
		logCfg.Format = cfg.Log.Format
		logCfg.File = cfg.Log.File
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	b := &Bootstrap{Config: cfg, Logger: logger}

	b.Secrets, err = secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Config:   cfg.Secrets.Config,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 secret store failed: %w", err)
	}

	if err := b.initGateway(ctx, cfg); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.initGenerator(ctx, cfg); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.initAudit(ctx, cfg); err != nil {
		b.Close()
		return nil, err
	}

	if cfg.Documents.Dir != "" {
		b.Extractor = document.NewTextExtractor(document.NewFileSource(cfg.Documents.Dir))
	}
	return b, nil
}

func (b *Bootstrap) initGateway(ctx context.Context, cfg *config.Config) error {
	switch cfg.Retrieval.Type {
	case "redis":
		gw, err := retrieval.NewRedisGateway(ctx, retrieval.RedisGatewayConfig{
			Addr:      cfg.Retrieval.Addr,
			Password:  cfg.Retrieval.Password,
			DB:        cfg.Retrieval.DB,
			TopK:      cfg.Retrieval.TopK,
			Threshold: cfg.Retrieval.Threshold,
		})
		if err != nil {
			return fmt.Errorf("初始化 Redis 证据网关failed: %w", err)
		}
		b.Gateway = gw
		b.closers = append(b.closers, func() { _ = gw.Close() })
		b.Logger.Info("证据网关使用 Redis 后端", "addr", cfg.Retrieval.Addr)
	default:
		b.Gateway = retrieval.NewMemoryGateway(cfg.Retrieval.TopK, cfg.Retrieval.Threshold)
	}

	if cfg.Retrieval.ClauseFile != "" {
		indexer, ok := b.Gateway.(retrieval.Indexer)
		if !ok {
			return fmt.Errorf("证据网关不支持条款导入")
		}
		count, err := retrieval.LoadClauseFile(ctx, indexer, cfg.Retrieval.ClauseFile)
		if err != nil {
			return fmt.Errorf("导入条款文件failed: %w", err)
		}
		b.Logger.Info("条款导入完成", "file", cfg.Retrieval.ClauseFile, "count", count)
	}
	return nil
}

func (b *Bootstrap) initGenerator(ctx context.Context, cfg *config.Config) error {
	providerName := cfg.Model.Defaults
	if providerName == "" {
		for name := range cfg.Model.LLM.Providers {
			providerName = name
			break
		}
	}
	if providerName == "" {
		b.Logger.Warn("未配置 LLM provider，决策生成不可用")
		return nil
	}
	providerCfg := cfg.Model.LLM.Providers[providerName]

	apiKey := providerCfg.APIKey
	// 仍是 ${} 占位或为空时，从 secret store 取 llm/<provider>/api_key
	if apiKey == "" || strings.HasPrefix(apiKey, "${") {
		if v, err := b.Secrets.Get(ctx, "llm/"+providerName+"/api_key"); err == nil && v != "" {
			apiKey = v
		}
	}

	client, err := llm.NewClient(providerName, providerCfg.Model, apiKey, providerCfg.BaseURL)
	if err != nil {
		return fmt.Errorf("初始化 LLM client failed: %w", err)
	}

	if len(cfg.RateLimits.LLM) > 0 {
		limits := make(map[string]llm.LLMLimitConfig, len(cfg.RateLimits.LLM))
		for name, lc := range cfg.RateLimits.LLM {
			limits[name] = llm.LLMLimitConfig{
				TokensPerMinute:   lc.TokensPerMinute,
				RequestsPerMinute: lc.RequestsPerMinute,
				MaxConcurrent:     lc.MaxConcurrent,
			}
		}
		client = llm.NewRateLimitedClient(client, llm.NewLLMRateLimiter(limits, nil))
	}
	b.Generator = generator.NewLLMGenerator(client)
	return nil
}

func (b *Bootstrap) initAudit(ctx context.Context, cfg *config.Config) error {
	switch cfg.Audit.Store.Type {
	case "postgres":
		if cfg.Audit.Store.DSN == "" {
			return fmt.Errorf("audit.store.type=postgres 需要配置 dsn")
		}
		store, err := audit.NewPostgresStore(ctx, cfg.Audit.Store.DSN)
		if err != nil {
			return fmt.Errorf("初始化审计存储(postgres) failed: %w", err)
		}
		b.AuditStore = store
		b.closers = append(b.closers, store.Close)
		b.Logger.Info("审计存储使用 PostgreSQL 后端")
	default:
		b.AuditStore = audit.NewMemoryStore()
	}

	switch cfg.Audit.Retry.Type {
	case "redis":
		spool, err := audit.NewRedisSpool(ctx, cfg.Audit.Retry.Addr, cfg.Audit.Retry.Password, cfg.Audit.Retry.DB)
		if err != nil {
			return fmt.Errorf("初始化审计重试队列(redis) failed: %w", err)
		}
		b.RetryQueue = spool
		b.closers = append(b.closers, func() { _ = spool.Close() })
		b.Logger.Info("审计重试队列使用 Redis 后端", "addr", cfg.Audit.Retry.Addr)
	default:
		q := audit.NewMemoryRetryQueue(b.AuditStore, b.Logger.Logger)
		b.RetryQueue = q
		b.closers = append(b.closers, func() { _ = q.Close() })
	}
	return nil
}

// Close 释放 Bootstrap 持有的连接
func (b *Bootstrap) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}
