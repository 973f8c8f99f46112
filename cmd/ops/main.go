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

// claimguard-ops 运维工具：条款导入、审计链校验、重试队列检查。
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"claimguard/internal/audit"
	"claimguard/internal/retrieval"
	"claimguard/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "import-clauses":
		if len(os.Args) < 3 {
			err = fmt.Errorf("用法: claimguard-ops import-clauses <clauses.json>")
		} else {
			err = importClauses(ctx, os.Args[2])
		}
	case "verify-chain":
		if len(os.Args) < 3 {
			err = fmt.Errorf("用法: claimguard-ops verify-chain <claim_id>")
		} else {
			err = verifyChain(ctx, os.Args[2])
		}
	case "retry-depth":
		err = retryDepth(ctx)
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("claimguard-ops - ClaimGuard 运维工具")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  claimguard-ops import-clauses <clauses.json>  导入条款文件到 Redis 证据网关")
	fmt.Println("  claimguard-ops verify-chain <claim_id>        校验审计记录的哈希链")
	fmt.Println("  claimguard-ops retry-depth                    查看审计重试队列深度")
	fmt.Println()
	fmt.Println("配置读取 configs/api.yaml。")
}

// importClauses 将条款 JSON 文件写入 Redis 证据索引。
func importClauses(ctx context.Context, path string) error {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		return fmt.Errorf("加载配置 failed: %w", err)
	}
	if cfg.Retrieval.Type != "redis" {
		return fmt.Errorf("import-clauses 需要 retrieval.type=redis，当前为 %q", cfg.Retrieval.Type)
	}
	gateway, err := retrieval.NewRedisGateway(ctx, retrieval.RedisGatewayConfig{
		Addr:      cfg.Retrieval.Addr,
		Password:  cfg.Retrieval.Password,
		DB:        cfg.Retrieval.DB,
		TopK:      cfg.Retrieval.TopK,
		Threshold: cfg.Retrieval.Threshold,
	})
	if err != nil {
		return fmt.Errorf("连接 Redis failed: %w", err)
	}
	defer gateway.Close()

	n, err := retrieval.LoadClauseFile(ctx, gateway, path)
	if err != nil {
		return fmt.Errorf("导入条款 failed: %w", err)
	}
	fmt.Printf("已导入 %d 条条款\n", n)
	return nil
}

// verifyChain 加载审计记录并校验每个条目的哈希与链接。
func verifyChain(ctx context.Context, rawID string) error {
	claimID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("非法 claim_id %q: %w", rawID, err)
	}
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		return fmt.Errorf("加载配置 failed: %w", err)
	}
	if cfg.Audit.Store.Type != "postgres" {
		return fmt.Errorf("verify-chain 需要 audit.store.type=postgres，当前为 %q", cfg.Audit.Store.Type)
	}
	store, err := audit.NewPostgresStore(ctx, cfg.Audit.Store.DSN)
	if err != nil {
		return fmt.Errorf("连接审计库 failed: %w", err)
	}
	defer store.Close()

	record, err := store.Get(ctx, claimID)
	if err != nil {
		return fmt.Errorf("加载审计记录 failed: %w", err)
	}
	if err := record.ValidateChain(); err != nil {
		return fmt.Errorf("哈希链校验 failed: %w", err)
	}
	fmt.Printf("审计记录 %s 哈希链完整，共 %d 个条目\n", claimID, len(record.Entries))
	return nil
}

// retryDepth 报告 Redis 重试队列中待持久化的记录数。
func retryDepth(ctx context.Context) error {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		return fmt.Errorf("加载配置 failed: %w", err)
	}
	if cfg.Audit.Retry.Type != "redis" {
		return fmt.Errorf("retry-depth 需要 audit.retry.type=redis，当前为 %q", cfg.Audit.Retry.Type)
	}
	spool, err := audit.NewRedisSpool(ctx, cfg.Audit.Retry.Addr, cfg.Audit.Retry.Password, cfg.Audit.Retry.DB)
	if err != nil {
		return fmt.Errorf("连接重试队列 failed: %w", err)
	}
	defer spool.Close()

	depth, err := spool.Depth(ctx)
	if err != nil {
		return fmt.Errorf("读取队列深度 failed: %w", err)
	}
	fmt.Printf("审计重试队列深度: %d\n", depth)
	return nil
}
