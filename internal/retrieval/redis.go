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

package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"claimguard/internal/claim"
)

const (
	clauseKeyPrefix = "clauseguard:clause:"
	lineSetPrefix   = "clauseguard:line:"
	commonSetKey    = "clauseguard:line:_common"
)

// RedisGateway 基于 Redis 的条款索引：每条条款一个 hash，按险种组织集合；
// 通用条款（含除外/限额）进 _common 集合，参与所有险种检索。
type RedisGateway struct {
	client    *redis.Client
	topK      int
	threshold float64
}

// RedisGatewayConfig Redis 网关配置
type RedisGatewayConfig struct {
	Addr      string  `mapstructure:"addr"`
	Password  string  `mapstructure:"password"`
	DB        int     `mapstructure:"db"`
	TopK      int     `mapstructure:"top_k"`
	Threshold float64 `mapstructure:"threshold"`
}

// NewRedisGateway 创建 Redis 证据网关并 ping 验证连接
func NewRedisGateway(ctx context.Context, cfg RedisGatewayConfig) (*RedisGateway, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &RedisGateway{client: client, topK: topK, threshold: threshold}, nil
}

var _ Gateway = (*RedisGateway)(nil)
var _ Indexer = (*RedisGateway)(nil)

// Close 关闭连接
func (g *RedisGateway) Close() error {
	return g.client.Close()
}

// IndexClause 写入条款 hash 并加入险种集合
func (g *RedisGateway) IndexClause(ctx context.Context, line string, item claim.EvidenceItem) error {
	setKey := commonSetKey
	if line != "" {
		setKey = lineSetPrefix + line
	}
	pipe := g.client.TxPipeline()
	pipe.HSet(ctx, clauseKeyPrefix+item.ID, map[string]interface{}{
		"id":       item.ID,
		"category": item.Category,
		"text":     item.Text,
	})
	pipe.SAdd(ctx, setKey, item.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("索引条款 %s failed: %w", item.ID, err)
	}
	return nil
}

// Retrieve 取险种集合与通用集合的并集，逐条打分排序。
// 空集合不是错误：返回空列表，由管道的 guardrail 处理。
func (g *RedisGateway) Retrieve(ctx context.Context, queryText, category string) ([]claim.EvidenceItem, error) {
	keys := []string{commonSetKey}
	if category != "" {
		keys = append(keys, lineSetPrefix+category)
	}
	ids, err := g.client.SUnion(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("读取条款集合failed: %w", err)
	}
	if len(ids) == 0 {
		return []claim.EvidenceItem{}, nil
	}

	pipe := g.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, clauseKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("读取条款failed: %w", err)
	}

	queryTokens := tokenize(queryText)
	results := make([]claim.EvidenceItem, 0, len(ids))
	for _, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue // 条款 hash 缺失时跳过（集合与 hash 的写入非原子）
		}
		item := claim.EvidenceItem{
			ID:       fields["id"],
			Category: fields["category"],
			Text:     fields["text"],
		}
		score := scoreText(queryTokens, item.Text)
		if score < g.threshold {
			continue
		}
		item.Score = score
		results = append(results, item)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID // 分数相同按 id 保证确定性
	})
	if len(results) > g.topK {
		results = results[:g.topK]
	}
	return results, nil
}
