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

package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"claimguard/pkg/metrics"
)

// RetryQueue 审计落库失败后的异步重试队列。Enqueue 不阻塞请求路径。
type RetryQueue interface {
	Enqueue(ctx context.Context, record *Record) error
	Close() error
}

// retrySpoolKey 重试队列的 Redis list key
const retrySpoolKey = "claimguard:audit:retry"

// RedisSpool 基于 Redis list 的重试队列。API 进程 Enqueue，
// worker 进程 Dequeue 后补写 Postgres（至少一次投递，Persist 幂等兜底）。
type RedisSpool struct {
	client *redis.Client
}

// NewRedisSpool 创建 Redis 重试队列并验证连通性
func NewRedisSpool(ctx context.Context, addr, password string, db int) (*RedisSpool, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接 Redis failed: %w", err)
	}
	return &RedisSpool{client: client}, nil
}

var _ RetryQueue = (*RedisSpool)(nil)

// Enqueue 实现 RetryQueue
func (s *RedisSpool) Enqueue(ctx context.Context, record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化审计记录failed: %w", err)
	}
	if err := s.client.LPush(ctx, retrySpoolKey, data).Err(); err != nil {
		return err
	}
	if depth, err := s.client.LLen(ctx, retrySpoolKey).Result(); err == nil {
		metrics.AuditRetryQueueDepth.Set(float64(depth))
	}
	return nil
}

// Dequeue 阻塞取出一条待重试记录；超时返回 (nil, nil)
func (s *RedisSpool) Dequeue(ctx context.Context, timeout time.Duration) (*Record, error) {
	values, err := s.client.BRPop(ctx, timeout, retrySpoolKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BRPop 返回 [key, value]
	if len(values) != 2 {
		return nil, fmt.Errorf("BRPop 返回异常: %v", values)
	}
	var record Record
	if err := json.Unmarshal([]byte(values[1]), &record); err != nil {
		return nil, fmt.Errorf("反序列化审计记录failed: %w", err)
	}
	return &record, nil
}

// Depth 当前队列深度
func (s *RedisSpool) Depth(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, retrySpoolKey).Result()
}

// Close 关闭 Redis 连接
func (s *RedisSpool) Close() error {
	return s.client.Close()
}

// Drainer 持续消费重试队列并补写存储，供 worker 进程运行
type Drainer struct {
	spool   *RedisSpool
	store   Store
	logger  *slog.Logger
	backoff time.Duration
}

// NewDrainer 创建重试队列消费者
func NewDrainer(spool *RedisSpool, store Store, logger *slog.Logger) *Drainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Drainer{spool: spool, store: store, logger: logger, backoff: 2 * time.Second}
}

// Run 阻塞运行直到 ctx 取消。落库仍失败的记录放回队尾，避免单条坏记录卡死队列。
func (d *Drainer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := d.spool.Dequeue(ctx, time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Error("读取审计重试队列failed", "error", err)
			sleepCtx(ctx, d.backoff)
			continue
		}
		if record == nil {
			continue
		}
		if err := d.store.Persist(ctx, record); err != nil {
			d.logger.Error("审计补写failed，放回队列", "claim_id", record.ClaimID, "error", err)
			metrics.AuditPersistFailTotal.Inc()
			if reErr := d.spool.Enqueue(ctx, record); reErr != nil {
				d.logger.Error("放回审计重试队列failed", "claim_id", record.ClaimID, "error", reErr)
			}
			sleepCtx(ctx, d.backoff)
			continue
		}
		d.logger.Info("审计记录补写成功", "claim_id", record.ClaimID)
		if depth, err := d.spool.Depth(ctx); err == nil {
			metrics.AuditRetryQueueDepth.Set(float64(depth))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// memoryQueue 进程内重试队列：未配置 Redis 时的兜底，后台协程带退避重试
type memoryQueue struct {
	store  Store
	logger *slog.Logger
	ch     chan *Record
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMemoryRetryQueue 创建进程内重试队列并启动后台补写协程
func NewMemoryRetryQueue(store Store, logger *slog.Logger) RetryQueue {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &memoryQueue{
		store:  store,
		logger: logger,
		ch:     make(chan *Record, 256),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go q.loop(ctx)
	return q
}

func (q *memoryQueue) Enqueue(ctx context.Context, record *Record) error {
	select {
	case q.ch <- record:
		metrics.AuditRetryQueueDepth.Set(float64(len(q.ch)))
		return nil
	default:
		return errors.New("审计重试队列已满")
	}
}

func (q *memoryQueue) loop(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		case record := <-q.ch:
			backoff := time.Second
			for {
				if err := q.store.Persist(ctx, record); err == nil {
					q.logger.Info("审计记录补写成功", "claim_id", record.ClaimID)
					metrics.AuditRetryQueueDepth.Set(float64(len(q.ch)))
					break
				} else if ctx.Err() != nil {
					return
				} else {
					metrics.AuditPersistFailTotal.Inc()
					q.logger.Error("审计补写failed，退避后重试", "claim_id", record.ClaimID, "error", err)
					sleepCtx(ctx, backoff)
					if backoff < 30*time.Second {
						backoff *= 2
					}
				}
			}
		}
	}
}

func (q *memoryQueue) Close() error {
	q.cancel()
	<-q.done
	return nil
}
