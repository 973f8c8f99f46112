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

// Package worker 审计补写 Worker：消费 Redis 重试队列，把 API 进程落库失败的
// 审计记录补写进 Postgres。投递至少一次，Persist 幂等兜底。
package worker

import (
	"context"
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"claimguard/internal/app"
	"claimguard/internal/audit"
	"claimguard/pkg/tracing"
)

// App Worker 应用
type App struct {
	bootstrap      *app.Bootstrap
	drainer        *audit.Drainer
	tracerProvider *sdktrace.TracerProvider
	cancel         context.CancelFunc
	done           chan struct{}
}

// NewApp 创建 Worker 应用（由 cmd/worker 调用）。
// 要求 audit.retry.type=redis：进程内队列无法跨进程消费。
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	spool, ok := bootstrap.RetryQueue.(*audit.RedisSpool)
	if !ok {
		return nil, fmt.Errorf("worker 需要 audit.retry.type=redis")
	}
	a := &App{
		bootstrap: bootstrap,
		drainer:   audit.NewDrainer(spool, bootstrap.AuditStore, bootstrap.Logger.Logger),
		done:      make(chan struct{}),
	}
	if tc := bootstrap.Config.Monitoring.Tracing; tc.Enable && tc.ExportEndpoint != "" {
		serviceName := tc.ServiceName
		if serviceName == "" {
			serviceName = "claimguard-worker"
		}
		tp, err := tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    serviceName,
			ExportEndpoint: tc.ExportEndpoint,
			Insecure:       tc.Insecure,
		})
		if err != nil {
			return nil, fmt.Errorf("初始化链路追踪failed: %w", err)
		}
		a.tracerProvider = tp
	}
	return a, nil
}

// Run 阻塞运行直到 Shutdown
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	defer close(a.done)

	a.bootstrap.Logger.Info("审计补写 Worker 启动")
	err := a.drainer.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

// Shutdown 停止消费并释放连接
func (a *App) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	select {
	case <-a.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if a.tracerProvider != nil {
		_ = a.tracerProvider.Shutdown(ctx)
	}
	a.bootstrap.Close()
	return nil
}
