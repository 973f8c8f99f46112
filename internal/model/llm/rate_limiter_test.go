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

package llm

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterUnknownProviderUsesDefaults(t *testing.T) {
	l := NewLLMRateLimiter(nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Wait(ctx, "openai", 100); err != nil {
		t.Fatalf("默认配额下首个请求不应阻塞: %v", err)
	}
	l.Release("openai")
}

func TestRateLimiterConcurrencyLimit(t *testing.T) {
	l := NewLLMRateLimiter(map[string]LLMLimitConfig{
		"openai": {MaxConcurrent: 1},
	}, nil)

	ctx := context.Background()
	if err := l.Wait(ctx, "openai", 0); err != nil {
		t.Fatalf("首个并发 slot: %v", err)
	}

	blocked, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := l.Wait(blocked, "openai", 0); err == nil {
		t.Fatal("超过 max_concurrent 时应阻塞直至超时")
	}

	l.Release("openai")
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := l.Wait(ctx2, "openai", 0); err != nil {
		t.Fatalf("Release 后应可再次获取 slot: %v", err)
	}
}

func TestRateLimiterTokenClampToBurst(t *testing.T) {
	l := NewLLMRateLimiter(map[string]LLMLimitConfig{
		"openai": {TokensPerMinute: 60},
	}, nil)

	// 预估 token 远超 burst 时按 burst 预扣，不应永久失败
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Wait(ctx, "openai", 1_000_000); err != nil {
		t.Fatalf("超大预估 token 应被钳到 burst: %v", err)
	}
}

func TestRateLimitedClientNilLimiter(t *testing.T) {
	inner := &stubClient{reply: "ok"}
	c := NewRateLimitedClient(inner, nil)
	got, err := c.GenerateWithContext(context.Background(), "hello", GenerateOptions{})
	if err != nil || got != "ok" {
		t.Fatalf("nil limiter 应直通: got=%q err=%v", got, err)
	}
	if c.Provider() != inner.Provider() || c.Model() != inner.Model() {
		t.Fatal("包装器应透传 Provider/Model")
	}
}

type stubClient struct {
	reply string
}

func (s *stubClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return s.reply, nil
}

func (s *stubClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	return s.reply, nil
}

func (s *stubClient) Model() string    { return "stub-model" }
func (s *stubClient) Provider() string { return "stub" }
