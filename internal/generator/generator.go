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

// Package generator 将理赔请求与检索到的条款交给 LLM，产出候选决策。
// 输出解析为结构化的 claim.CandidateDecision；解析失败保留原始输出且不重试。
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"claimguard/internal/claim"
	"claimguard/internal/model/llm"
)

// Generator 候选决策生成器。facts 为二次校验时从单证中抽取的事实，首轮为 nil。
type Generator interface {
	Generate(ctx context.Context, req claim.Request, evidence []claim.EvidenceItem, facts []claim.DocumentFact) (claim.CandidateDecision, string, error)
}

const (
	defaultMaxRetries  = 2
	defaultMaxTokens   = 1024
	defaultTemperature = 0.1
)

// LLMGenerator 基于 LLM 的 Generator 实现，对传输层错误做指数退避重试。
type LLMGenerator struct {
	client     llm.Client
	maxRetries int
	backoff    time.Duration

	// sleepFunc 便于测试注入，默认 time.Sleep
	sleepFunc func(time.Duration)
}

// Option 配置 LLMGenerator
type Option func(*LLMGenerator)

// WithMaxRetries 设置传输层错误的最大重试次数（不含首次调用）
func WithMaxRetries(n int) Option {
	return func(g *LLMGenerator) {
		if n >= 0 {
			g.maxRetries = n
		}
	}
}

// WithBackoff 设置重试退避基准间隔
func WithBackoff(d time.Duration) Option {
	return func(g *LLMGenerator) {
		if d > 0 {
			g.backoff = d
		}
	}
}

// NewLLMGenerator 创建基于 LLM 的生成器
func NewLLMGenerator(client llm.Client, opts ...Option) *LLMGenerator {
	g := &LLMGenerator{
		client:     client,
		maxRetries: defaultMaxRetries,
		backoff:    500 * time.Millisecond,
		sleepFunc:  time.Sleep,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var _ Generator = (*LLMGenerator)(nil)

const systemPrompt = `你是保险理赔审核助手。根据理赔请求与保单条款证据，判断该理赔是否在承保范围内。
输出格式（仅输出合法 JSON，不要其他文字）：
{"status":"covered" 或 "not_covered" 或 "manual_review","explanation":"判断依据","cited_evidence_ids":["引用的条款 ID"],"confidence":0.0 到 1.0,"required_documents":["仍需补充的单证（可选）"]}
- cited_evidence_ids 只能引用下方列出的条款 ID，不得编造。
- 证据不足以判断时 status 设为 "manual_review"。
- confidence 表示你对该判断的把握程度。`

// Generate 实现 Generator。返回候选决策与模型原始输出（供审计保留）。
func (g *LLMGenerator) Generate(ctx context.Context, req claim.Request, evidence []claim.EvidenceItem, facts []claim.DocumentFact) (claim.CandidateDecision, string, error) {
	if g.client == nil {
		return claim.CandidateDecision{}, "", claim.NewFault(claim.FaultGenerationFailure, fmt.Errorf("未配置 LLM client"))
	}

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: g.buildUserPrompt(req, evidence, facts)},
	}
	opts := llm.GenerateOptions{MaxTokens: defaultMaxTokens, Temperature: defaultTemperature}

	var reply string
	var err error
	for attempt := 0; ; attempt++ {
		reply, err = g.client.ChatWithContext(ctx, messages, opts)
		if err == nil {
			break
		}
		if attempt >= g.maxRetries || ctx.Err() != nil {
			return claim.CandidateDecision{}, "", claim.NewFault(claim.FaultGenerationFailure, fmt.Errorf("LLM 调用失败（尝试 %d 次）: %w", attempt+1, err))
		}
		g.sleepFunc(g.backoff * time.Duration(1<<attempt))
	}

	candidate, perr := parseCandidate(reply)
	if perr != nil {
		// 解析失败不重试：原始输出保留在 Fault 中供人工排查
		return claim.CandidateDecision{}, reply, &claim.Fault{Kind: claim.FaultGenerationParseFailure, Err: perr, RawOutput: reply}
	}
	return candidate, reply, nil
}

func (g *LLMGenerator) buildUserPrompt(req claim.Request, evidence []claim.EvidenceItem, facts []claim.DocumentFact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "理赔请求：\n- 保单号：%s\n- 险种：%s\n- 申请金额：%.2f\n- 事故描述：%s\n", req.PolicyNumber, req.Category, req.Amount, req.Description)
	b.WriteString("\n保单条款证据：\n")
	for _, item := range evidence {
		fmt.Fprintf(&b, "[%s] (%s) %s\n", item.ID, item.Category, item.Text)
	}
	if len(facts) > 0 {
		b.WriteString("\n理赔单证中抽取的事实（与请求不一致时需指出）：\n")
		for _, f := range facts {
			fmt.Fprintf(&b, "- 单证 %s：", f.DocumentID)
			if f.Amount != nil {
				fmt.Fprintf(&b, "金额 %.2f；", *f.Amount)
			}
			if f.Date != nil {
				fmt.Fprintf(&b, "日期 %s；", f.Date.Format("2006-01-02"))
			}
			if f.Category != "" {
				fmt.Fprintf(&b, "类别 %s；", f.Category)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// candidateWire 模型输出的 JSON 结构，status 容忍别名由 ParseStatus 归一
type candidateWire struct {
	Status            string   `json:"status"`
	Explanation       string   `json:"explanation"`
	CitedEvidenceIDs  []string `json:"cited_evidence_ids"`
	Confidence        float64  `json:"confidence"`
	RequiredDocuments []string `json:"required_documents"`
}

func parseCandidate(reply string) (claim.CandidateDecision, error) {
	text := strings.TrimSpace(reply)
	// 尝试从回复中提取 JSON（可能被 markdown 包裹）
	if idx := strings.Index(text, "{"); idx >= 0 {
		if end := strings.LastIndex(text, "}"); end > idx {
			text = text[idx : end+1]
		}
	}
	var wire candidateWire
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return claim.CandidateDecision{}, fmt.Errorf("解析模型输出 JSON 失败: %w", err)
	}
	status, ok := claim.ParseStatus(wire.Status)
	if !ok {
		return claim.CandidateDecision{}, fmt.Errorf("模型输出的 status 无法识别: %q", wire.Status)
	}
	confidence := wire.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return claim.CandidateDecision{
		Status:            status,
		Explanation:       wire.Explanation,
		CitedEvidenceIDs:  wire.CitedEvidenceIDs,
		Confidence:        confidence,
		RequiredDocuments: wire.RequiredDocuments,
	}, nil
}
