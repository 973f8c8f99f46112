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

// Package pipeline 理赔校验主流程：检索 → 空证据护栏 → 候选决策生成 →
// 引用校验 → 矛盾检测 → 业务规则 → 审计落库。各阶段只能让状态更严格，
// 不允许回退（单调降级）。
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"claimguard/internal/audit"
	"claimguard/internal/claim"
	"claimguard/internal/document"
	"claimguard/internal/generator"
	"claimguard/internal/retrieval"
	"claimguard/internal/validation"
	"claimguard/pkg/log"
	"claimguard/pkg/metrics"
	"claimguard/pkg/monitoring"
	"claimguard/pkg/tracing"
)

// ErrInvalidRequest 请求缺少必填字段或金额非法
var ErrInvalidRequest = fmt.Errorf("invalid claim request")

// Result 单次校验的产出：审计记录 ID 与最终决策
type Result struct {
	ClaimID  uuid.UUID            `json:"claim_id"`
	Decision claim.Decision       `json:"decision"`
	Evidence []claim.EvidenceItem `json:"evidence,omitempty"`
}

// Orchestrator 串联各阶段的编排器。依赖全部显式注入，便于替换与测试。
type Orchestrator struct {
	gateway        retrieval.Gateway
	generator      generator.Generator
	citations      *validation.CitationValidator
	contradictions *validation.ContradictionDetector
	rules          *validation.RuleEngine
	extractor      document.Extractor // 可为 nil：跳过单证比对
	store          audit.Store
	retryQueue     audit.RetryQueue // 可为 nil：落库失败直接记日志
	scorer         *monitoring.QualityScorer
	logger         *log.Logger
}

// Options 编排器可选依赖
type Options struct {
	Extractor  document.Extractor
	RetryQueue audit.RetryQueue
	Logger     *log.Logger
	Rules      validation.RuleConfig
}

// NewOrchestrator 创建编排器
func NewOrchestrator(gateway retrieval.Gateway, gen generator.Generator, store audit.Store, opts Options) (*Orchestrator, error) {
	if gateway == nil || gen == nil || store == nil {
		return nil, fmt.Errorf("gateway/generator/store 不可为空")
	}
	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = log.NewLogger(nil)
		if err != nil {
			return nil, err
		}
	}
	return &Orchestrator{
		gateway:        gateway,
		generator:      gen,
		citations:      validation.NewCitationValidator(),
		contradictions: validation.NewContradictionDetector(),
		rules:          validation.NewRuleEngine(opts.Rules),
		extractor:      opts.Extractor,
		store:          store,
		retryQueue:     opts.RetryQueue,
		scorer:         monitoring.NewQualityScorer(),
		logger:         logger,
	}, nil
}

// ValidateClaim 执行完整校验流程并落审计记录。
// 除请求非法外不返回错误：故障被吸收为更严格的决策状态，审计始终写入。
func (o *Orchestrator) ValidateClaim(ctx context.Context, req claim.Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartClaimSpan(ctx, "", req.PolicyNumber)
	defer span.End()

	evidence, decision, rawOutput := o.runStages(ctx, req)

	record, err := audit.NewRecord(req, evidence, decision, rawOutput)
	if err != nil {
		return nil, fmt.Errorf("构建审计记录failed: %w", err)
	}
	span.SetAttributes(attribute.String("claim.id", record.ClaimID.String()))
	o.persist(ctx, record)

	metrics.DecisionTotal.WithLabelValues(string(decision.Status)).Inc()
	for _, f := range decision.Findings {
		metrics.FindingTotal.WithLabelValues(string(f.Severity)).Inc()
	}
	score := o.scorer.ScoreDecision(qualityInput(evidence, decision))
	metrics.DecisionQualityScore.Observe(score.Overall)
	o.logger.Info("理赔校验完成",
		"claim_id", record.ClaimID,
		"policy_number", req.PolicyNumber,
		"status", decision.Status,
		"findings", len(decision.Findings),
		"quality_score", score.Overall,
	)
	return &Result{ClaimID: record.ClaimID, Decision: decision, Evidence: evidence}, nil
}

// runStages 执行检索与全部护栏，返回证据、最终决策与模型原始输出
func (o *Orchestrator) runStages(ctx context.Context, req claim.Request) ([]claim.EvidenceItem, claim.Decision, string) {
	evidence, err := o.retrieve(ctx, req)
	if err != nil {
		// 重试一次后仍失败：证据不可用，整单升级人工复核
		metrics.FaultTotal.WithLabelValues(string(claim.FaultKindOf(err))).Inc()
		o.logger.Warn("证据网关不可用", "policy_number", req.PolicyNumber, "error", err)
		return nil, claim.ManualReviewDecision("证据网关不可用，无法检索保单条款").
			WithWarning("evidence gateway unavailable: " + err.Error()), ""
	}
	metrics.RetrievalResultCount.Observe(float64(len(evidence)))

	// 空证据护栏：没有条款支撑时不触发生成，直接人工复核
	if len(evidence) == 0 {
		return nil, claim.ManualReviewDecision("未检索到相关保单条款").
			WithWarning("no relevant evidence retrieved"), ""
	}

	decision, rawOutput, ok := o.generateAndGuard(ctx, req, evidence, nil)
	if !ok {
		return evidence, decision, rawOutput
	}

	// 单证比对：首轮非 Error 且附带单证时执行第二轮
	if req.HasSupportingDocuments() && o.extractor != nil && decision.Status != claim.StatusError {
		decision = o.documentPass(ctx, req, evidence, decision)
	}

	return evidence, decision, rawOutput
}

func validateRequest(req claim.Request) error {
	if req.PolicyNumber == "" {
		return fmt.Errorf("%w: policy_number 不能为空", ErrInvalidRequest)
	}
	if req.Category == "" {
		return fmt.Errorf("%w: category 不能为空", ErrInvalidRequest)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("%w: amount 必须为正数", ErrInvalidRequest)
	}
	if req.Description == "" {
		return fmt.Errorf("%w: description 不能为空", ErrInvalidRequest)
	}
	return nil
}

// retrieve 调用证据网关，传输失败时重试一次
func (o *Orchestrator) retrieve(ctx context.Context, req claim.Request) ([]claim.EvidenceItem, error) {
	ctx, span := tracing.StartStageSpan(ctx, "retrieval")
	defer span.End()
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("retrieval").Observe(time.Since(start).Seconds())
	}()

	evidence, err := o.gateway.Retrieve(ctx, req.Description, req.Category)
	if err == nil {
		return evidence, nil
	}
	o.logger.Warn("检索failed，重试一次", "policy_number", req.PolicyNumber, "error", err)
	evidence, err = o.gateway.Retrieve(ctx, req.Description, req.Category)
	if err != nil {
		return nil, claim.NewFault(claim.FaultEvidenceUnavailable, err)
	}
	return evidence, nil
}

// generateAndGuard 生成候选决策并依次执行引用校验、矛盾检测与业务规则。
// ok=false 表示生成失败，返回的 decision 已是终态 Error。
func (o *Orchestrator) generateAndGuard(ctx context.Context, req claim.Request, evidence []claim.EvidenceItem, facts []claim.DocumentFact) (claim.Decision, string, bool) {
	ctx, span := tracing.StartStageSpan(ctx, "generation")
	defer span.End()
	genStart := time.Now()
	candidate, rawOutput, err := o.generator.Generate(ctx, req, evidence, facts)
	metrics.StageDuration.WithLabelValues("generation").Observe(time.Since(genStart).Seconds())
	if err != nil {
		metrics.FaultTotal.WithLabelValues(string(claim.FaultKindOf(err))).Inc()
		fault, _ := claim.AsFault(err)
		if fault != nil && fault.Kind == claim.FaultGenerationParseFailure {
			o.logger.Error("模型输出无法解析", "policy_number", req.PolicyNumber, "error", err)
			return claim.ErrorDecision("模型输出无法解析为结构化决策").
				WithWarning("generation output unparseable"), rawOutput, false
		}
		o.logger.Error("决策生成failed", "policy_number", req.PolicyNumber, "error", err)
		return claim.ErrorDecision("决策生成failed").
			WithWarning("generation failed: " + err.Error()), rawOutput, false
	}

	guardStart := time.Now()
	decision := claim.NewDecision(candidate)
	decision = o.citations.Validate(decision, evidence)
	decision = o.contradictions.Detect(decision, req, evidence, facts)
	decision = o.rules.Apply(decision, req, req.HasSupportingDocuments())
	metrics.StageDuration.WithLabelValues("validation").Observe(time.Since(guardStart).Seconds())
	return decision, rawOutput, true
}

// documentPass 第二轮：提取单证事实、重新生成并过全部护栏，与首轮决策合并。
// 合并只会更严格，首轮已有的 finding/warning 全部保留。
func (o *Orchestrator) documentPass(ctx context.Context, req claim.Request, evidence []claim.EvidenceItem, first claim.Decision) claim.Decision {
	ctx, span := tracing.StartStageSpan(ctx, "document")
	defer span.End()
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("document").Observe(time.Since(start).Seconds())
	}()

	results := document.ExtractAll(ctx, o.extractor, req.SupportingDocumentIDs)
	merged := first
	for _, r := range results {
		if r.Err != nil {
			o.logger.Warn("单证不可用", "policy_number", req.PolicyNumber, "document_id", r.DocumentID, "error", r.Err)
			merged = merged.WithWarning(fmt.Sprintf("document %s unavailable", r.DocumentID))
		}
	}
	facts := document.Facts(results)
	if len(facts) == 0 {
		// 所有单证都不可用：宣称有单证却一份都拿不到，升级人工复核
		return merged.WithStatus(claim.StatusManualReview).
			WithWarning("no supporting document could be read")
	}

	second, _, ok := o.generateAndGuard(ctx, req, evidence, facts)
	if !ok {
		// 首轮已有结论，第二轮生成失败不降为 Error，保守升级人工复核
		return merged.WithStatus(claim.StatusManualReview).
			WithWarning("document verification pass failed")
	}
	return merged.Merge(second)
}

// qualityInput 把证据与决策归一化为 0-100 的评分分量
func qualityInput(evidence []claim.EvidenceItem, decision claim.Decision) monitoring.DecisionInput {
	var quality float64
	if len(evidence) > 0 {
		for _, e := range evidence {
			quality += e.Score
		}
		quality = quality / float64(len(evidence)) * 100
	}

	cleanliness := 100.0
	for _, f := range decision.Findings {
		switch f.Severity {
		case claim.SeverityCritical:
			cleanliness -= 40
		case claim.SeverityHigh:
			cleanliness -= 20
		case claim.SeverityMedium:
			cleanliness -= 10
		default:
			cleanliness -= 5
		}
	}

	return monitoring.DecisionInput{
		EvidenceCompleteness: float64(len(evidence)) * 20, // 5 条及以上视为完整
		EvidenceQuality:      quality,
		Confidence:           decision.Candidate.Confidence * 100,
		GuardrailCleanliness: cleanliness,
	}
}

// persist 落审计记录；失败时进入异步重试队列，不阻塞响应
func (o *Orchestrator) persist(ctx context.Context, record *audit.Record) {
	ctx, span := tracing.StartPersistSpan(ctx, record.ClaimID.String(), "audit")
	defer span.End()
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("persist").Observe(time.Since(start).Seconds())
	}()

	if err := o.store.Persist(ctx, record); err != nil {
		fault := claim.NewFault(claim.FaultPersistenceFailure, err)
		metrics.AuditPersistFailTotal.Inc()
		metrics.FaultTotal.WithLabelValues(string(fault.Kind)).Inc()
		o.logger.Error("审计落库failed", "claim_id", record.ClaimID, "error", fault)
		if o.retryQueue != nil {
			if qErr := o.retryQueue.Enqueue(ctx, record); qErr != nil {
				o.logger.Error("审计重试入队failed", "claim_id", record.ClaimID, "error", qErr)
			}
		}
	}
}
