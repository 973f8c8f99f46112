// Copyright 2026 fanjia1024
// Decision quality scoring

// Package monitoring 决策质量评分，不依赖 internal。
// 评分输入由调用方从证据与决策中归一化为 0-100 的分量。
package monitoring

import (
	"math"
)

// DecisionInput 决策评分输入，各分量取值 0-100。
type DecisionInput struct {
	// EvidenceCompleteness 检索到的条款覆盖度
	EvidenceCompleteness float64
	// EvidenceQuality 证据相关性分数的平均水平
	EvidenceQuality float64
	// Confidence 模型自报置信度
	Confidence float64
	// GuardrailCleanliness 护栏通过程度，finding 越多越低
	GuardrailCleanliness float64
}

// QualityScore 质量评分
type QualityScore struct {
	Overall              float64  `json:"overall"`
	EvidenceCompleteness float64  `json:"evidence_completeness"`
	EvidenceQuality      float64  `json:"evidence_quality"`
	Confidence           float64  `json:"confidence"`
	GuardrailCleanliness float64  `json:"guardrail_cleanliness"`
	Recommendations      []string `json:"recommendations"`
}

// QualityScorer 决策质量评分器。权重固定：证据覆盖 30%、证据质量 25%、
// 置信度 25%、护栏通过 20%。
type QualityScorer struct{}

// NewQualityScorer 创建质量评分器
func NewQualityScorer() *QualityScorer {
	return &QualityScorer{}
}

// ScoreDecision 对单个决策评分
func (s *QualityScorer) ScoreDecision(in DecisionInput) *QualityScore {
	input := DecisionInput{
		EvidenceCompleteness: clampScore(in.EvidenceCompleteness),
		EvidenceQuality:      clampScore(in.EvidenceQuality),
		Confidence:           clampScore(in.Confidence),
		GuardrailCleanliness: clampScore(in.GuardrailCleanliness),
	}

	overall := 0.30*input.EvidenceCompleteness +
		0.25*input.EvidenceQuality +
		0.25*input.Confidence +
		0.20*input.GuardrailCleanliness

	return &QualityScore{
		Overall:              round1(overall),
		EvidenceCompleteness: round1(input.EvidenceCompleteness),
		EvidenceQuality:      round1(input.EvidenceQuality),
		Confidence:           round1(input.Confidence),
		GuardrailCleanliness: round1(input.GuardrailCleanliness),
		Recommendations:      buildRecommendations(input),
	}
}

func buildRecommendations(in DecisionInput) []string {
	recs := make([]string, 0, 4)
	if in.EvidenceCompleteness < 70 {
		recs = append(recs, "expand the clause index for this line of business")
	}
	if in.EvidenceQuality < 70 {
		recs = append(recs, "review retrieval threshold, low-relevance clauses dominate")
	}
	if in.Confidence < 70 {
		recs = append(recs, "review model confidence calibration and decision thresholds")
	}
	if in.GuardrailCleanliness < 70 {
		recs = append(recs, "route to manual review, guardrails flagged this decision")
	}
	return recs
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
