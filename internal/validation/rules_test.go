// Copyright 2026 fanjia1024
// Tests for the business rule engine

package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimguard/internal/claim"
)

func coveredDecision(confidence float64) claim.Decision {
	return claim.NewDecision(claim.CandidateDecision{
		Status:           claim.StatusCovered,
		Explanation:      "covered per outpatient clause",
		CitedEvidenceIDs: []string{"CL-001"},
		Confidence:       confidence,
	})
}

// 场景 A：$300 / 0.97 / Covered / 有佐证文档 => 保持 Covered 且 auto-approved
func TestApply_AutoApproval(t *testing.T) {
	e := NewRuleEngine(DefaultRuleConfig())
	req := claim.Request{PolicyNumber: "P-1", Category: "health", Amount: 300}

	out := e.Apply(coveredDecision(0.97), req, true)

	assert.Equal(t, claim.StatusCovered, out.Status)
	assert.True(t, out.HasTag(claim.TagAutoApproved))
}

// 场景 B：$7,000 / 0.99 / Covered => 高额规则无视置信度，ManualReview
func TestApply_HighValueOverridesConfidence(t *testing.T) {
	e := NewRuleEngine(DefaultRuleConfig())
	req := claim.Request{PolicyNumber: "P-2", Category: "health", Amount: 7000}

	out := e.Apply(coveredDecision(0.99), req, false)

	assert.Equal(t, claim.StatusManualReview, out.Status)
	require.NotEmpty(t, out.Warnings)
	assert.Contains(t, out.Warnings[0], "high-value")
}

// 高额阈值为严格大于：恰好 $5,000 不触发
func TestApply_HighValueThresholdIsExclusive(t *testing.T) {
	e := NewRuleEngine(DefaultRuleConfig())
	req := claim.Request{PolicyNumber: "P-3", Category: "health", Amount: 5000}

	out := e.Apply(coveredDecision(0.9), req, false)

	assert.Equal(t, claim.StatusCovered, out.Status)
	assert.True(t, out.HasTag(claim.TagReducedReview))
}

func TestApply_LowConfidenceForcesReview(t *testing.T) {
	e := NewRuleEngine(DefaultRuleConfig())
	req := claim.Request{PolicyNumber: "P-4", Category: "health", Amount: 300}

	out := e.Apply(coveredDecision(0.6), req, true)

	assert.Equal(t, claim.StatusManualReview, out.Status)
}

// 自动核准要求全部四个条件：缺佐证文档则不标记
func TestApply_AutoApprovalRequiresDocuments(t *testing.T) {
	e := NewRuleEngine(DefaultRuleConfig())
	req := claim.Request{PolicyNumber: "P-5", Category: "health", Amount: 300}

	out := e.Apply(coveredDecision(0.97), req, false)

	assert.Equal(t, claim.StatusCovered, out.Status)
	assert.False(t, out.HasTag(claim.TagAutoApproved))
}

func TestApply_MidBandTagsReducedReview(t *testing.T) {
	e := NewRuleEngine(DefaultRuleConfig())
	req := claim.Request{PolicyNumber: "P-6", Category: "health", Amount: 1200}

	out := e.Apply(coveredDecision(0.9), req, true)

	assert.Equal(t, claim.StatusCovered, out.Status)
	assert.True(t, out.HasTag(claim.TagReducedReview))
	assert.False(t, out.HasTag(claim.TagAutoApproved))
}

// Critical Finding 已存在时短路全部规则
func TestApply_CriticalShortCircuits(t *testing.T) {
	e := NewRuleEngine(DefaultRuleConfig())
	req := claim.Request{PolicyNumber: "P-7", Category: "health", Amount: 300}

	d := coveredDecision(0.97).WithFinding(claim.Finding{
		Severity:    claim.SeverityCritical,
		Description: "fabricated citation",
	})
	out := e.Apply(d, req, true)

	assert.Equal(t, claim.StatusManualReview, out.Status)
	assert.False(t, out.HasTag(claim.TagAutoApproved), "短路后不应再评估自动核准")
}

// 规则引擎单调：任何输入下输出严格度不低于输入
func TestApply_Monotonic(t *testing.T) {
	e := NewRuleEngine(DefaultRuleConfig())
	statuses := []claim.Status{claim.StatusCovered, claim.StatusNotCovered, claim.StatusManualReview, claim.StatusError}
	amounts := []float64{100, 499, 500, 4999, 5000, 5001, 20000}
	confidences := []float64{0.2, 0.5, 0.85, 0.94, 0.95, 0.99}

	for _, s := range statuses {
		for _, amount := range amounts {
			for _, conf := range confidences {
				for _, docs := range []bool{true, false} {
					d := claim.NewDecision(claim.CandidateDecision{Status: s, Confidence: conf})
					req := claim.Request{PolicyNumber: "P", Category: "health", Amount: amount}
					out := e.Apply(d, req, docs)
					if out.Status.Rank() < d.Status.Rank() {
						t.Fatalf("单调性被破坏: in=%s out=%s amount=%.0f conf=%.2f docs=%v",
							d.Status, out.Status, amount, conf, docs)
					}
				}
			}
		}
	}
}

// 确定性：相同输入重复运行产出逐字节相同的结果
func TestApply_Deterministic(t *testing.T) {
	e := NewRuleEngine(DefaultRuleConfig())
	req := claim.Request{PolicyNumber: "P-8", Category: "motor", Amount: 2600}
	d := coveredDecision(0.91).WithFinding(claim.Finding{
		Severity:    claim.SeverityHigh,
		Description: "amount near limit",
	})

	first, err := json.Marshal(e.Apply(d, req, true))
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := json.Marshal(e.Apply(d, req, true))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again), "第 %d 次运行输出不一致", i)
	}
}
