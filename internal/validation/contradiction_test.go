// Copyright 2026 fanjia1024
// Tests for the contradiction detector

package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimguard/internal/claim"
)

func healthEvidence() []claim.EvidenceItem {
	return []claim.EvidenceItem{
		{ID: "CL-001", Category: "coverage", Text: "Outpatient treatment is covered in full.", Score: 0.9},
		{ID: "CL-002", Category: "exclusion", Text: "Cosmetic procedures are excluded from coverage.", Score: 0.8},
		{ID: "CL-003", Category: "limitation", Text: "Physiotherapy is limited to $2,000 per policy year.", Score: 0.7},
		{ID: "CL-004", Category: "coverage", Text: "Emergency transport is covered up to $5,000.", Score: 0.6},
	}
}

func healthRequest(amount float64) claim.Request {
	return claim.Request{
		PolicyNumber: "POL-12345",
		Category:     "health",
		Amount:       amount,
		Description:  "physiotherapy after knee surgery",
	}
}

// 场景 C：Covered 引用除外条款 => Critical => ManualReview
func TestDetect_CoveredCitingExclusion(t *testing.T) {
	det := NewContradictionDetector()
	d := claim.NewDecision(claim.CandidateDecision{
		Status:           claim.StatusCovered,
		CitedEvidenceIDs: []string{"CL-001", "CL-002"},
		Confidence:       0.9,
	})

	out := det.Detect(d, healthRequest(300), healthEvidence(), nil)

	assert.Equal(t, claim.StatusManualReview, out.Status)
	// 检查 1 与检查 2 各自独立报告（defense-in-depth）
	criticals := 0
	for _, f := range out.Findings {
		if f.Severity == claim.SeverityCritical {
			criticals++
		}
	}
	assert.Equal(t, 2, criticals)
}

func TestDetect_NotCoveredWithoutExclusionCitation(t *testing.T) {
	det := NewContradictionDetector()
	d := claim.NewDecision(claim.CandidateDecision{
		Status:           claim.StatusNotCovered,
		CitedEvidenceIDs: []string{"CL-001"},
		Confidence:       0.8,
	})

	out := det.Detect(d, healthRequest(300), healthEvidence(), nil)

	require.NotEmpty(t, out.Findings)
	assert.Equal(t, claim.SeverityCritical, out.Findings[0].Severity)
	assert.Equal(t, claim.StatusManualReview, out.Status)
}

func TestDetect_NotCoveredCitingExclusionIsCoherent(t *testing.T) {
	det := NewContradictionDetector()
	d := claim.NewDecision(claim.CandidateDecision{
		Status:           claim.StatusNotCovered,
		CitedEvidenceIDs: []string{"CL-002"},
		Confidence:       0.8,
	})

	out := det.Detect(d, healthRequest(300), healthEvidence(), nil)
	assert.Empty(t, out.Findings)
	assert.Equal(t, claim.StatusNotCovered, out.Status)
}

func TestDetect_ConfidenceStatusMismatch(t *testing.T) {
	det := NewContradictionDetector()

	// Covered 低置信
	low := claim.NewDecision(claim.CandidateDecision{
		Status:           claim.StatusCovered,
		CitedEvidenceIDs: []string{"CL-001"},
		Confidence:       0.3,
	})
	out := det.Detect(low, healthRequest(300), healthEvidence(), nil)
	require.Len(t, out.Findings, 1)
	assert.Equal(t, claim.SeverityHigh, out.Findings[0].Severity)
	// High 单独不降级
	assert.Equal(t, claim.StatusCovered, out.Status)

	// NotCovered 高置信但引用不足
	confident := claim.NewDecision(claim.CandidateDecision{
		Status:           claim.StatusNotCovered,
		CitedEvidenceIDs: []string{"CL-002"},
		Confidence:       0.95,
	})
	out = det.Detect(confident, healthRequest(300), healthEvidence(), nil)
	var high int
	for _, f := range out.Findings {
		if f.Severity == claim.SeverityHigh {
			high++
		}
	}
	assert.Equal(t, 1, high)
}

func TestDetect_AmountExceedsClauseLimit(t *testing.T) {
	det := NewContradictionDetector()
	d := claim.NewDecision(claim.CandidateDecision{
		Status:           claim.StatusCovered,
		CitedEvidenceIDs: []string{"CL-003"},
		Confidence:       0.9,
	})

	// CL-003 编码限额 $2,000，理赔 3500
	out := det.Detect(d, healthRequest(3500), healthEvidence(), nil)
	require.Len(t, out.Findings, 1)
	assert.Equal(t, claim.SeverityHigh, out.Findings[0].Severity)
	assert.Contains(t, out.Findings[0].Description, "CL-003")
	assert.Equal(t, claim.StatusCovered, out.Status)

	// 限额内无 finding
	out = det.Detect(d, healthRequest(1500), healthEvidence(), nil)
	assert.Empty(t, out.Findings)
}

func TestDetect_DocumentFactConflicts(t *testing.T) {
	det := NewContradictionDetector()
	d := claim.NewDecision(claim.CandidateDecision{
		Status:           claim.StatusCovered,
		CitedEvidenceIDs: []string{"CL-001"},
		Confidence:       0.9,
	})

	docAmount := 950.0
	facts := []claim.DocumentFact{{DocumentID: "doc-1", Amount: &docAmount}}
	out := det.Detect(d, healthRequest(300), healthEvidence(), facts)
	require.Len(t, out.Findings, 1)
	assert.Equal(t, claim.SeverityHigh, out.Findings[0].Severity)
	assert.Contains(t, out.Findings[0].Description, "doc-1")

	// 金额一致（容差内）不产出 finding
	consistent := 300.5
	out = det.Detect(d, healthRequest(300), healthEvidence(),
		[]claim.DocumentFact{{DocumentID: "doc-2", Amount: &consistent}})
	assert.Empty(t, out.Findings)
}

func TestDetect_DocumentCategoryConflict(t *testing.T) {
	det := NewContradictionDetector()
	d := claim.NewDecision(claim.CandidateDecision{
		Status:           claim.StatusCovered,
		CitedEvidenceIDs: []string{"CL-001"},
		Confidence:       0.9,
	})
	now := time.Now()
	facts := []claim.DocumentFact{{DocumentID: "doc-3", Category: "motor", Date: &now}}
	out := det.Detect(d, healthRequest(300), healthEvidence(), facts)
	require.Len(t, out.Findings, 1)
	assert.Contains(t, out.Findings[0].Description, "motor")
}

// 无文档时检查 5 不执行
func TestDetect_NoFactsSkipsDocumentCheck(t *testing.T) {
	det := NewContradictionDetector()
	d := claim.NewDecision(claim.CandidateDecision{
		Status:           claim.StatusCovered,
		CitedEvidenceIDs: []string{"CL-001"},
		Confidence:       0.9,
	})
	out := det.Detect(d, healthRequest(300), healthEvidence(), nil)
	assert.Empty(t, out.Findings)
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		text  string
		want  float64
		found bool
	}{
		{"limited to $2,000 per policy year", 2000, true},
		{"covered up to USD 5000", 5000, true},
		{"maximum of $1,500.00 per claim", 1500, true},
		{"shall not exceed 750", 750, true},
		{"capped at $10,000", 10000, true},
		{"no numeric ceiling here", 0, false},
	}
	for _, c := range cases {
		got, ok := parseLimit(c.text)
		assert.Equal(t, c.found, ok, "text %q", c.text)
		if c.found {
			assert.InDelta(t, c.want, got, 0.001, "text %q", c.text)
		}
	}
}
