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

package validation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"claimguard/internal/claim"
)

// 置信度/状态不匹配阈值（检查 3）
const (
	coveredConfidenceFloor      = 0.5
	notCoveredConfidenceCeiling = 0.9
	notCoveredCitationFloor     = 2
)

// 文档金额与理赔金额的一致性容差（相对值）
const docAmountTolerance = 0.01

// limitPattern 从条款文本中解析数值限额，如 "limit of $5,000" / "up to USD 2000" /
// "maximum of $1,500.00"
var limitPattern = regexp.MustCompile(`(?i)(?:limit(?:ed)?\s*(?:of|to)?|up\s+to|maximum\s*(?:of)?|not\s+exceed(?:ing)?|capped\s+at)\s*(?:\$|USD\s*)?([0-9][0-9,]*(?:\.[0-9]+)?)`)

// ContradictionDetector 矛盾检测器：五项相互独立、与顺序无关的检查，
// 每项产出至多一条 Finding。严重级别到动作的映射固定：
// Critical 强制 ManualReview；High 仅追加警告；Medium/Low 仅记录。
type ContradictionDetector struct{}

// NewContradictionDetector 创建矛盾检测器
func NewContradictionDetector() *ContradictionDetector {
	return &ContradictionDetector{}
}

// Detect 执行全部检查并返回追加 Findings 后的 Decision 副本。
// facts 为佐证文档抽取出的事实，仅在文档增强遍非空。
func (det *ContradictionDetector) Detect(d claim.Decision, req claim.Request, evidence []claim.EvidenceItem, facts []claim.DocumentFact) claim.Decision {
	cited := citedItems(d.Candidate, evidence)

	if f, ok := det.checkStatusCitationCoherence(d.Candidate, cited); ok {
		d = d.WithFinding(f)
	}
	if f, ok := det.checkExclusionConflict(d.Candidate, cited); ok {
		d = d.WithFinding(f)
	}
	if f, ok := det.checkConfidenceStatusMismatch(d.Candidate); ok {
		d = d.WithFinding(f)
		d = d.WithWarning(f.Description)
	}
	if f, ok := det.checkAmountAgainstLimits(d.Candidate, req, cited); ok {
		d = d.WithFinding(f)
		d = d.WithWarning(f.Description)
	}
	if f, ok := det.checkDocumentConsistency(req, facts); ok {
		d = d.WithFinding(f)
		d = d.WithWarning(f.Description)
	}

	return d
}

// citedItems 将候选决策引用的 id 解析为 evidence 条目；不存在的引用由引用校验器负责
func citedItems(c claim.CandidateDecision, evidence []claim.EvidenceItem) []claim.EvidenceItem {
	items := make([]claim.EvidenceItem, 0, len(c.CitedEvidenceIDs))
	for _, id := range c.CitedEvidenceIDs {
		if it, ok := claim.FindEvidence(evidence, id); ok {
			items = append(items, it)
		}
	}
	return items
}

// 检查 1：状态与引用语义自洽。NotCovered 必须引用至少一条除外/限额条款；
// Covered 不得引用任何除外条款。违反 => Critical。
func (det *ContradictionDetector) checkStatusCitationCoherence(c claim.CandidateDecision, cited []claim.EvidenceItem) (claim.Finding, bool) {
	exclusions := 0
	for _, it := range cited {
		if it.IsExclusion() {
			exclusions++
		}
	}
	switch c.Status {
	case claim.StatusNotCovered:
		if len(cited) > 0 && exclusions == 0 {
			return claim.Finding{
				Severity:    claim.SeverityCritical,
				Description: "not_covered decision cites no exclusion or limitation clause",
				Sources:     []string{"status", "citations"},
			}, true
		}
	case claim.StatusCovered:
		if exclusions > 0 {
			return claim.Finding{
				Severity:    claim.SeverityCritical,
				Description: fmt.Sprintf("covered decision cites %d exclusion clause(s)", exclusions),
				Sources:     []string{"status", "citations"},
			}, true
		}
	}
	return claim.Finding{}, false
}

// 检查 2：核准冲突。Covered 引用任何除外条款 => Critical。
// 与检查 1 结论可能重叠，但必须独立执行。
func (det *ContradictionDetector) checkExclusionConflict(c claim.CandidateDecision, cited []claim.EvidenceItem) (claim.Finding, bool) {
	if c.Status != claim.StatusCovered {
		return claim.Finding{}, false
	}
	for _, it := range cited {
		if it.IsExclusion() {
			return claim.Finding{
				Severity:    claim.SeverityCritical,
				Description: fmt.Sprintf("approval conflicts with cited exclusion clause %s", it.ID),
				Sources:     []string{"status", "citation:" + it.ID},
			}, true
		}
	}
	return claim.Finding{}, false
}

// 检查 3：置信度与状态不匹配。Covered 且置信 < 0.5，或
// NotCovered 且置信 > 0.9 但引用少于 2 条 => High。
func (det *ContradictionDetector) checkConfidenceStatusMismatch(c claim.CandidateDecision) (claim.Finding, bool) {
	if c.Status == claim.StatusCovered && c.Confidence < coveredConfidenceFloor {
		return claim.Finding{
			Severity:    claim.SeverityHigh,
			Description: fmt.Sprintf("covered with low confidence %.2f", c.Confidence),
			Sources:     []string{"status", "confidence"},
		}, true
	}
	if c.Status == claim.StatusNotCovered && c.Confidence > notCoveredConfidenceCeiling &&
		len(c.CitedEvidenceIDs) < notCoveredCitationFloor {
		return claim.Finding{
			Severity:    claim.SeverityHigh,
			Description: fmt.Sprintf("not_covered with confidence %.2f but only %d citation(s)", c.Confidence, len(c.CitedEvidenceIDs)),
			Sources:     []string{"status", "confidence", "citations"},
		}, true
	}
	return claim.Finding{}, false
}

// 检查 4：金额超过条款限额。被引用条款文本编码了数值限额、理赔金额超限且状态为
// Covered => High。
func (det *ContradictionDetector) checkAmountAgainstLimits(c claim.CandidateDecision, req claim.Request, cited []claim.EvidenceItem) (claim.Finding, bool) {
	if c.Status != claim.StatusCovered {
		return claim.Finding{}, false
	}
	for _, it := range cited {
		limit, ok := parseLimit(it.Text)
		if !ok {
			continue
		}
		if req.Amount > limit {
			return claim.Finding{
				Severity:    claim.SeverityHigh,
				Description: fmt.Sprintf("claim amount %.2f exceeds limit %.2f encoded in clause %s", req.Amount, limit, it.ID),
				Sources:     []string{"amount", "citation:" + it.ID},
			}, true
		}
	}
	return claim.Finding{}, false
}

// 检查 5：佐证文档一致性（仅在有文档事实时执行）。文档声明的金额与理赔金额
// 数值冲突，或文档类别与理赔类别冲突 => High。
func (det *ContradictionDetector) checkDocumentConsistency(req claim.Request, facts []claim.DocumentFact) (claim.Finding, bool) {
	for _, fact := range facts {
		if fact.Amount != nil && req.Amount > 0 {
			diff := math.Abs(*fact.Amount - req.Amount)
			if diff/req.Amount > docAmountTolerance {
				return claim.Finding{
					Severity:    claim.SeverityHigh,
					Description: fmt.Sprintf("document %s states amount %.2f but claim requests %.2f", fact.DocumentID, *fact.Amount, req.Amount),
					Sources:     []string{"amount", "document:" + fact.DocumentID},
				}, true
			}
		}
		if fact.Category != "" && req.Category != "" &&
			!strings.EqualFold(fact.Category, req.Category) {
			return claim.Finding{
				Severity:    claim.SeverityHigh,
				Description: fmt.Sprintf("document %s category %q conflicts with claim category %q", fact.DocumentID, fact.Category, req.Category),
				Sources:     []string{"category", "document:" + fact.DocumentID},
			}, true
		}
	}
	return claim.Finding{}, false
}

// parseLimit 从条款文本解析第一个数值限额
func parseLimit(text string) (float64, bool) {
	m := limitPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	raw := strings.ReplaceAll(m[1], ",", "")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
