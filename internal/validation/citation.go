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
	"strings"

	"claimguard/internal/claim"
)

// 过度补偿启发式阈值：低置信 + 大量引用 + 含糊措辞时给 Medium Finding
const (
	hedgeConfidenceCeiling = 0.5
	hedgeCitationFloor     = 5
)

// defaultHedgePhrases 含糊措辞词表（幻觉/过度补偿信号之一）
var defaultHedgePhrases = []string{
	"typically", "usually", "probably", "generally",
	"in most cases", "it is likely", "may be covered", "might be",
}

// CitationValidator 引用校验器：候选决策中的每条引用必须指向实际提供的 evidence，
// 且状态与引用语义自洽。校验失败产出 Finding，不抛错。
type CitationValidator struct {
	hedgePhrases []string
}

// NewCitationValidator 创建引用校验器
func NewCitationValidator() *CitationValidator {
	return &CitationValidator{hedgePhrases: defaultHedgePhrases}
}

// Validate 对 Decision 执行引用校验，返回追加 Findings 后的副本。
// 存在 Critical Finding 时状态降级为 ManualReview（由 WithFinding 保证）。
func (v *CitationValidator) Validate(d claim.Decision, evidence []claim.EvidenceItem) claim.Decision {
	candidate := d.Candidate

	// 每条引用必须存在于提供的 evidence 列表（捏造引用 => Critical）
	for _, id := range candidate.CitedEvidenceIDs {
		if _, ok := claim.FindEvidence(evidence, id); !ok {
			d = d.WithFinding(claim.Finding{
				Severity:    claim.SeverityCritical,
				Description: fmt.Sprintf("cited evidence %q is not in the supplied evidence set", id),
				Sources:     []string{"citation:" + id},
			})
			d = d.WithWarning(fmt.Sprintf("invalid citation: %s", id))
		}
	}

	// Covered/NotCovered 必须至少有一条引用（无依据的肯定性结论 => Critical）
	if (candidate.Status == claim.StatusCovered || candidate.Status == claim.StatusNotCovered) &&
		len(candidate.CitedEvidenceIDs) == 0 {
		d = d.WithFinding(claim.Finding{
			Severity:    claim.SeverityCritical,
			Description: fmt.Sprintf("status %q asserted without any citation", candidate.Status),
			Sources:     []string{"status", "citations"},
		})
	}

	// 含糊措辞 + 低置信 + 超量引用 => Medium（单独不降级）
	if v.hasHedgeLanguage(candidate.Explanation) &&
		candidate.Confidence < hedgeConfidenceCeiling &&
		len(candidate.CitedEvidenceIDs) > hedgeCitationFloor {
		d = d.WithFinding(claim.Finding{
			Severity:    claim.SeverityMedium,
			Description: "hedge language with low confidence and excessive citations (possible overcompensation)",
			Sources:     []string{"explanation", "confidence", "citations"},
		})
	}

	return d
}

func (v *CitationValidator) hasHedgeLanguage(explanation string) bool {
	lower := strings.ToLower(explanation)
	for _, phrase := range v.hedgePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
