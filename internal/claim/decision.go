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

package claim

// Decision 贯穿管道的决策值：候选决策 + 累积的 Findings/警告 + 当前状态。
// 所有变更都通过值语义的 transform（Decision -> Decision）完成，
// WithStatus 只接受等级不低于当前的状态，单调降级因此可被机械验证。
type Decision struct {
	Candidate CandidateDecision `json:"candidate"`
	Status    Status            `json:"status"`
	Findings  []Finding         `json:"findings,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
	Tags      []string          `json:"tags,omitempty"` // 路由提示，如 auto-approved / reduced-review
}

// 路由标签
const (
	TagAutoApproved  = "auto-approved"
	TagReducedReview = "reduced-review"
)

// NewDecision 从候选决策创建初始 Decision，状态取候选状态
func NewDecision(candidate CandidateDecision) Decision {
	status := candidate.Status
	if !status.Valid() {
		status = StatusManualReview
	}
	return Decision{Candidate: candidate, Status: status}
}

// ManualReviewDecision 构造一个终态 ManualReview 决策（空 evidence guardrail 等短路路径用）
func ManualReviewDecision(explanation string) Decision {
	return Decision{
		Candidate: CandidateDecision{
			Status:      StatusManualReview,
			Explanation: explanation,
			Confidence:  0.0,
		},
		Status: StatusManualReview,
	}
}

// ErrorDecision 构造一个终态 Error 决策，explanation 指明失败原因
func ErrorDecision(explanation string) Decision {
	return Decision{
		Candidate: CandidateDecision{
			Status:      StatusError,
			Explanation: explanation,
			Confidence:  0.0,
		},
		Status: StatusError,
	}
}

// WithStatus 返回状态替换后的副本；仅允许迁移到更严格状态，否则保持原状态
func (d Decision) WithStatus(s Status) Decision {
	d.Status = Stricter(d.Status, s)
	return d
}

// WithFinding 追加一条 Finding；Critical 级别同时强制降级为 ManualReview
func (d Decision) WithFinding(f Finding) Decision {
	findings := make([]Finding, len(d.Findings), len(d.Findings)+1)
	copy(findings, d.Findings)
	d.Findings = append(findings, f)
	if f.Severity == SeverityCritical {
		d.Status = Stricter(d.Status, StatusManualReview)
	}
	return d
}

// WithWarning 追加一条校验警告（不影响状态）
func (d Decision) WithWarning(w string) Decision {
	warnings := make([]string, len(d.Warnings), len(d.Warnings)+1)
	copy(warnings, d.Warnings)
	d.Warnings = append(warnings, w)
	return d
}

// WithTag 追加一个路由标签（幂等，不影响状态）
func (d Decision) WithTag(tag string) Decision {
	for _, t := range d.Tags {
		if t == tag {
			return d
		}
	}
	tags := make([]string, len(d.Tags), len(d.Tags)+1)
	copy(tags, d.Tags)
	d.Tags = append(tags, tag)
	return d
}

// HasCritical 是否已存在 Critical 级别 Finding
func (d Decision) HasCritical() bool {
	for _, f := range d.Findings {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// HasTag 是否带有指定路由标签
func (d Decision) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Merge 合并第二遍（佐证文档增强）运行的结果：候选与标签取第二遍，
// 状态取两遍中更严格者（增强遍可以补充 Finding，但不允许放宽已降级的结论），
// 两遍的 Findings 与警告全部保留进审计记录。
func (d Decision) Merge(second Decision) Decision {
	merged := second
	merged.Status = Stricter(d.Status, second.Status)
	merged.Findings = append(append([]Finding{}, d.Findings...), second.Findings...)
	merged.Warnings = append(append([]string{}, d.Warnings...), second.Warnings...)
	if merged.Status != StatusCovered {
		merged.Tags = removeTag(merged.Tags, TagAutoApproved)
	}
	return merged
}

func removeTag(tags []string, tag string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != tag {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
