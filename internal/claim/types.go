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

import (
	"strings"
	"time"
)

// Status 理赔决策状态。严格度排序固定：Covered/NotCovered < ManualReview < Error，
// 管道各阶段只允许向更严格方向迁移（单调降级）。
type Status string

const (
	StatusCovered      Status = "covered"
	StatusNotCovered   Status = "not_covered"
	StatusManualReview Status = "manual_review"
	StatusError        Status = "error"
)

// Rank 返回状态严格度。Covered 与 NotCovered 同级（都是确定性结论）。
func (s Status) Rank() int {
	switch s {
	case StatusCovered, StatusNotCovered:
		return 0
	case StatusManualReview:
		return 1
	case StatusError:
		return 2
	}
	return 1 // 未知状态按 ManualReview 处理
}

// Valid 状态是否为四个终态之一
func (s Status) Valid() bool {
	switch s {
	case StatusCovered, StatusNotCovered, StatusManualReview, StatusError:
		return true
	}
	return false
}

// Stricter 返回两个状态中更严格的一个；同级时保留 a（先到者优先，保证确定性）
func Stricter(a, b Status) Status {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseStatus 解析模型输出中的状态字符串（大小写与分隔符宽容）
func ParseStatus(s string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")
	switch normalized {
	case "covered", "approved":
		return StatusCovered, true
	case "not_covered", "notcovered", "rejected", "denied":
		return StatusNotCovered, true
	case "manual_review", "manualreview", "review":
		return StatusManualReview, true
	case "error":
		return StatusError, true
	}
	return "", false
}

// Severity 矛盾检测结论的严重级别
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Request 待审理赔请求。提交后不可变。
type Request struct {
	PolicyNumber          string   `json:"policy_number"`
	Category              string   `json:"category"` // health | motor | ...
	Amount                float64  `json:"amount"`
	Description           string   `json:"description"`
	SupportingDocumentIDs []string `json:"supporting_document_ids,omitempty"`
}

// HasSupportingDocuments 是否附带佐证文档
func (r Request) HasSupportingDocuments() bool {
	return len(r.SupportingDocumentIDs) > 0
}

// EvidenceItem 一条检索到的保单条款，作为决策的 grounding。一次校验运行中的
// evidence 列表在产生后不再变更。
type EvidenceItem struct {
	ID       string  `json:"id"`
	Category string  `json:"category"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"` // 相关性分数 [0,1]
}

// 标记为除外责任/限额条款的类别
const (
	CategoryExclusion  = "exclusion"
	CategoryLimitation = "limitation"
)

// IsExclusion 该条款是否为除外责任或限额条款
func (e EvidenceItem) IsExclusion() bool {
	c := strings.ToLower(e.Category)
	return c == CategoryExclusion || c == CategoryLimitation ||
		strings.HasPrefix(c, CategoryExclusion+":") || strings.HasPrefix(c, CategoryLimitation+":")
}

// FindEvidence 在 evidence 列表中查找指定 id，未找到时 ok 为 false
func FindEvidence(items []EvidenceItem, id string) (EvidenceItem, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return EvidenceItem{}, false
}

// CandidateDecision 模型生成的候选决策。生成后下游阶段只读。
type CandidateDecision struct {
	Status            Status   `json:"status"`
	Explanation       string   `json:"explanation"`
	CitedEvidenceIDs  []string `json:"cited_evidence_ids"`
	Confidence        float64  `json:"confidence"` // [0,1]
	RequiredDocuments []string `json:"required_documents,omitempty"`
}

// Finding 一项 guardrail 检查的产出：严重级别 + 可读描述 + 冲突来源引用
type Finding struct {
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Sources     []string `json:"sources,omitempty"` // 如 "status" 与 "citation:CL-001"
}

// DocumentFact 从佐证文档文本中抽取的结构化事实，供一致性检查使用
type DocumentFact struct {
	DocumentID string     `json:"document_id"`
	Amount     *float64   `json:"amount,omitempty"`
	Date       *time.Time `json:"date,omitempty"`
	Category   string     `json:"category,omitempty"`
}
