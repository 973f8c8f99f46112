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

	"claimguard/internal/claim"
)

// RuleConfig 业务规则阈值。高额阈值为严格大于（> 而非 ≥）。
type RuleConfig struct {
	// HighValueThreshold 高额人工复核阈值，Covered 且金额严格大于该值时降级
	HighValueThreshold float64 `mapstructure:"high_value_threshold"`
	// LowValueThreshold 低额自动核准阈值
	LowValueThreshold float64 `mapstructure:"low_value_threshold"`
	// ConfidenceFloor 低于该置信度一律人工复核
	ConfidenceFloor float64 `mapstructure:"confidence_floor"`
	// AutoApproveConfidence 自动核准要求的最低置信度
	AutoApproveConfidence float64 `mapstructure:"auto_approve_confidence"`
}

// DefaultRuleConfig 规则阈值默认值
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		HighValueThreshold:    5000,
		LowValueThreshold:     500,
		ConfidenceFloor:       0.85,
		AutoApproveConfidence: 0.95,
	}
}

// RuleEngine 业务规则引擎：对 (Decision, Request, hasSupportingDocuments) 的纯函数，
// 规则按固定顺序求值且单调——只向 ManualReview/Error 方向迁移。相同输入必产生
// 逐字节相同的输出（可测试性与审计可复现性要求）。
type RuleEngine struct {
	cfg RuleConfig
}

// NewRuleEngine 创建规则引擎；零值字段回退默认阈值
func NewRuleEngine(cfg RuleConfig) *RuleEngine {
	defaults := DefaultRuleConfig()
	if cfg.HighValueThreshold <= 0 {
		cfg.HighValueThreshold = defaults.HighValueThreshold
	}
	if cfg.LowValueThreshold <= 0 {
		cfg.LowValueThreshold = defaults.LowValueThreshold
	}
	if cfg.ConfidenceFloor <= 0 {
		cfg.ConfidenceFloor = defaults.ConfidenceFloor
	}
	if cfg.AutoApproveConfidence <= 0 {
		cfg.AutoApproveConfidence = defaults.AutoApproveConfidence
	}
	return &RuleEngine{cfg: cfg}
}

// Apply 按固定顺序应用规则，返回新 Decision。
func (e *RuleEngine) Apply(d claim.Decision, req claim.Request, hasSupportingDocuments bool) claim.Decision {
	// 已存在 Critical Finding：短路余下规则，状态保持/降为 ManualReview
	if d.HasCritical() {
		return d.WithStatus(claim.StatusManualReview)
	}

	confidence := d.Candidate.Confidence

	// 规则 1：低置信一律人工复核
	if confidence < e.cfg.ConfidenceFloor {
		d = d.WithStatus(claim.StatusManualReview)
		d = d.WithWarning(fmt.Sprintf("confidence %.2f below review floor %.2f", confidence, e.cfg.ConfidenceFloor))
		return d
	}

	// 规则 2：高额核准（严格 >）无视置信度，人工复核
	if req.Amount > e.cfg.HighValueThreshold && d.Status == claim.StatusCovered {
		d = d.WithStatus(claim.StatusManualReview)
		d = d.WithWarning(fmt.Sprintf("amount %.2f exceeds high-value threshold %.2f", req.Amount, e.cfg.HighValueThreshold))
		return d
	}

	// 规则 3：低额 + 高置信 + 有佐证文档的核准保持 Covered 并标记自动核准
	// （唯一保留肯定性状态的路径）
	if req.Amount < e.cfg.LowValueThreshold &&
		confidence >= e.cfg.AutoApproveConfidence &&
		d.Status == claim.StatusCovered &&
		hasSupportingDocuments {
		return d.WithTag(claim.TagAutoApproved)
	}

	// 规则 4：中间金额带 + 足够置信：状态保持，仅加快速复核路由提示
	if req.Amount >= e.cfg.LowValueThreshold && req.Amount <= e.cfg.HighValueThreshold &&
		confidence >= e.cfg.ConfidenceFloor {
		return d.WithTag(claim.TagReducedReview)
	}

	return d
}
