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
	"errors"
	"fmt"
)

// FaultKind 故障分类。只有传输级故障（EvidenceUnavailable / GenerationFailure /
// PersistenceFailure）会被重试；逻辑与 guardrail 失败是决策而非故障，永不重试。
type FaultKind string

const (
	// FaultEvidenceUnavailable 证据网关传输失败：重试一次后整单升级 ManualReview
	FaultEvidenceUnavailable FaultKind = "evidence_unavailable"
	// FaultGenerationFailure 决策生成超时/出错：带 backoff 重试，耗尽后状态为 Error
	FaultGenerationFailure FaultKind = "generation_failure"
	// FaultGenerationParseFailure 模型输出无法解析：不重试，立即 Error，原始输出进审计
	FaultGenerationParseFailure FaultKind = "generation_parse_failure"
	// FaultPersistenceFailure 审计写入失败：进入异步重试队列，不阻塞响应
	FaultPersistenceFailure FaultKind = "persistence_failure"
)

// Fault 预期内的失败结果，与正常 Decision 互斥
type Fault struct {
	Kind FaultKind
	Err  error
	// RawOutput 解析失败时保留的模型原始输出，供审计诊断
	RawOutput string
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return string(f.Kind)
}

func (f *Fault) Unwrap() error { return f.Err }

// NewFault 创建故障
func NewFault(kind FaultKind, err error) *Fault {
	return &Fault{Kind: kind, Err: err}
}

// AsFault 提取错误链中的 Fault
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// FaultKindOf 返回错误对应的 FaultKind；非 Fault 错误返回空 Kind
func FaultKindOf(err error) FaultKind {
	if f, ok := AsFault(err); ok {
		return f.Kind
	}
	return ""
}
