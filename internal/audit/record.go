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

// Package audit 理赔决策的审计记录：请求快照、证据引用、最终决策与
// 追加式哈希链条目。记录落库后不可修改，人工复核只能追加 override 条目。
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"claimguard/internal/claim"
)

// 条目类型
const (
	EntryDecisionRecorded = "decision_recorded"
	EntryOverride         = "override"
)

// EvidenceRef 审计中保留的证据引用（ID 与检索得分，不含正文）
type EvidenceRef struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Entry 审计链条目。Hash = SHA256(ID|Type|Payload|Timestamp|PrevHash)
type Entry struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
}

// Record 单次理赔校验的完整审计记录
type Record struct {
	ClaimID        uuid.UUID      `json:"claim_id"`
	Request        claim.Request  `json:"request"`
	Evidence       []EvidenceRef  `json:"evidence"`
	Decision       claim.Decision `json:"decision"`
	RawModelOutput string         `json:"raw_model_output,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	Entries        []Entry        `json:"entries"`
}

// Override 人工复核对决策的改写，只追加不覆盖
type Override struct {
	Status claim.Status `json:"status"`
	Reason string       `json:"reason"`
	Actor  string       `json:"actor"`
}

// ComputeEntryHash 计算单个条目的哈希
// Hash = SHA256(ID|Type|Payload|Timestamp|PrevHash)
func ComputeEntryHash(e Entry) string {
	h := sha256.New()
	h.Write([]byte(e.ID))
	h.Write([]byte("|"))
	h.Write([]byte(e.Type))
	h.Write([]byte("|"))
	h.Write([]byte(e.Payload))
	h.Write([]byte("|"))
	h.Write([]byte(e.CreatedAt.Format(time.RFC3339Nano)))
	h.Write([]byte("|"))
	h.Write([]byte(e.PrevHash))
	return hex.EncodeToString(h.Sum(nil))
}

// NewRecord 构建审计记录，并写入首条 decision_recorded 链条目
func NewRecord(req claim.Request, evidence []claim.EvidenceItem, decision claim.Decision, rawModelOutput string) (*Record, error) {
	refs := make([]EvidenceRef, 0, len(evidence))
	for _, item := range evidence {
		refs = append(refs, EvidenceRef{ID: item.ID, Score: item.Score})
	}
	record := &Record{
		ClaimID:        uuid.New(),
		Request:        req,
		Evidence:       refs,
		Decision:       decision,
		RawModelOutput: rawModelOutput,
		CreatedAt:      time.Now().UTC(),
	}
	payload, err := json.Marshal(decision)
	if err != nil {
		return nil, fmt.Errorf("序列化决策failed: %w", err)
	}
	record.AppendEntry(EntryDecisionRecorded, string(payload))
	return record, nil
}

// AppendEntry 在链尾追加一个条目并计算哈希
func (r *Record) AppendEntry(entryType, payload string) Entry {
	prevHash := ""
	if len(r.Entries) > 0 {
		prevHash = r.Entries[len(r.Entries)-1].Hash
	}
	entry := Entry{
		ID:        uuid.NewString(),
		Type:      entryType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
		PrevHash:  prevHash,
	}
	entry.Hash = ComputeEntryHash(entry)
	r.Entries = append(r.Entries, entry)
	return entry
}

// AppendOverride 追加人工复核条目
func (r *Record) AppendOverride(o Override) (Entry, error) {
	if !o.Status.Valid() {
		return Entry{}, fmt.Errorf("非法 override 状态: %q", o.Status)
	}
	payload, err := json.Marshal(o)
	if err != nil {
		return Entry{}, fmt.Errorf("序列化 override failed: %w", err)
	}
	return r.AppendEntry(EntryOverride, string(payload)), nil
}

// ValidateChain 验证完整哈希链
func (r *Record) ValidateChain() error {
	entries := r.Entries
	if len(entries) == 0 {
		return nil
	}

	if entries[0].PrevHash != "" {
		return fmt.Errorf("first entry prev_hash should be empty, got: %s", entries[0].PrevHash)
	}
	expectedHash := ComputeEntryHash(entries[0])
	if expectedHash != entries[0].Hash {
		return fmt.Errorf("entry 0 hash mismatch: expected %s, got %s", expectedHash, entries[0].Hash)
	}

	for i := 1; i < len(entries); i++ {
		if entries[i].PrevHash != entries[i-1].Hash {
			return fmt.Errorf("hash chain broken at entry %d: prev_hash=%s, expected=%s",
				i, entries[i].PrevHash, entries[i-1].Hash)
		}
		expectedHash := ComputeEntryHash(entries[i])
		if expectedHash != entries[i].Hash {
			return fmt.Errorf("entry %d hash mismatch: expected %s, got %s", i, expectedHash, entries[i].Hash)
		}
	}
	return nil
}
