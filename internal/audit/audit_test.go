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

package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"claimguard/internal/claim"
)

func testDecision() claim.Decision {
	return claim.NewDecision(claim.CandidateDecision{
		Status:           claim.StatusCovered,
		Explanation:      "条款覆盖",
		CitedEvidenceIDs: []string{"CL-001"},
		Confidence:       0.9,
	})
}

func testEvidence() []claim.EvidenceItem {
	return []claim.EvidenceItem{
		{ID: "CL-001", Category: "coverage", Text: "住院医疗费用予以赔付", Score: 0.87},
		{ID: "CL-002", Category: "limitation", Text: "limitation: 单次事故限额 5000", Score: 0.41},
	}
}

func TestNewRecordBuildsChain(t *testing.T) {
	record, err := NewRecord(claim.Request{PolicyNumber: "POL-1", Category: "health", Amount: 800}, testEvidence(), testDecision(), "raw output")
	if err != nil {
		t.Fatalf("NewRecord 失败: %v", err)
	}
	if record.ClaimID == uuid.Nil {
		t.Fatal("应分配 ClaimID")
	}
	if len(record.Evidence) != 2 || record.Evidence[0].ID != "CL-001" || record.Evidence[0].Score != 0.87 {
		t.Fatalf("证据引用不完整: %+v", record.Evidence)
	}
	if record.RawModelOutput != "raw output" {
		t.Fatal("原始输出应保留")
	}
	if len(record.Entries) != 1 || record.Entries[0].Type != EntryDecisionRecorded {
		t.Fatalf("应有一条 decision_recorded 条目: %+v", record.Entries)
	}
	if err := record.ValidateChain(); err != nil {
		t.Fatalf("链校验失败: %v", err)
	}
}

func TestChainDetectsTampering(t *testing.T) {
	record, err := NewRecord(claim.Request{PolicyNumber: "POL-1"}, nil, testDecision(), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := record.AppendOverride(Override{Status: claim.StatusNotCovered, Reason: "核查发现既往症", Actor: "reviewer-1"}); err != nil {
		t.Fatal(err)
	}
	if err := record.ValidateChain(); err != nil {
		t.Fatalf("未篡改时链应有效: %v", err)
	}

	record.Entries[0].Payload = "tampered"
	if err := record.ValidateChain(); err == nil {
		t.Fatal("篡改 payload 后链校验应失败")
	}
}

func TestAppendOverrideRejectsInvalidStatus(t *testing.T) {
	record, err := NewRecord(claim.Request{}, nil, testDecision(), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := record.AppendOverride(Override{Status: "bogus"}); err == nil {
		t.Fatal("非法状态应被拒绝")
	}
}

func TestMemoryStorePersistIdempotent(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	record, err := NewRecord(claim.Request{PolicyNumber: "POL-9"}, testEvidence(), testDecision(), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Persist(ctx, record); err != nil {
		t.Fatalf("Persist 失败: %v", err)
	}
	// 重复写入不报错、不覆盖
	modified := *record
	modified.RawModelOutput = "changed"
	if err := store.Persist(ctx, &modified); err != nil {
		t.Fatalf("重复 Persist 失败: %v", err)
	}

	got, err := store.Get(ctx, record.ClaimID)
	if err != nil {
		t.Fatalf("Get 失败: %v", err)
	}
	if got.RawModelOutput != "" {
		t.Fatal("重复写入不应覆盖原记录")
	}
}

func TestMemoryStoreGetNotFound(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	if _, err := store.Get(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("期望 ErrNotFound，得到 %v", err)
	}
}

func TestMemoryStoreAppendOverride(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	record, err := NewRecord(claim.Request{PolicyNumber: "POL-2"}, nil, testDecision(), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Persist(ctx, record); err != nil {
		t.Fatal(err)
	}

	updated, err := store.AppendOverride(ctx, record.ClaimID, Override{
		Status: claim.StatusManualReview, Reason: "需补充单证", Actor: "reviewer-2",
	})
	if err != nil {
		t.Fatalf("AppendOverride 失败: %v", err)
	}
	if len(updated.Entries) != 2 || updated.Entries[1].Type != EntryOverride {
		t.Fatalf("应追加 override 条目: %+v", updated.Entries)
	}
	if err := updated.ValidateChain(); err != nil {
		t.Fatalf("追加后链应有效: %v", err)
	}
	// 原决策不被改写
	if updated.Decision.Status != claim.StatusCovered {
		t.Fatal("override 不应改写原决策")
	}
}

// flakyStore 前 failures 次 Persist 失败，之后成功
type flakyStore struct {
	Store
	mu       sync.Mutex
	failures int
	persists int
}

func (s *flakyStore) Persist(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persists++
	if s.persists <= s.failures {
		return errors.New("db down")
	}
	return s.Store.Persist(ctx, record)
}

func TestMemoryRetryQueueEventuallyPersists(t *testing.T) {
	inner := NewMemoryStore()
	defer inner.Close()
	store := &flakyStore{Store: inner, failures: 1}

	queue := NewMemoryRetryQueue(store, nil)
	defer queue.Close()

	record, err := NewRecord(claim.Request{PolicyNumber: "POL-7"}, nil, testDecision(), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := queue.Enqueue(context.Background(), record); err != nil {
		t.Fatalf("Enqueue 失败: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := inner.Get(context.Background(), record.ClaimID); err == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("重试队列未在期限内补写记录")
}
