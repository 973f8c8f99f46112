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
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound 指定的审计记录不存在
var ErrNotFound = errors.New("audit: record not found")

// Store 审计记录存储。Persist 按 ClaimID 幂等：重复写入同一记录不报错、不覆盖。
type Store interface {
	Persist(ctx context.Context, record *Record) error
	Get(ctx context.Context, claimID uuid.UUID) (*Record, error)
	// AppendOverride 在已落库记录的链尾追加 override 条目，返回更新后的记录
	AppendOverride(ctx context.Context, claimID uuid.UUID, o Override) (*Record, error)
	Close()
}

// memoryStore 内存实现，供测试与单机部署使用
type memoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Record
}

// NewMemoryStore 创建内存审计存储
func NewMemoryStore() Store {
	return &memoryStore{records: make(map[uuid.UUID]*Record)}
}

func (s *memoryStore) Persist(ctx context.Context, record *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ClaimID]; exists {
		return nil // 幂等：已存在则不覆盖
	}
	s.records[record.ClaimID] = cloneRecord(record)
	return nil
}

func (s *memoryStore) Get(ctx context.Context, claimID uuid.UUID) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[claimID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(record), nil
}

func (s *memoryStore) AppendOverride(ctx context.Context, claimID uuid.UUID, o Override) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[claimID]
	if !ok {
		return nil, ErrNotFound
	}
	if _, err := record.AppendOverride(o); err != nil {
		return nil, err
	}
	return cloneRecord(record), nil
}

func (s *memoryStore) Close() {}

// cloneRecord 深拷贝（经 JSON 往返），防止调用方修改存储内的记录
func cloneRecord(record *Record) *Record {
	data, err := json.Marshal(record)
	if err != nil {
		return record
	}
	var out Record
	if err := json.Unmarshal(data, &out); err != nil {
		return record
	}
	return &out
}
