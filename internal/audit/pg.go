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
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/google/uuid"
)

// pgStore PostgreSQL 实现：记录整体存 jsonb，按 claim_id 幂等插入
//
// 建表：
//
//	CREATE TABLE IF NOT EXISTS claim_audit_records (
//	    claim_id   UUID PRIMARY KEY,
//	    payload    JSONB NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 创建基于 PostgreSQL 的审计存储；dsn 为连接串
func NewPostgresStore(ctx context.Context, dsn string) (Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &pgStore{pool: pool}, nil
}

func (s *pgStore) Close() {
	s.pool.Close()
}

func (s *pgStore) Persist(ctx context.Context, record *Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化审计记录failed: %w", err)
	}
	// 幂等：已存在同 claim_id 的记录时不覆盖
	_, err = s.pool.Exec(ctx,
		`INSERT INTO claim_audit_records (claim_id, payload, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (claim_id) DO NOTHING`,
		record.ClaimID, payload, record.CreatedAt)
	return err
}

func (s *pgStore) Get(ctx context.Context, claimID uuid.UUID) (*Record, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM claim_audit_records WHERE claim_id = $1`, claimID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("反序列化审计记录failed: %w", err)
	}
	return &record, nil
}

func (s *pgStore) AppendOverride(ctx context.Context, claimID uuid.UUID, o Override) (*Record, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var payload []byte
	err = tx.QueryRow(ctx,
		`SELECT payload FROM claim_audit_records WHERE claim_id = $1 FOR UPDATE`, claimID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("反序列化审计记录failed: %w", err)
	}
	if _, err := record.AppendOverride(o); err != nil {
		return nil, err
	}
	updated, err := json.Marshal(&record)
	if err != nil {
		return nil, fmt.Errorf("序列化审计记录failed: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE claim_audit_records SET payload = $2 WHERE claim_id = $1`, claimID, updated); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &record, nil
}
