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

package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"claimguard/internal/claim"
)

// ClauseRecord 条款导入文件中的单条记录。line 为空表示通用条款。
type ClauseRecord struct {
	ID       string `json:"id"`
	Line     string `json:"line"`
	Category string `json:"category"`
	Text     string `json:"text"`
}

// LoadClauseFile 从 JSON 文件批量导入保单条款，返回导入条数。
// 文件格式为 ClauseRecord 数组。
func LoadClauseFile(ctx context.Context, indexer Indexer, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("读取条款文件failed: %w", err)
	}
	var records []ClauseRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("解析条款文件failed: %w", err)
	}
	for i, rec := range records {
		if rec.ID == "" || rec.Text == "" {
			return i, fmt.Errorf("条款文件第 %d 条缺少 id 或 text", i)
		}
		item := claim.EvidenceItem{ID: rec.ID, Category: rec.Category, Text: rec.Text}
		if err := indexer.IndexClause(ctx, rec.Line, item); err != nil {
			return i, fmt.Errorf("导入条款 %s failed: %w", rec.ID, err)
		}
	}
	return len(records), nil
}
