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

	"claimguard/internal/claim"
)

const (
	defaultTopK      = 10
	defaultThreshold = 0.1
)

// Gateway 证据网关：按理赔描述与类别返回按相关性排序的保单条款。
// 无结果时返回空列表而非错误；错误只表示传输失败。
type Gateway interface {
	// Retrieve 检索相关条款；score 降序，长度不超过 topK
	Retrieve(ctx context.Context, queryText, category string) ([]claim.EvidenceItem, error)
}

// Indexer 条款写入端（memory/redis 网关同时实现，供初始化与运维工具使用）。
// line 为险种（health/motor/...），空表示通用条款，参与所有险种的检索。
type Indexer interface {
	IndexClause(ctx context.Context, line string, item claim.EvidenceItem) error
}
