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
	"sort"
	"sync"

	"claimguard/internal/claim"
)

type memoryClause struct {
	line string
	item claim.EvidenceItem
}

// memoryGateway 内存实现：开发与测试用
type memoryGateway struct {
	mu        sync.RWMutex
	clauses   []memoryClause
	topK      int
	threshold float64
}

// NewMemoryGateway 创建内存证据网关；topK/threshold ≤0 时使用默认值
func NewMemoryGateway(topK int, threshold float64) *memoryGateway {
	if topK <= 0 {
		topK = defaultTopK
	}
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &memoryGateway{topK: topK, threshold: threshold}
}

var _ Gateway = (*memoryGateway)(nil)
var _ Indexer = (*memoryGateway)(nil)

// IndexClause 写入一条条款；同 id 覆盖。line 为空表示适用于全部险种。
func (g *memoryGateway) IndexClause(ctx context.Context, line string, item claim.EvidenceItem) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.clauses {
		if g.clauses[i].item.ID == item.ID {
			g.clauses[i] = memoryClause{line: line, item: item}
			return nil
		}
	}
	g.clauses = append(g.clauses, memoryClause{line: line, item: item})
	return nil
}

// Retrieve 词重叠打分检索；无结果返回空列表
func (g *memoryGateway) Retrieve(ctx context.Context, queryText, category string) ([]claim.EvidenceItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryTokens := tokenize(queryText)

	g.mu.RLock()
	defer g.mu.RUnlock()
	results := make([]claim.EvidenceItem, 0, len(g.clauses))
	for _, clause := range g.clauses {
		if clause.line != "" && category != "" && clause.line != category {
			continue
		}
		item := clause.item
		score := scoreText(queryTokens, item.Text)
		if score < g.threshold {
			continue
		}
		item.Score = score
		results = append(results, item)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > g.topK {
		results = results[:g.topK]
	}
	return results, nil
}
