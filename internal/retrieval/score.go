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
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// stopwords 不参与匹配的高频词
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "for": {}, "and": {}, "or": {},
	"to": {}, "in": {}, "on": {}, "is": {}, "are": {}, "was": {}, "my": {},
	"i": {}, "with": {}, "after": {}, "per": {},
}

// tokenize 小写分词并去除停用词
func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if _, skip := stopwords[tok]; skip {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// scoreText 查询与条款文本的词重叠相关性，范围 [0,1]。
// 覆盖率按查询词计算，使较短查询也能命中长条款。
func scoreText(queryTokens []string, clauseText string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	clauseSet := make(map[string]struct{})
	for _, tok := range tokenize(clauseText) {
		clauseSet[tok] = struct{}{}
	}
	if len(clauseSet) == 0 {
		return 0
	}
	matched := 0
	for _, tok := range queryTokens {
		if _, ok := clauseSet[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}
