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

package document

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"claimguard/internal/claim"
)

// 金额优先匹配带标签的行（total/amount/金额），避免把发票编号当成金额
var (
	labeledAmountPattern = regexp.MustCompile(`(?i)(?:total|amount|charge[sd]?|金额|合计|总计)[^0-9$]{0,16}(?:\$|USD\s*)?([0-9][0-9,]*(?:\.[0-9]+)?)`)
	bareAmountPattern    = regexp.MustCompile(`(?:\$|USD\s*)([0-9][0-9,]*(?:\.[0-9]+)?)`)
	isoDatePattern       = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDatePattern     = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
)

var categoryKeywords = map[string][]string{
	"health": {"hospital", "medical", "clinic", "diagnosis", "treatment", "医院", "医疗", "诊断", "住院"},
	"motor":  {"vehicle", "collision", "repair shop", "license plate", "车辆", "碰撞", "维修", "车牌"},
	"home":   {"property", "residence", "dwelling", "房屋", "财产"},
	"travel": {"flight", "itinerary", "baggage", "航班", "行程", "行李"},
}

// ParseFacts 从单证文本中抽取可与理赔请求比对的事实。
// 抽不到的字段留空，由矛盾检测按缺失跳过。
func ParseFacts(documentID, text string) claim.DocumentFact {
	fact := claim.DocumentFact{DocumentID: documentID}
	if text == "" || text == UnavailableText {
		return fact
	}

	if amount, ok := parseAmount(text); ok {
		fact.Amount = &amount
	}
	if date, ok := parseDate(text); ok {
		fact.Date = &date
	}
	fact.Category = detectCategory(text)
	return fact
}

func parseAmount(text string) (float64, bool) {
	m := labeledAmountPattern.FindStringSubmatch(text)
	if m == nil {
		m = bareAmountPattern.FindStringSubmatch(text)
	}
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func parseDate(text string) (time.Time, bool) {
	if m := isoDatePattern.FindStringSubmatch(text); m != nil {
		if t, err := time.Parse("2006-01-02", m[0]); err == nil {
			return t, true
		}
	}
	if m := slashDatePattern.FindStringSubmatch(text); m != nil {
		// 约定 MM/DD/YYYY
		padded := strings.Join([]string{pad2(m[1]), pad2(m[2]), m[3]}, "/")
		if t, err := time.Parse("01/02/2006", padded); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// detectCategory 按关键词计票，平票或零票返回空串（不产生误报）
func detectCategory(text string) string {
	lower := strings.ToLower(text)
	best, bestScore, tie := "", 0, false
	for category, keywords := range categoryKeywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		switch {
		case score > bestScore:
			best, bestScore, tie = category, score, false
		case score == bestScore && score > 0:
			tie = true
		}
	}
	if bestScore == 0 || tie {
		return ""
	}
	return best
}
