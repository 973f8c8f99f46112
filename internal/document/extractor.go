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
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"claimguard/internal/claim"
)

// UnavailableText 单证获取/解析失败时写入审计的占位文本
const UnavailableText = "[unavailable]"

// Extractor 单证文本提取器
type Extractor interface {
	ExtractText(ctx context.Context, documentID string) (string, error)
}

// TextExtractor 默认实现：PDF 走 unipdf，其余按 UTF-8 纯文本处理
type TextExtractor struct {
	source Source
}

// NewTextExtractor 创建文本提取器
func NewTextExtractor(source Source) *TextExtractor {
	return &TextExtractor{source: source}
}

var _ Extractor = (*TextExtractor)(nil)

// ExtractText 实现 Extractor
func (e *TextExtractor) ExtractText(ctx context.Context, documentID string) (string, error) {
	data, name, err := e.source.Fetch(ctx, documentID)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return extractPDFText(data)
	}
	return strings.TrimSpace(string(data)), nil
}

// Extracted 单次批量提取中某个单证的结果
type Extracted struct {
	DocumentID string
	Text       string
	Fact       claim.DocumentFact
	Err        error
}

// ExtractAll 批量提取并抽取事实。单个单证失败不会中断整批：
// 失败项的 Text 置为占位文本，错误保留供审计记录。
func ExtractAll(ctx context.Context, e Extractor, documentIDs []string) []Extracted {
	results := make([]Extracted, 0, len(documentIDs))
	for _, id := range documentIDs {
		text, err := e.ExtractText(ctx, id)
		if err != nil {
			results = append(results, Extracted{
				DocumentID: id,
				Text:       UnavailableText,
				Fact:       claim.DocumentFact{DocumentID: id},
				Err:        err,
			})
			continue
		}
		results = append(results, Extracted{
			DocumentID: id,
			Text:       text,
			Fact:       ParseFacts(id, text),
		})
	}
	return results
}

// Facts 返回批量结果中成功抽取的事实
func Facts(results []Extracted) []claim.DocumentFact {
	facts := make([]claim.DocumentFact, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			facts = append(facts, r.Fact)
		}
	}
	return facts
}

// extractPDFText 从 PDF 二进制数据中提取正文文本，按页拼接
func extractPDFText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("打开 PDF failed: %w", err)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("获取页数failed: %w", err)
	}
	if numPages == 0 {
		return "", nil
	}

	var buf strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return buf.String(), fmt.Errorf("获取第 %d 页failed: %w", i, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return buf.String(), fmt.Errorf("创建第 %d 页提取器failed: %w", i, err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return buf.String(), fmt.Errorf("提取第 %d 页文本failed: %w", i, err)
		}
		if text != "" {
			buf.WriteString(text)
			if i < numPages {
				buf.WriteString("\n\n")
			}
		}
	}

	return strings.TrimSpace(buf.String()), nil
}
