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

// Package document 负责理赔单证的获取、文本提取与事实抽取。
package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source 单证二进制来源
type Source interface {
	// Fetch 按单证 ID 取回二进制内容与文件名
	Fetch(ctx context.Context, documentID string) (data []byte, name string, err error)
}

// FileSource 从本地目录读取单证。documentID 作为文件名使用，路径穿越会被拒绝。
type FileSource struct {
	dir string
}

// NewFileSource 创建目录单证来源
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

var _ Source = (*FileSource)(nil)

// Fetch 实现 Source。ID 无扩展名时依次尝试 .pdf / .txt。
func (s *FileSource) Fetch(ctx context.Context, documentID string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	name := filepath.Base(strings.TrimSpace(documentID))
	if name == "" || name == "." || name == ".." {
		return nil, "", fmt.Errorf("非法单证 ID: %q", documentID)
	}

	candidates := []string{name}
	if filepath.Ext(name) == "" {
		candidates = []string{name + ".pdf", name + ".txt"}
	}
	var lastErr error
	for _, candidate := range candidates {
		data, err := os.ReadFile(filepath.Join(s.dir, candidate))
		if err == nil {
			return data, candidate, nil
		}
		lastErr = err
	}
	return nil, "", fmt.Errorf("读取单证 %s failed: %w", documentID, lastErr)
}

// MemorySource 内存单证来源，供测试与示例使用
type MemorySource struct {
	docs map[string][]byte
}

// NewMemorySource 创建内存单证来源。key 为带扩展名的文件名。
func NewMemorySource(docs map[string][]byte) *MemorySource {
	if docs == nil {
		docs = make(map[string][]byte)
	}
	return &MemorySource{docs: docs}
}

var _ Source = (*MemorySource)(nil)

// Fetch 实现 Source
func (s *MemorySource) Fetch(ctx context.Context, documentID string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if data, ok := s.docs[documentID]; ok {
		return data, documentID, nil
	}
	for _, ext := range []string{".pdf", ".txt"} {
		if data, ok := s.docs[documentID+ext]; ok {
			return data, documentID + ext, nil
		}
	}
	return nil, "", fmt.Errorf("单证 %s 不存在", documentID)
}
