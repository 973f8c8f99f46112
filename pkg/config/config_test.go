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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
api:
  host: 0.0.0.0
  port: 8080
model:
  defaults: openai
  llm:
    providers:
      openai:
        api_key: ${TEST_OPENAI_KEY}
        model: gpt-4o-mini
retrieval:
  type: memory
  top_k: 5
  threshold: 0.2
audit:
  store:
    type: postgres
    dsn: postgres://claimguard@localhost/claims
rules:
  high_value_threshold: 5000
  confidence_floor: 0.85
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeSample(t))
	if err != nil {
		t.Fatalf("LoadConfig 失败: %v", err)
	}
	if cfg.API.Port != 8080 {
		t.Fatalf("port = %d", cfg.API.Port)
	}
	if cfg.Retrieval.TopK != 5 || cfg.Retrieval.Threshold != 0.2 {
		t.Fatalf("retrieval = %+v", cfg.Retrieval)
	}
	if cfg.Audit.Store.Type != "postgres" {
		t.Fatalf("audit store = %+v", cfg.Audit.Store)
	}
	if cfg.Rules.HighValueThreshold != 5000 {
		t.Fatalf("rules = %+v", cfg.Rules)
	}
}

func TestLoadConfigExpandsEnvKey(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test-123")
	cfg, err := LoadConfig(writeSample(t))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.LLM.Providers["openai"].APIKey != "sk-test-123" {
		t.Fatalf("api_key 未替换: %q", cfg.Model.LLM.Providers["openai"].APIKey)
	}
}

func TestLoadConfigKeepsPlaceholderWhenEnvUnset(t *testing.T) {
	os.Unsetenv("TEST_OPENAI_KEY")
	cfg, err := LoadConfig(writeSample(t))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.LLM.Providers["openai"].APIKey != "${TEST_OPENAI_KEY}" {
		t.Fatalf("未设置环境变量时应保留占位: %q", cfg.Model.LLM.Providers["openai"].APIKey)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/api.yaml"); err == nil {
		t.Fatal("不存在的配置文件应报错")
	}
}
