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

// claimguard 命令行客户端：从 JSON 文件提交理赔校验、查询与人工复核。
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"claimguard/internal/claim"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("claimguard cli 0.1.0")
	case "health":
		runHealth()
	case "validate":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: claimguard validate <claim.json>\n")
			os.Exit(1)
		}
		runValidate(args[0])
	case "get":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: claimguard get <claim_id>\n")
			os.Exit(1)
		}
		runGet(args[0])
	case "override":
		if len(args) < 4 {
			fmt.Fprintf(os.Stderr, "Usage: claimguard override <claim_id> <status> <reason> <actor>\n")
			os.Exit(1)
		}
		runOverride(args[0], args[1], args[2], args[3])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`claimguard - 保险理赔决策校验 CLI

Usage:
  claimguard validate <claim.json>                       提交一笔理赔校验
  claimguard get <claim_id>                              查询审计记录
  claimguard override <claim_id> <status> <reason> <actor>  人工复核改写
  claimguard health                                      API 健康检查
  claimguard version                                     版本

环境变量 CLAIMGUARD_API_URL 指定 API 地址（默认 http://localhost:8080）`)
}

func runValidate(path string) {
	req, err := loadRequest(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取理赔请求失败: %v\n", err)
		os.Exit(1)
	}
	result, err := validateClaim(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "校验失败: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}

// loadRequest 从 JSON 文件读取理赔请求
func loadRequest(path string) (claim.Request, error) {
	var req claim.Request
	data, err := os.ReadFile(path)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("解析 %s: %w", path, err)
	}
	return req, nil
}

func runGet(claimID string) {
	record, err := getClaim(claimID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "查询失败: %v\n", err)
		os.Exit(1)
	}
	printJSON(record)
}

func runOverride(claimID, status, reason, actor string) {
	record, err := overrideClaim(claimID, status, reason, actor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "复核失败: %v\n", err)
		os.Exit(1)
	}
	printJSON(record)
}

func runHealth() {
	body, err := getHealth()
	if err != nil {
		fmt.Fprintf(os.Stderr, "健康检查失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(body)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "输出失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
