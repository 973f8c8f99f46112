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

package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"claimguard/internal/claim"
)

func apiBaseURL() string {
	if u := os.Getenv("CLAIMGUARD_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(apiBaseURL()).
		SetTimeout(60 * time.Second).
		SetHeader("Content-Type", "application/json")
}

func validateClaim(req claim.Request) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetBody(req).
		SetResult(&out).
		Post("/api/claims/validate")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("POST /api/claims/validate: %s", resp.String())
	}
	return out, nil
}

func getClaim(claimID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/claims/" + claimID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/claims/%s: %s", claimID, resp.String())
	}
	return out, nil
}

func overrideClaim(claimID, status, reason, actor string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetBody(map[string]string{"status": status, "reason": reason, "actor": actor}).
		SetResult(&out).
		Post("/api/claims/" + claimID + "/override")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("POST override: %s", resp.String())
	}
	return out, nil
}

func getHealth() (string, error) {
	resp, err := newClient().R().Get("/api/health")
	if err != nil {
		return "", err
	}
	return resp.String(), nil
}
