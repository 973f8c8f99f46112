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

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/google/uuid"

	"claimguard/internal/audit"
	"claimguard/internal/claim"
	"claimguard/internal/pipeline"
)

// fakeValidator 返回固定结果或错误
type fakeValidator struct {
	result *pipeline.Result
	err    error
}

func (f *fakeValidator) ValidateClaim(ctx context.Context, req claim.Request) (*pipeline.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestServer(t *testing.T, validator ClaimValidator, store audit.Store) *server.Hertz {
	t.Helper()
	h := server.Default(server.WithHostPorts(":0"))
	router := NewRouter(NewHandler(validator, store), nil)
	router.Register(h)
	return h
}

func performJSON(t *testing.T, h *server.Hertz, method, path string, body any) *ut.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	return ut.PerformRequest(h.Engine, method, path,
		&ut.Body{Body: reader, Len: reader.Len()},
		ut.Header{Key: "Content-Type", Value: "application/json"})
}

func TestHealthCheck(t *testing.T) {
	h := newTestServer(t, &fakeValidator{}, audit.NewMemoryStore())
	resp := performJSON(t, h, "GET", "/api/health", nil).Result()
	if resp.StatusCode() != 200 {
		t.Errorf("HealthCheck status: got %d", resp.StatusCode())
	}
	if !bytes.Contains(resp.Body(), []byte("ok")) {
		t.Errorf("HealthCheck body: %s", resp.Body())
	}
}

func TestValidateClaimOK(t *testing.T) {
	claimID := uuid.New()
	validator := &fakeValidator{result: &pipeline.Result{
		ClaimID: claimID,
		Decision: claim.NewDecision(claim.CandidateDecision{
			Status: claim.StatusCovered, Confidence: 0.9, CitedEvidenceIDs: []string{"CL-001"},
		}),
	}}
	h := newTestServer(t, validator, audit.NewMemoryStore())

	resp := performJSON(t, h, "POST", "/api/claims/validate", claim.Request{
		PolicyNumber: "POL-1", Category: "health", Amount: 100, Description: "住院",
	}).Result()
	if resp.StatusCode() != 200 {
		t.Fatalf("status: %d body: %s", resp.StatusCode(), resp.Body())
	}
	var result pipeline.Result
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		t.Fatal(err)
	}
	if result.ClaimID != claimID || result.Decision.Status != claim.StatusCovered {
		t.Fatalf("result: %+v", result)
	}
}

func TestValidateClaimBadBody(t *testing.T) {
	h := newTestServer(t, &fakeValidator{}, audit.NewMemoryStore())
	w := ut.PerformRequest(h.Engine, "POST", "/api/claims/validate",
		&ut.Body{Body: bytes.NewReader([]byte("not json")), Len: 8},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	if w.Result().StatusCode() != 400 {
		t.Fatalf("status: %d", w.Result().StatusCode())
	}
}

func TestValidateClaimInvalidRequest(t *testing.T) {
	h := newTestServer(t, &fakeValidator{err: pipeline.ErrInvalidRequest}, audit.NewMemoryStore())
	resp := performJSON(t, h, "POST", "/api/claims/validate", claim.Request{}).Result()
	if resp.StatusCode() != 400 {
		t.Fatalf("status: %d", resp.StatusCode())
	}
}

func seedRecord(t *testing.T, store audit.Store) *audit.Record {
	t.Helper()
	record, err := audit.NewRecord(
		claim.Request{PolicyNumber: "POL-1", Category: "health", Amount: 100, Description: "x"},
		nil,
		claim.NewDecision(claim.CandidateDecision{Status: claim.StatusManualReview, Confidence: 0.4}),
		"")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Persist(context.Background(), record); err != nil {
		t.Fatal(err)
	}
	return record
}

func TestGetClaim(t *testing.T) {
	store := audit.NewMemoryStore()
	record := seedRecord(t, store)
	h := newTestServer(t, &fakeValidator{}, store)

	resp := performJSON(t, h, "GET", "/api/claims/"+record.ClaimID.String(), nil).Result()
	if resp.StatusCode() != 200 {
		t.Fatalf("status: %d body: %s", resp.StatusCode(), resp.Body())
	}
	var got audit.Record
	if err := json.Unmarshal(resp.Body(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ClaimID != record.ClaimID {
		t.Fatalf("claim_id: %s", got.ClaimID)
	}
}

func TestGetClaimNotFound(t *testing.T) {
	h := newTestServer(t, &fakeValidator{}, audit.NewMemoryStore())
	resp := performJSON(t, h, "GET", "/api/claims/"+uuid.NewString(), nil).Result()
	if resp.StatusCode() != 404 {
		t.Fatalf("status: %d", resp.StatusCode())
	}
}

func TestGetClaimBadID(t *testing.T) {
	h := newTestServer(t, &fakeValidator{}, audit.NewMemoryStore())
	resp := performJSON(t, h, "GET", "/api/claims/not-a-uuid", nil).Result()
	if resp.StatusCode() != 400 {
		t.Fatalf("status: %d", resp.StatusCode())
	}
}

func TestOverrideClaim(t *testing.T) {
	store := audit.NewMemoryStore()
	record := seedRecord(t, store)
	h := newTestServer(t, &fakeValidator{}, store)

	resp := performJSON(t, h, "POST", "/api/claims/"+record.ClaimID.String()+"/override", overrideRequest{
		Status: "covered", Reason: "人工核实单证齐全", Actor: "reviewer-1",
	}).Result()
	if resp.StatusCode() != 200 {
		t.Fatalf("status: %d body: %s", resp.StatusCode(), resp.Body())
	}
	var got audit.Record
	if err := json.Unmarshal(resp.Body(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Entries) != 2 || got.Entries[1].Type != audit.EntryOverride {
		t.Fatalf("entries: %+v", got.Entries)
	}
	if err := got.ValidateChain(); err != nil {
		t.Fatalf("链校验失败: %v", err)
	}
}

func TestOverrideClaimInvalidStatus(t *testing.T) {
	store := audit.NewMemoryStore()
	record := seedRecord(t, store)
	h := newTestServer(t, &fakeValidator{}, store)

	resp := performJSON(t, h, "POST", "/api/claims/"+record.ClaimID.String()+"/override", overrideRequest{
		Status: "bogus", Reason: "r", Actor: "a",
	}).Result()
	if resp.StatusCode() != 400 {
		t.Fatalf("status: %d", resp.StatusCode())
	}
}

func TestOverrideClaimMissingFields(t *testing.T) {
	store := audit.NewMemoryStore()
	record := seedRecord(t, store)
	h := newTestServer(t, &fakeValidator{}, store)

	resp := performJSON(t, h, "POST", "/api/claims/"+record.ClaimID.String()+"/override", overrideRequest{
		Status: "covered",
	}).Result()
	if resp.StatusCode() != 400 {
		t.Fatalf("status: %d", resp.StatusCode())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, &fakeValidator{}, audit.NewMemoryStore())
	resp := performJSON(t, h, "GET", "/metrics", nil).Result()
	if resp.StatusCode() != 200 {
		t.Fatalf("status: %d", resp.StatusCode())
	}
	if !bytes.Contains(resp.Body(), []byte("claimguard_")) {
		t.Fatalf("metrics body 应包含 claimguard_ 指标: %.200s", resp.Body())
	}
}
