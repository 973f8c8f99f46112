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

// Package http 理赔校验的 HTTP 接口（Hertz）
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"

	"claimguard/internal/audit"
	"claimguard/internal/claim"
	"claimguard/internal/pipeline"
	"claimguard/pkg/metrics"
)

// ClaimValidator 校验入口，由 pipeline.Orchestrator 实现
type ClaimValidator interface {
	ValidateClaim(ctx context.Context, req claim.Request) (*pipeline.Result, error)
}

// Handler HTTP 处理器
type Handler struct {
	validator ClaimValidator
	store     audit.Store
}

// NewHandler 创建 HTTP 处理器
func NewHandler(validator ClaimValidator, store audit.Store) *Handler {
	return &Handler{validator: validator, store: store}
}

// ValidateClaim 校验一笔理赔
// POST /api/claims/validate
func (h *Handler) ValidateClaim(c context.Context, ctx *app.RequestContext) {
	if h.validator == nil {
		ctx.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "validator is not configured"})
		return
	}
	var req claim.Request
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.validator.ValidateClaim(c, req)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			ctx.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		hlog.CtxErrorf(c, "validate claim failed for policy %s: %v", req.PolicyNumber, err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": "claim validation failed"})
		return
	}
	ctx.JSON(consts.StatusOK, result)
}

// GetClaim 查询审计记录
// GET /api/claims/:id
func (h *Handler) GetClaim(c context.Context, ctx *app.RequestContext) {
	claimID, ok := h.parseClaimID(ctx)
	if !ok {
		return
	}
	record, err := h.store.Get(c, claimID)
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			ctx.JSON(consts.StatusNotFound, map[string]string{"error": "claim record not found"})
			return
		}
		hlog.CtxErrorf(c, "get claim %s failed: %v", claimID, err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": "failed to load claim record"})
		return
	}
	ctx.JSON(consts.StatusOK, record)
}

// overrideRequest 人工复核请求体
type overrideRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

// OverrideClaim 人工复核改写决策（追加 override 条目，不覆盖原决策）
// POST /api/claims/:id/override
func (h *Handler) OverrideClaim(c context.Context, ctx *app.RequestContext) {
	claimID, ok := h.parseClaimID(ctx)
	if !ok {
		return
	}
	var body overrideRequest
	if err := json.Unmarshal(ctx.Request.Body(), &body); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	status, valid := claim.ParseStatus(body.Status)
	if !valid {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid status: " + body.Status})
		return
	}
	if body.Reason == "" || body.Actor == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "reason and actor are required"})
		return
	}

	record, err := h.store.AppendOverride(c, claimID, audit.Override{
		Status: status,
		Reason: body.Reason,
		Actor:  body.Actor,
	})
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			ctx.JSON(consts.StatusNotFound, map[string]string{"error": "claim record not found"})
			return
		}
		hlog.CtxErrorf(c, "override claim %s failed: %v", claimID, err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": "failed to append override"})
		return
	}
	ctx.JSON(consts.StatusOK, record)
}

// HealthCheck 健康检查
// GET /api/health
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]string{"status": "ok"})
}

// Metrics Prometheus 指标
// GET /metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4", buf.Bytes())
}

func (h *Handler) parseClaimID(ctx *app.RequestContext) (uuid.UUID, bool) {
	raw := ctx.Param("id")
	claimID, err := uuid.Parse(raw)
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid claim id: " + raw})
		return uuid.Nil, false
	}
	return claimID, true
}
