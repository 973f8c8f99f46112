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
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/route"

	"claimguard/internal/api/http/middleware"
)

// Router 路由装配
type Router struct {
	handler *Handler
	mw      *middleware.Middleware
	extra   []app.HandlerFunc
	rps     int
}

// NewRouter 创建路由
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: handler, mw: mw}
}

// SetRateLimitRPS 设置全局限流（<=0 不限）
func (r *Router) SetRateLimitRPS(rps int) {
	r.rps = rps
}

// UseMiddleware 追加全局中间件（如链路追踪），需在 Build/Register 之前调用
func (r *Router) UseMiddleware(mws ...app.HandlerFunc) {
	r.extra = append(r.extra, mws...)
}

// Build 创建 Hertz server 并注册全部路由；opts 用于附加 server 选项（如链路追踪）
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	serverOpts := append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(serverOpts...)
	r.Register(h)
	return h
}

// Register 在已有 server/engine 上注册路由（测试用 ut.PerformRequest 时直接传 Engine 包装）
func (r *Router) Register(h *server.Hertz) {
	if r.mw != nil {
		h.Use(r.mw.CORS())
		h.Use(r.mw.AccessLog())
		if r.rps > 0 {
			h.Use(r.mw.RateLimit(r.rps))
		}
	}
	for _, mw := range r.extra {
		h.Use(mw)
	}
	r.registerRoutes(h.Engine)
}

func (r *Router) registerRoutes(e *route.Engine) {
	api := e.Group("/api")
	{
		api.GET("/health", r.handler.HealthCheck)
		claims := api.Group("/claims")
		{
			claims.POST("/validate", r.handler.ValidateClaim)
			claims.GET("/:id", r.handler.GetClaim)
			claims.POST("/:id/override", r.handler.OverrideClaim)
		}
	}
	e.GET("/metrics", r.handler.Metrics)
}
