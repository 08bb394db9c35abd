// Copyright (c) CureSwarm Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 CureSwarm HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 CureSwarm 所有 HTTP 端点的请求处理逻辑，
包括智能体注册、任务派发、成果提交、只读查询、健康检查以及
统一的响应/错误处理。所有 Handler 均遵循标准 net/http 接口，
通过 Swagger 注解生成 API 文档。

# 核心类型

  - SwarmHandler     — 注册、任务领取、成果提交与 DOI 核验
  - QueryHandler     — 智能体、发现、假设、分部、统计等只读查询
  - HealthHandler    — 服务健康检查（/health, /healthz, /ready）
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo        — 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码
  - HealthCheck      — 可插拔健康检查接口（数据库、引文注册中心等）

# 主要能力

  - 统一响应格式：WriteSuccess / WriteCreated / WriteError 辅助函数
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 提交分流：按 type 将 finding / qc_review / hypothesis 路由到服务层
  - 可扩展健康检查：RegisterCheck 注册自定义 HealthCheck 实现
*/
package handlers
