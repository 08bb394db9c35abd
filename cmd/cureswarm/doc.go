// Copyright (c) CureSwarm Authors.
// Licensed under the MIT License.

/*
Package main 提供 CureSwarm 服务端程序入口。

# 概述

cmd/cureswarm 是 CureSwarm 蜂群调度服务的可执行入口，提供 HTTP API
服务、数据库迁移与种子加载、健康检查和版本查询等子命令。程序支持
YAML 配置文件加载、结构化日志（zap）、Prometheus 指标采集以及
OpenTelemetry 链路追踪。

# 核心类型

  - Server           — 主服务器，管理 HTTP、Metrics 双端口及优雅关闭
  - Middleware        — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter    — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 子命令：serve（启动服务）、migrate（建表与种子加载）、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    Metrics、RateLimiter（基于 IP）、APIKeyAuth（X-API-Key）
  - 后台回收器：定期回收超时未提交的任务
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 停止回收器 → 关闭 HTTP → 关闭 Metrics → Wait
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
