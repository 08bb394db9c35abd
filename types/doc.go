// Copyright (c) CureSwarm Authors.
// Licensed under the MIT License.

/*
Package types 提供 CureSwarm 服务的全局共享类型定义。

# 概述

types 是服务最底层的公共包，不依赖任何内部包，为 store、scheduler、
consensus、api 等上层模块提供统一的错误契约。所有跨包共享的错误码
均定义于此，以避免循环依赖。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码与 Retryable 标记

# 错误分类

  - NOT_FOUND / CONFLICT — 领域错误（实体不存在、唯一性冲突）
  - INVALID_REQUEST / UNAUTHORIZED / RATE_LIMITED — 请求校验错误
  - STORE_UNAVAILABLE / UPSTREAM_TIMEOUT — 协作方故障（可重试）
*/
package types
