// Copyright (c) CureSwarm Authors.
// Licensed under the MIT License.

/*
包 database 提供 CureSwarm 存储层的数据库连接池管理，
支持后台健康检查与事务执行。

# 概述

本包通过 PoolManager 封装 GORM 与 database/sql 的连接池配置，
统一管理连接生命周期、空闲回收与最大连接数限制。后台健康检查
定时探活，异常时通过 zap 日志输出诊断信息。Open 按配置选择
postgres（生产）或 sqlite（开发/测试）驱动。

# 核心类型

  - PoolManager：连接池管理器，持有 GORM DB 实例与底层 sql.DB，
    提供 DB()、Ping()、Close() 等生命周期方法。
  - PoolConfig：连接池配置，包含最大空闲连接数、最大打开连接数、
    连接最大生命周期、空闲超时与健康检查间隔。

# 主要能力

  - 驱动选择：Open 支持 postgres/sqlite，OpenInMemory 供测试使用。
  - 健康检查：后台定时 PingContext 探活，就绪探针同样经由 Ping。
  - 事务管理：WithTransaction 提供单次事务执行，任务认领与
    评审裁决的多表写入依赖它保证原子性。
*/
package database
