// Copyright (c) IntelFlow Authors.
// Licensed under the MIT License.

/*
包 database 提供基于 GORM 的数据库连接池管理，支持多驱动接入、
健康检查、统计信息采集与事务重试，归档层在此之上持久化运行结果。

# 概述

本包通过 Open 按配置选择 PostgreSQL、MySQL 或 SQLite 方言打开
数据库，再由 PoolManager 封装 GORM 与 database/sql 的连接池配置，
统一管理连接生命周期、空闲回收与最大连接数限制。后台健康检查
定时探活，异常时通过 zap 日志输出诊断信息。

# 核心类型

  - Config：数据库配置，包含驱动类型、DSN 与连接池配置。
  - PoolManager：连接池管理器，持有 GORM DB 实例与底层 sql.DB，
    提供 DB()、Ping()、Stats()、Close() 等生命周期方法。
  - PoolConfig：连接池配置，包含最大空闲连接数、最大打开连接数、
    连接最大生命周期、空闲超时与健康检查间隔。
  - PoolStats：友好格式的连接池统计信息。
  - TransactionFunc：事务回调函数类型。

# 主要能力

  - 多驱动接入：postgres/mysql 走官方 GORM 驱动，sqlite 走纯 Go
    实现，无 CGO 依赖，便于测试与单机部署。
  - 连接池调优：通过 MaxIdleConns/MaxOpenConns/ConnMaxLifetime 精细控制，
    SQLite 场景自动收敛为单连接。
  - 健康检查：后台定时 PingContext 探活，输出连接数与空闲数。
  - 事务管理：WithTransaction 提供单次事务执行，
    WithTransactionRetry 支持指数退避重试（死锁、序列化失败等场景）。
  - 统计采集：GetStats 返回结构化的连接池运行指标。
  - 语句计时：InstrumentQueries 注册 GORM 回调，把每条语句的
    操作类型与耗时上报给调用方（指标采集用）。
*/
package database
