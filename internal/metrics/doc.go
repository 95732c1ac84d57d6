// Copyright (c) IntelFlow Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的全链路指标采集能力，覆盖
HTTP、工作流、供应商、缓存与数据库五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

工作流与供应商指标由 cmd 层订阅编排器事件流喂入，workflow 包
本身不依赖本包，保持领域逻辑与观测解耦。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 工作流指标：运行总数与耗时（按终态分组）、在途运行数、
    焦点状态迁移计数、各焦点终态与执行耗时。
  - 供应商指标：调用尝试计数、降级链升级次数、证据不足拦截计数、
    终态结果中的实体数量。
  - 缓存指标：命中/未命中/键数快照，由缓存管理器定期上报。
  - 数据库指标：活跃/空闲连接数 Gauge、查询耗时 Histogram，
    按 database/operation 分组。
*/
package metrics
