// Copyright (c) IntelFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 IntelFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 IntelFlow 所有 HTTP 端点的请求处理逻辑，
包括问题提交、运行查询、运行事件流、健康检查以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口，通过 Swagger 注解生成 API 文档。

# 核心类型

  - QuestionHandler  — 问题提交处理器：校验、分解、受理后返回 202
  - RunHandler       — 运行查询：注册表优先、归档兜底，含列表端点
  - EventsHandler    — WebSocket 运行事件流，每次焦点迁移推一条
  - HealthHandler    — 服务健康检查（/health, /healthz, /ready）
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo        — 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码
  - HealthCheck      — 可插拔健康检查接口（PingCheck 覆盖归档/缓存/文档库）

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 运行事件流：订阅广播器并过滤单运行事件，终局后正常关闭
  - 晚到订阅者语义：已终结运行补发一条 run_finished 再关闭
  - 可扩展健康检查：RegisterCheck 注册自定义 HealthCheck 实现
*/
package handlers
