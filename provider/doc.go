// Copyright (c) IntelFlow Authors.
// Licensed under the MIT License.

/*
Package provider 定义了数据提供商的统一能力抽象与调用基础设施。

# 能力模型

每个提供商客户端实现 Client 基础接口并声明其能力集合：

  - Search      — 关键词检索，返回带摘要的来源文档
  - Extract     — 网页结构化抽取，返回正文与实体
  - Directory   — 目录查询（组织档案、人员列表），权威度最高
  - Synthesize  — 基于证据生成叙述性综述

Registry 按名字管理客户端并做能力类型检查；路由层只持有提供商名字链，
在调用时通过 Registry 解析为具体能力接口。

# 调用门

Gate 为所有出站调用提供统一的并发闸（semaphore）、速率限制（rate.Limiter）
与可选的响应字节缓存。缓存键由请求内容哈希得出；缓存故障只降级为直连，
绝不阻断调用。
*/
package provider
