// Copyright (c) IntelFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 IntelFlow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 workflow、agent、provider、
api 等上层模块提供统一的类型契约。所有跨包共享的结构体、枚举和错误码
均定义于此，以避免循环依赖。

# 核心类型

  - Question / FocusArea        — 业务问题与焦点域（company_resolution 等五种）
  - SourceDocument              — 不可变的证据来源（URL、片段、提供商、抽取方式）
  - DecisionMaker / Investment / Gap / OrganizationProfile — 实体变体
  - AgentResult / ResultStatus  — 单个焦点域的执行结果与终态
  - FocusState                  — 焦点域状态机（pending → running → 终态）
  - Response / RunStatus        — 最终结构化响应契约
  - Error / ErrorCode           — 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记

# 不变式

实体必须至少携带一个 SourceDocument；confidence 是来源集合的纯函数，
由 entity 包重算，调用方不得手工赋值。
*/
package types
