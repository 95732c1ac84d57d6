// Copyright (c) IntelFlow Authors.
// Licensed under the MIT License.

// Package providers 聚合各外部数据提供商的 HTTP 客户端实现。
//
// 每个子包封装一个提供商（Tavily 搜索、Diffbot 页面抽取、LinkedIn 目录、
// Bright Data SERP、Gemini 综述），统一实现 provider 包的能力接口。
// 所有客户端共享同一套约束：
//  1. 出站请求经由 provider.Gate 限流、并发控制和响应缓存
//  2. HTTP 4xx/5xx 映射为 types.Error，保留可重试标记供回退链判断
//  3. 响应直接转换为 types 包的领域实体，调用方不接触厂商线格式
package providers
