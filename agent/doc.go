// Copyright (c) IntelFlow Authors.
// Licensed under the MIT License.

// Package agent 实现各焦点领域的专家代理。
//
// 每个代理负责一个焦点（组织解析、决策人、投资、缺口、综述），遵循统一的
// 四步协议：查询主提供商 → 守卫评估 → 不充分则沿回退链升级并合并实体 →
// 产出 AgentResult。提供商错误被回退链吸收，只有整条链全部出错才判定
// 焦点失败；链上没有任何可用提供商则立即返回配置错误。
//
// 代理自身无共享可变状态，可被编排器并发调用。
package agent
