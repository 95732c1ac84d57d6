// Copyright (c) IntelFlow Authors.
// Licensed under the MIT License.

/*
Package workflow 提供问题驱动的情报采集编排引擎。

# 概述

workflow 包实现 IntelFlow 的运行编排：把一个商业问题确定性地分解为
焦点域（FocusArea），按静态路由表为每个焦点装配专家代理与提供商链，
再以依赖驱动的状态机并发执行，最终组装成结构化响应契约。

# 核心接口与类型

  - QuestionDecomposer — 关键词驱动的确定性分解（组织解析恒为首、
    综述恒为尾、纯寒暄退化为仅综述）
  - Router             — 焦点 → {专家代理, 提供商链} 静态路由表
  - Orchestrator       — 每焦点 pending → running → 终态 的状态机，
    依赖就绪即并发调度，墙钟预算到期取消
  - WorkflowRun        — 一次运行的状态快照（焦点状态、结果、响应）
  - Registry           — 运行注册表（提交、查询、事件订阅）
  - Broadcaster        — 焦点状态变迁事件的进程内扇出

# 执行语义

  - 充分 / 不充分 / 失败均为终态；依赖只等待终态，不区分好坏
  - 单个焦点失败不阻塞不依赖它的兄弟焦点
  - 预算耗尽时仍在运行的焦点报 failed（超时原因），已终态结果保留，
    综述在现有结果上照常进行——降级可用，绝不硬中止
  - 仅当组织解析焦点整链无可用提供商时，整个运行立即失败
*/
package workflow
