// Copyright (c) IntelFlow Authors.
// Licensed under the MIT License.

/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动与优雅关闭。

# 概述

本包通过 Manager 封装 net/http.Server，统一管理监听、服务、关闭与
错误传播流程。API 服务与指标服务各持有一个 Manager，由 cmd 层统一
编排启停与信号处理。

# 核心类型

  - Manager：HTTP 服务器管理器，持有 http.Server、net.Listener
    与异步错误通道，提供 Start/Shutdown 生命周期方法。
  - Config：服务器配置，包含名称、监听地址、读写超时、空闲超时、
    最大请求头大小与优雅关闭超时。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务，主线程不阻塞。
  - 优雅关闭：Shutdown 在配置的超时内完成请求排空与连接释放。
  - 错误传播：Errors() 返回异步错误通道，供调用方监控服务异常。
  - 状态查询：IsRunning/Addr 提供运行状态与实际监听地址查询，
    ":0" 随机端口在启动后解析为真实端口。
*/
package server
