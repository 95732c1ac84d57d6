// Copyright (c) IntelFlow Authors.
// Licensed under the MIT License.

/*
包 cache 提供基于 Redis 的上游响应缓存，供 provider.Gate 在调用
数据供应商前复用最近的响应，支持连接池、健康检查与统计采集。

# 概述

本包封装 go-redis 客户端，Manager 实现 provider.Cache 接口：
未命中返回 (nil, false, nil) 而非错误，只有 Redis 真正故障时
才返回 error，调用方据此降级为直连供应商，缓存绝不阻断调用。
所有键写入统一前缀，避免与共享 Redis 中的其他业务冲突。

# 核心类型

  - Manager：缓存管理器，持有 Redis 客户端与连接池配置，
    提供字节与 JSON 两种模式的读写，以及 Delete/Exists/Expire
    等维护操作。
  - Config：缓存配置，包含地址、密码、键前缀、连接池大小、
    默认 TTL 与健康检查间隔等参数。
  - Stats：缓存统计信息，命中与未命中在进程内采集，
    键数量与连接数来自 Redis 本身。

# 主要能力

  - 响应缓存：Get/Set 以字节为单位存取供应商响应。
  - 连接池管理：通过 PoolSize 与 MinIdleConns 控制连接复用。
  - 健康检查：后台定时 Ping 检测，异常时通过 zap 日志告警。
  - 优雅关闭：Close 方法安全释放底层 Redis 连接并输出命中统计。
*/
package cache
