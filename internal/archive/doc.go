// Copyright (c) IntelFlow Authors.
// Licensed under the MIT License.

/*
Package archive 提供终结运行的持久化归档。

# 概述

编排器只在内存注册表里保留有限数量的运行，超出容量即淘汰。
archive 把每个终结运行写入关系库：runs 表存运行级元数据与完整
响应契约（JSON），focus_results 表存每个焦点的终态、失败原因、
尝试过的提供商与实体数，一行一焦点。

# 核心能力

  - SaveRun: 实现 workflow.Archiver，终结运行整体落库；
    重复归档同一运行时先删后建，保证与最新终态一致
  - GetRun / ListRuns / Count: 按 ID、组织、状态查询归档
  - PruneBefore: 按创建时间清理过期归档
  - RunRecord.DecodeResponse: 还原归档的响应契约，
    供 API 层在内存注册表未命中时回放

# 模式管理

表结构由 internal/migration 的 SQL 迁移维护；本包的 GORM 模型
标签需与迁移保持一致。测试通过 AutoMigrate 建表。

# 使用示例

	store := archive.NewStore(pool, logger)
	orch := workflow.NewOrchestrator(router, cfg, logger,
		workflow.WithArchiver(store))
*/
package archive
