// Copyright (c) IntelFlow Authors.
// Licensed under the MIT License.

/*
包 docstore 提供终结运行报告的文档存储。

# 概述

每次终结运行的完整输出契约以运行 ID 为主键存为一份报告文档，
供下游 CRM / 报表消费方读取。生产环境使用 MongoDB 实现；未配置
Mongo 时回退到内存实现。文档库的有无从不影响执行管线：报告入库
失败只记日志，不改变运行结果。

# 核心类型

  - Store：报告文档库接口（Save/Get/List/Delete/Ping/Close）。
  - Report：报告文档，响应契约整体内嵌，附组织、状态、就绪度
    等查询维度。
  - MongoStore / MemoryStore：两种实现。
  - RunArchiver：workflow.Archiver 适配器，把终结运行转成报告
    落库，与运行归档并联挂在编排器上。
*/
package docstore
