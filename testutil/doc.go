// Copyright (c) IntelFlow Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 IntelFlow 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试与基准测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。所有测试应优先使用此包
中的工具函数和 Mock 实现。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertJSONEqual 比较 JSON 表示
  - 异步断言: AssertEventuallyTrue / AssertEventuallyEqual，
    支持超时轮询等待条件满足
  - 数据工具: MustJSON / MustParseJSON，简化测试数据构造

# 子包

  - testutil/mocks: Mock 实现，包括 FakeSearcher / FakeDirectory /
    FakeExtractor / FakeSynthesizer（情报供应商）与 RecordingArchiver
    （运行归档器），均支持 Builder 模式与错误注入
  - testutil/fixtures: 测试数据工厂，提供预置的公司画像、
    决策人名录、检索文档样例，以及可复现完整研究流程的
    ScriptedRegistry

# 使用示例

	ctx := testutil.TestContext(t)
	searcher := mocks.NewFakeSearcher("tavily").WithDocuments(docs...)
	resp, err := searcher.Search(ctx, req)
	require.NoError(t, err)
*/
package testutil
