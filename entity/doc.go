// Copyright (c) IntelFlow Authors.
// Licensed under the MIT License.

/*
Package entity 负责实体的去重合并（Merger）与置信度评分（Scorer）。

# 合并语义

同一实体可能被多个提供商以不同形态返回。Merger 按合并键聚合：

  - DecisionMaker        — 规范化小写姓名
  - Investment           — 规范化公司名 + 月度精度日期
  - Gap                  — 规范化陈述文本
  - OrganizationProfile  — 规范化组织名

字段冲突按来源权威度裁决（directory > extraction > search），落选值保留
在 AltTitles / AltAmounts 中；来源集合取并集（按 provider+URL 去重）。
合并操作满足幂等与交换律：重复合并同一记录不改变结果，合并顺序不影响
输出。

# 置信度

confidence = extraction_quality × source_authority × (1 + 0.1 × (去重后
提供商数 − 1))，上限 1.0。合并后由 Scorer 基于来源集合重算，调用方不得
手工赋值。
*/
package entity
