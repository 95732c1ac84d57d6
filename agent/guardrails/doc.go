// Copyright (c) IntelFlow Authors.
// Licensed under the MIT License.

/*
Package guardrails 对提供商返回的结果做质量把关。

Evaluator 回答两个问题：

 1. 一段文本是否是"泛化回答"——缺少目标组织的专有名词，且命中
    泛化标记词或过短。泛化结果触发降级到备选提供商。
 2. 某焦点域的实体数量是否达到充分性阈值（决策人 ≥3、投资 ≥1、
    缺口 ≥1）。不达标的结果标记为 insufficient，附带后续追问建议，
    而不是静默返回空列表。

阈值是可配置的策略（Policy），默认值来自长期运行的启发式经验，
不构成数值契约。
*/
package guardrails
