// Package config 提供 IntelFlow 的配置管理功能。
//
// 包含配置加载、校验与热重载。配置优先级为默认值 → YAML 文件 →
// INTELFLOW_* 环境变量；热重载管理器监听配置文件变更，区分可即时
// 生效与需要重启的字段。
package config
