// Package config 提供 CureSwarm 的配置管理功能。
//
// 包含服务器、数据库、调度与共识（Swarm）、任务目录、引文核验、
// 日志与遥测配置。支持从默认值、YAML 文件和环境变量加载，
// 优先级为 默认值 → 文件 → 环境变量。
package config
