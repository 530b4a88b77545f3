// Package config 提供 voicerelay 的配置管理功能。
//
// 包含配置加载、默认值、校验与 Provider 凭证读取。
// 支持从 YAML 文件、环境变量和 .env 文件加载配置，
// 校验失败统一返回 CONFIGURATION 错误，服务拒绝启动。
package config
