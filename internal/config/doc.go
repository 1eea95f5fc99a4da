// Package config 负责加载并校验守护进程的启动配置。
package config
