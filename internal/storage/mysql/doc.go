// Package mysql 保存历史分析记录。提供基于本地 JSON 行文件的内存实现
// （便于无数据库环境下迭代）和真正的 MySQL 实现，二者共用同一仓库接口。
package mysql
