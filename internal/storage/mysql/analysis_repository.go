package mysql

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// AnalysisRecord 表示一次两周对比分析的落库结构。
type AnalysisRecord struct {
	Week1Path string `json:"week1_path"`
	Week2Path string `json:"week2_path"`
	Narrative string `json:"narrative"`
	Report    string `json:"report"`
	CreatedAt int64  `json:"created_at"`
}

// AnalysisRepository 抽象分析历史的持久化接口。
type AnalysisRepository interface {
	Save(ctx context.Context, record AnalysisRecord) error
	ListLatest(ctx context.Context, limit int) ([]AnalysisRecord, error)
}

// ErrUnsupportedDriver 表示配置了未知的存储驱动。
var ErrUnsupportedDriver = errors.New("暂不支持的存储驱动")

// MemoryAnalysisRepository 使用本地 JSON 行文件模拟 MySQL 的效果，方便迭代开发。
type MemoryAnalysisRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []AnalysisRecord
}

// NewMemoryAnalysisRepository 创建一个内存分析仓库。
func NewMemoryAnalysisRepository(dataDir string) (*MemoryAnalysisRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	path := filepath.Join(dataDir, "analyses.log")
	repo := &MemoryAnalysisRepository{dataFile: path}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save 以追加写的方式记录分析结果。
func (m *MemoryAnalysisRepository) Save(_ context.Context, record AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开分析日志失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化分析记录失败: %w", err)
	}

	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入分析日志失败: %w", err)
	}

	m.records = append([]AnalysisRecord{record}, m.records...)
	if len(m.records) > 512 {
		m.records = m.records[:512]
	}
	return nil
}

// ListLatest 返回最近的分析记录，按时间倒序排列。
func (m *MemoryAnalysisRepository) ListLatest(_ context.Context, limit int) ([]AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}

	results := make([]AnalysisRecord, limit)
	copy(results, m.records[:limit])
	return results, nil
}

func (m *MemoryAnalysisRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取分析日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var restored []AnalysisRecord
	for scanner.Scan() {
		var record AnalysisRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		restored = append([]AnalysisRecord{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析分析日志失败: %w", err)
	}
	m.records = restored
	return nil
}

var _ AnalysisRepository = (*MemoryAnalysisRepository)(nil)
