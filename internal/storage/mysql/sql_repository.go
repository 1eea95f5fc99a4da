package mysql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// SQLAnalysisRepository 把分析记录写入真正的 MySQL。
type SQLAnalysisRepository struct {
	db *sql.DB
}

// NewSQLAnalysisRepository 建立连接并初始化表结构。
func NewSQLAnalysisRepository(ctx context.Context, cfg Config) (*SQLAnalysisRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	repo := &SQLAnalysisRepository{db: db}
	if err := repo.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLAnalysisRepository) initSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS analysis_records (
        id BIGINT AUTO_INCREMENT PRIMARY KEY,
        week1_path VARCHAR(512) NOT NULL,
        week2_path VARCHAR(512) NOT NULL,
        narrative MEDIUMTEXT,
        report MEDIUMTEXT,
        created_at BIGINT NOT NULL,
        INDEX idx_analysis_created (created_at)
)`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("初始化 analysis_records 表失败: %w", err)
	}
	return nil
}

// Save 实现 AnalysisRepository。
func (r *SQLAnalysisRepository) Save(ctx context.Context, record AnalysisRecord) error {
	const stmt = `INSERT INTO analysis_records
        (week1_path, week2_path, narrative, report, created_at)
        VALUES (?, ?, ?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, stmt,
		record.Week1Path, record.Week2Path, record.Narrative, record.Report, record.CreatedAt,
	); err != nil {
		return fmt.Errorf("写入分析记录失败: %w", err)
	}
	return nil
}

// ListLatest 实现 AnalysisRepository。
func (r *SQLAnalysisRepository) ListLatest(ctx context.Context, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT week1_path, week2_path, narrative, report, created_at
        FROM analysis_records ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("查询分析记录失败: %w", err)
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		var record AnalysisRecord
		if err := rows.Scan(
			&record.Week1Path, &record.Week2Path,
			&record.Narrative, &record.Report, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("读取分析记录失败: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历分析记录失败: %w", err)
	}
	return records, nil
}

// Close 释放数据库连接。
func (r *SQLAnalysisRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

var _ AnalysisRepository = (*SQLAnalysisRepository)(nil)
