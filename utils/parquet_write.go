package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

type ParquetWriter[T any] struct {
	file   *os.File
	writer *parquet.GenericWriter[T]
	rows   int64
}

// NewParquetWriter 创建 Snappy 压缩的 Parquet 写入器, options 可覆盖默认配置
func NewParquetWriter[T any](filename string, options ...parquet.WriterOption) (*ParquetWriter[T], error) {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	opts := append([]parquet.WriterOption{
		parquet.Compression(&parquet.Snappy),
		parquet.PageBufferSize(64 * 1024),
	}, options...)

	return &ParquetWriter[T]{
		file:   f,
		writer: parquet.NewGenericWriter[T](f, opts...),
	}, nil
}

func (p *ParquetWriter[T]) Write(data []T) error {
	n, err := p.writer.Write(data)
	p.rows += int64(n)
	return err
}

func (p *ParquetWriter[T]) Rows() int64 {
	return p.rows
}

// Close 先写 footer 再关闭文件
func (p *ParquetWriter[T]) Close() error {
	if err := p.writer.Close(); err != nil {
		p.file.Close()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	if err := p.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}
