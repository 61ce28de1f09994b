package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// CheckFile 确认导入文件存在, 可读且非空
func CheckFile(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("input file not found: %s", path)
	case err != nil:
		return fmt.Errorf("stat %s: %w", path, err)
	case !info.Mode().IsRegular():
		return fmt.Errorf("input path is not a regular file: %s", path)
	case info.Size() == 0:
		return fmt.Errorf("input file is empty: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("input file not readable: %w", err)
	}
	return f.Close()
}

// CheckOutputDir 不存在时创建, 并试写一个临时文件
func CheckOutputDir(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("create output dir %s: %w", path, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat output dir %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output path is not a directory: %s", path)
	}

	probe, err := os.CreateTemp(path, ".valuedb-probe-")
	if err != nil {
		return fmt.Errorf("output dir %s not writable: %w", path, err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}
