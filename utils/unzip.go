package utils

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// UnzipFile 解压到 targetPath, 返回解压出的文件路径. 拒绝越出 targetPath 的条目
func UnzipFile(zipPath, targetPath string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	root := filepath.Clean(targetPath)
	var files []string
	for _, f := range r.File {
		// 跳过嵌套的 .zip
		if strings.HasSuffix(strings.ToLower(f.Name), ".zip") {
			continue
		}

		path := filepath.Join(root, f.Name)
		if path != root && !strings.HasPrefix(path, root+string(os.PathSeparator)) {
			return nil, fmt.Errorf("illegal file path in zip: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return nil, err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		if err := extractFile(f, path); err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, nil
}

func extractFile(f *zip.File, path string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	outFile, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(outFile, rc); err != nil {
		outFile.Close()
		return err
	}
	return outFile.Close()
}
