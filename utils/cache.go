package utils

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// GetCacheDir 返回临时工作目录, 存放下载与解压的中间文件
func GetCacheDir() (string, error) {
	appDir := filepath.Join(os.TempDir(), "valuedb-temp")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return "", err
	}
	return appDir, nil
}

// IsRemote 报告 src 是否为 http(s) 地址
func IsRemote(src string) bool {
	u, err := url.Parse(src)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ResolveInput 将导入来源转换为本地 CSV 路径: http(s) 地址先下载, .zip 解压后取其中唯一的 .csv.
// cleanup 删除产生的中间文件, 总是非 nil
func ResolveInput(ctx context.Context, src string) (string, func(), error) {
	cleanup := func() {}
	if src == "" {
		return "", cleanup, nil
	}

	local := src
	if IsRemote(src) {
		dir, err := workDir()
		if err != nil {
			return "", cleanup, err
		}
		cleanup = func() { os.RemoveAll(dir) }

		u, _ := url.Parse(src)
		name := path.Base(u.Path)
		if name == "" || name == "/" || name == "." {
			name = "download.csv"
		}
		local = filepath.Join(dir, name)
		if err := DownloadFile(ctx, src, local); err != nil {
			cleanup()
			return "", func() {}, fmt.Errorf("failed to download %s: %w", src, err)
		}
	}

	if !strings.HasSuffix(strings.ToLower(local), ".zip") {
		return local, cleanup, nil
	}

	dir, err := workDir()
	if err != nil {
		cleanup()
		return "", func() {}, err
	}
	prev := cleanup
	cleanup = func() {
		os.RemoveAll(dir)
		prev()
	}

	files, err := UnzipFile(local, dir)
	if err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("failed to unzip %s: %w", src, err)
	}
	var csvs []string
	for _, f := range files {
		if strings.HasSuffix(strings.ToLower(f), ".csv") {
			csvs = append(csvs, f)
		}
	}
	if len(csvs) != 1 {
		cleanup()
		return "", func() {}, fmt.Errorf("%s: expected exactly one .csv in archive, found %d", src, len(csvs))
	}
	return csvs[0], cleanup, nil
}

func workDir() (string, error) {
	base, err := GetCacheDir()
	if err != nil {
		return "", err
	}
	return os.MkdirTemp(base, "input-")
}
