package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
)

const userAgent = "valuedb"

type Download struct {
	Url           string
	Target        string
	TotalSections int
	Client        *http.Client
}

// DownloadFile 下载 url 到 targetPath. 服务端支持 Range 且文件足够大时分段并发下载
func DownloadFile(ctx context.Context, url string, targetPath string) error {
	d := &Download{
		Url:           url,
		Target:        targetPath,
		TotalSections: 5,
		Client:        http.DefaultClient,
	}

	size, ranged, err := d.probe(ctx)
	if err != nil {
		return err
	}
	if !ranged || size < 1<<20 {
		return d.downloadWhole(ctx)
	}

	eachSize := size / d.TotalSections
	sections := make([][2]int, d.TotalSections)
	for i := range sections {
		if i > 0 {
			sections[i][0] = sections[i-1][1] + 1
		}
		if i < d.TotalSections-1 {
			sections[i][1] = sections[i][0] + eachSize
		} else {
			sections[i][1] = size - 1
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, len(sections))
	for i, section := range sections {
		wg.Add(1)
		go func(i int, section [2]int) {
			defer wg.Done()
			errs[i] = d.downloadSection(ctx, i, section)
		}(i, section)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			d.removeParts(len(sections))
			return err
		}
	}

	if err := d.mergeSections(sections); err != nil {
		return fmt.Errorf("failed to merge sections: %w", err)
	}
	return nil
}

// probe HEAD 请求获取大小与是否支持 Range; 不支持 HEAD 的服务端按整体下载处理
func (d *Download) probe(ctx context.Context) (int, bool, error) {
	r, err := d.getNewRequest(ctx, http.MethodHead)
	if err != nil {
		return 0, false, err
	}
	res, err := d.Client.Do(r)
	if err != nil {
		return 0, false, fmt.Errorf("failed to execute HEAD request: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusMethodNotAllowed {
		return 0, false, nil
	}
	if res.StatusCode > 299 {
		return 0, false, fmt.Errorf("server returned error status code: %d", res.StatusCode)
	}
	size, err := strconv.Atoi(res.Header.Get("Content-Length"))
	if err != nil || size <= 0 {
		return 0, false, nil
	}
	return size, res.Header.Get("Accept-Ranges") == "bytes", nil
}

func (d *Download) getNewRequest(ctx context.Context, method string) (*http.Request, error) {
	r, err := http.NewRequestWithContext(ctx, method, d.Url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	r.Header.Set("User-Agent", userAgent)
	return r, nil
}

func (d *Download) downloadWhole(ctx context.Context) error {
	r, err := d.getNewRequest(ctx, http.MethodGet)
	if err != nil {
		return err
	}
	resp, err := d.Client.Do(r)
	if err != nil {
		return fmt.Errorf("failed to execute GET request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode > 299 {
		return fmt.Errorf("server returned error status code: %d", resp.StatusCode)
	}

	f, err := os.Create(d.Target)
	if err != nil {
		return fmt.Errorf("failed to create target file %s: %w", d.Target, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", d.Target, err)
	}
	return f.Close()
}

func (d *Download) partName(i int) string {
	return fmt.Sprintf("%s.part%d", d.Target, i)
}

func (d *Download) downloadSection(ctx context.Context, i int, section [2]int) error {
	r, err := d.getNewRequest(ctx, http.MethodGet)
	if err != nil {
		return fmt.Errorf("failed to create GET request for section %d: %w", i, err)
	}
	r.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", section[0], section[1]))
	resp, err := d.Client.Do(r)
	if err != nil {
		return fmt.Errorf("failed to execute GET request for section %d: %w", i, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("server does not support partial content for section %d: status code %d", i, resp.StatusCode)
	}

	f, err := os.Create(d.partName(i))
	if err != nil {
		return fmt.Errorf("failed to create part file for section %d: %w", i, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("failed to write section %d to file: %w", i, err)
	}
	return nil
}

func (d *Download) mergeSections(sections [][2]int) error {
	f, err := os.Create(d.Target)
	if err != nil {
		return fmt.Errorf("failed to create target file %s: %w", d.Target, err)
	}
	defer f.Close()

	for i := range sections {
		part, err := os.Open(d.partName(i))
		if err != nil {
			return fmt.Errorf("failed to read part file %s: %w", d.partName(i), err)
		}
		_, err = io.Copy(f, part)
		part.Close()
		if err != nil {
			return fmt.Errorf("failed to write part %d to target file: %w", i, err)
		}
		if err := os.Remove(d.partName(i)); err != nil {
			return fmt.Errorf("failed to remove part file %s: %w", d.partName(i), err)
		}
	}
	return nil
}

func (d *Download) removeParts(n int) {
	for i := 0; i < n; i++ {
		os.Remove(d.partName(i))
	}
}
