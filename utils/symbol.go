package utils

import (
	"fmt"
	"strings"
)

// NormalizeTicker 统一为大写, 去掉交易所前后缀 (如 "nasdaq:aapl", "AAPL.US"), 类别分隔统一为 "-"
func NormalizeTicker(raw string) (string, bool) {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if t == "" {
		return "", false
	}

	if i := strings.LastIndex(t, ":"); i >= 0 {
		t = t[i+1:]
	}
	for _, suffix := range []string{".US", ".O", ".N"} {
		t = strings.TrimSuffix(t, suffix)
	}
	// BRK.B / BRK/B -> BRK-B
	t = strings.NewReplacer(".", "-", "/", "-").Replace(t)

	if t == "" {
		return "", false
	}
	for _, r := range t {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') && r != '-' {
			return t, false
		}
	}
	return t, true
}

// SplitTickers 解析逗号分隔的代码列表, 去重并保持顺序
func SplitTickers(list string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, ok := NormalizeTicker(part)
		if !ok {
			return nil, fmt.Errorf("invalid ticker: %q", part)
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}
