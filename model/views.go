package model

import "sync"

type ViewID string

var (
	viewRegistry   []ViewID
	viewRegistryMu sync.Mutex
)

func DefineView(name string) ViewID {
	viewRegistryMu.Lock()
	defer viewRegistryMu.Unlock()

	id := ViewID(name)
	viewRegistry = append(viewRegistry, id)
	return id
}

func AllViews() []ViewID {
	viewRegistryMu.Lock()
	defer viewRegistryMu.Unlock()

	result := make([]ViewID, len(viewRegistry))
	copy(result, viewRegistry)
	return result
}

// --- 定义视图 ---

// 重述去重后的财报事实, 每个 (ticker, concept, period_start, period_end, fiscal_period) 只保留最晚申报
var ViewFactsLatest = DefineView("v_facts_latest")
