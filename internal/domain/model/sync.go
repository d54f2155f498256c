package model

import "time"

// SyncScope — область синхронизации приватных записей в публичное хранилище.
type SyncScope string

const (
	// SyncScopeAgent — записи одного агента (опционально на одной карте).
	SyncScopeAgent SyncScope = "agent"
	// SyncScopeMap — записи одной карты.
	SyncScopeMap SyncScope = "map"
	// SyncScopeAll — все записи пользователя.
	SyncScopeAll SyncScope = "all"
)

// SyncFilter — фильтр записей для области синхронизации.
type SyncFilter struct {
	MapName   string `json:"map_name,omitempty"`
	AgentName string `json:"agent_name,omitempty"`
}

// SyncResult — итог одного запуска синхронизации.
type SyncResult struct {
	Synced    int       `json:"synced"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Errors    []string  `json:"errors,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

// SyncStatus — сколько записей области уже опубликовано.
type SyncStatus struct {
	Total  int `json:"total"`
	Synced int `json:"synced"`
}

// ReconcileResult — итог прохода сверки заявок с публичным хранилищем.
type ReconcileResult struct {
	Checked int      `json:"checked"`
	Fixed   int      `json:"fixed"`
	Errors  []string `json:"errors,omitempty"`
}
