package model

// QuotaAction — действие, ограничиваемое дневной квотой.
type QuotaAction string

const (
	// QuotaSubmission — подача заявок на модерацию.
	QuotaSubmission QuotaAction = "submission"
	// QuotaDownload — скачивание пакетов lineup.
	QuotaDownload QuotaAction = "download"
)

// IsValid проверяет, что действие известно.
func (a QuotaAction) IsValid() bool {
	return a == QuotaSubmission || a == QuotaDownload
}

// QuotaStatus — результат проверки дневной квоты.
type QuotaStatus struct {
	Allowed   bool        `json:"allowed"`
	Action    QuotaAction `json:"action"`
	Used      int         `json:"used"`
	Remaining int         `json:"remaining"`
	Limit     int         `json:"limit"`
	// Date — ключ дня в формате YYYY-MM-DD по часам сервера.
	Date string `json:"date"`
}
