package service

import "testing"

// TestHealthPath проверяет выбор пути проверки по URL зависимости.
func TestHealthPath(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		fallback string
		expected string
	}{
		{
			name:     "JWKS endpoint",
			url:      "https://kc.example.com/realms/lineup/protocol/openid-connect/certs",
			fallback: "/health",
			expected: "/realms/lineup/protocol/openid-connect/certs",
		},
		{
			name:     "хост без пути",
			url:      "https://bucket.oss-cn-hangzhou.aliyuncs.com",
			fallback: "/",
			expected: "/",
		},
		{
			name:     "некорректный URL",
			url:      "://bad",
			fallback: "/health",
			expected: "/health",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := healthPath(tt.url, tt.fallback); got != tt.expected {
				t.Errorf("healthPath(%q) = %q, ожидается %q", tt.url, got, tt.expected)
			}
		})
	}
}
