package domain

import "time"

// Mapping is the stored association between a short code and its original URL.
type Mapping struct {
	ShortCode   string     `json:"short_code"`
	OriginalURL string     `json:"original_url"`
	CreatedAt   time.Time  `json:"created_at"`
	ClickCount  int64      `json:"click_count"`
	IsActive    bool       `json:"is_active"`
	CreatedByIP string     `json:"created_by_ip,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"` // reserved, never enforced
}

// MappingState holds the fields of a mapping that change after creation.
type MappingState struct {
	ClickCount int64
	IsActive   bool
}

// StatsView is the read-only projection returned by the stats endpoint.
type StatsView struct {
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	ClickCount  int64     `json:"click_count"`
	CreatedAt   time.Time `json:"created_at"`
	IsActive    bool      `json:"is_active"`
}

// Stats projects the mapping into a StatsView.
func (m *Mapping) Stats() *StatsView {
	return &StatsView{
		ShortCode:   m.ShortCode,
		OriginalURL: m.OriginalURL,
		ClickCount:  m.ClickCount,
		CreatedAt:   m.CreatedAt,
		IsActive:    m.IsActive,
	}
}
