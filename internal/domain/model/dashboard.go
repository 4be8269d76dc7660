package model

import "time"

// Count — количество заявок по ключу (статусу, позиции, дате).
type Count struct {
	Key   string
	Count int
}

// DailyCount — количество заявок, поданных за день (UTC).
type DailyCount struct {
	Date  time.Time
	Count int
}

// DashboardStats — сводка для панели рекрутера.
type DashboardStats struct {
	TotalApplications int
	ByStatus          []Count
	TopPositions      []Count
	Recent            []*Application
	Daily             []DailyCount
}
