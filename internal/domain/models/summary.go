package models

type Summary struct {
	TodayQty      int     `json:"today_qty"`
	TodayEarnings float64 `json:"today_earnings"`
	WeekQty       int     `json:"week_qty"`
	WeekEarnings  float64 `json:"week_earnings"`
}
