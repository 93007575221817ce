package mastery

import "time"

// DayLayout is the format of calendar-day keys in the ledger and daily goals
const DayLayout = "2006-01-02"

// Day returns the calendar day of t in loc
func Day(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

// daysBetween counts calendar days from a to b in loc
func daysBetween(a, b time.Time, loc *time.Location) int {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
