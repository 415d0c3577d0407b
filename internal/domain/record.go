package domain

import "time"

// MediaType values reported by the APOD API.
const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

// Record is one day's astronomy entry. Date is the natural key: both sinks
// hold at most one row per date.
type Record struct {
	ID             int64
	Date           string // YYYY-MM-DD
	Title          *string
	Explanation    *string
	URL            string
	MediaType      string
	HDURL          *string
	Copyright      *string
	ServiceVersion *string
	ExtractedAt    time.Time
	CreatedAt      time.Time
}
