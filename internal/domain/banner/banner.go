package banner

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("banner not found")

// Placement types, mirroring the two slots the frontend renders.
const (
	TypeSlider = "Slider"
	TypeSide   = "Side"
)

type Banner struct {
	ID          int64      `json:"id"`
	CompanyName string     `json:"companyName"`
	Title       string     `json:"title"`
	ImagePath   string     `json:"imagePath"`
	ClickURL    string     `json:"clickUrl"`
	Target      string     `json:"target"`
	BannerType  string     `json:"bannerType"`
	Priority    int        `json:"priority"`
	Impressions int        `json:"impressions"`
	Clicks      int        `json:"clicks"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     time.Time  `json:"endDate"`
	IsActive    bool       `json:"isActive"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	CreatedBy   string     `json:"createdBy"`
	UpdatedBy   *string    `json:"updatedBy,omitempty"`
}

type CreateParams struct {
	CompanyName string
	Title       string
	ImagePath   string
	ClickURL    string
	Target      string
	BannerType  string
	Priority    int
	StartDate   time.Time
	EndDate     time.Time
	Description string
	CreatedBy   string
}

type UpdateParams struct {
	CompanyName string
	Title       string
	ClickURL    string
	Target      string
	BannerType  string
	Priority    int
	StartDate   time.Time
	EndDate     time.Time
	Description string
	UpdatedBy   string

	// nil keeps the stored image.
	ImagePath *string
}

// Visible reports whether the banner should be served at time t:
// active and t inside [StartDate, EndDate].
func (b Banner) Visible(t time.Time) bool {
	if !b.IsActive {
		return false
	}
	return !t.Before(b.StartDate) && !t.After(b.EndDate)
}
