package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	LegalStatusAllowed        = "allowed"
	LegalStatusAllowedZxArt   = "allowedzxart"
	LegalStatusForbidden      = "forbidden"
	LegalStatusForbiddenZxArt = "forbiddenzxart"
	LegalStatusInSales        = "insales"
	LegalStatusMIA            = "mia"
	LegalStatusRecovered      = "recovered"
	LegalStatusUnreleased     = "unreleased"
)

// Product is a catalogued piece of software. Its ID is assigned by the remote
// catalog and is the join key for releases.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID             int        `bun:",pk" json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Title          string     `json:"title"`
	SanitizedTitle string     `json:"sanitized_title"`
	DateModified   int64      `json:"date_modified"`
	Languages      string     `json:"languages"`
	Publishers     string     `json:"publishers"`
	LegalStatus    string     `json:"legal_status"`
	CategoryID     *int       `json:"category_id,omitempty"`
	CategoryTitle  *string    `json:"category_title,omitempty"`
	Year           *int       `json:"year,omitempty"`
	Releases       []*Release `bun:"rel:has-many,join:id=product_id" json:"releases,omitempty"`
}
