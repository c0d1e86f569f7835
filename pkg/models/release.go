package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	ReleaseTypeRelease      = "release"
	ReleaseTypeDemoversion  = "demoversion"
	ReleaseTypeCrack        = "crack"
	ReleaseTypeMod          = "mod"
	ReleaseTypeAdaptation   = "adaptation"
	ReleaseTypeLocalization = "localization"
	ReleaseTypeRerelease    = "rerelease"
	ReleaseTypeMIA          = "mia"
	ReleaseTypeCorrupted    = "corrupted"
	ReleaseTypeIncomplete   = "incomplete"
)

// Release is a published variant of a Product. Hardware holds the remote
// platform/feature flags (zx128, tsconf, gs, ...).
type Release struct {
	bun.BaseModel `bun:"table:releases,alias:r"`

	ID           int       `bun:",pk" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ProductID    int       `bun:",notnull" json:"product_id"`
	Product      *Product  `bun:"rel:belongs-to,join:product_id=id" json:"product,omitempty"`
	Title        string    `json:"title"`
	DateModified int64     `json:"date_modified"`
	Languages    string    `json:"languages"`
	Publishers   string    `json:"publishers"`
	Year         *int      `json:"year,omitempty"`
	ReleaseType  string    `json:"release_type"`
	Version      string    `json:"version"`
	Hardware     []string  `json:"hardware"`
	Files        []*File   `bun:"rel:has-many,join:id=release_id" json:"files,omitempty"`
}
