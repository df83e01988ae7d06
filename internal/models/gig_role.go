package models

import "gorm.io/datatypes"

// GigRole is one staffing need within a gig.
type GigRole struct {
	BaseModel

	GigID      string `gorm:"size:64;not null;index" json:"gig_id"`
	Instrument string `gorm:"type:varchar(64);not null;index" json:"instrument"`
	Quantity   int    `gorm:"not null;default:1;check:quantity >= 1" json:"quantity"`

	// Advisory attributes; never used as hard filters.
	Genres    datatypes.JSONSlice[string] `json:"genres"`
	Skills    datatypes.JSONSlice[string] `json:"skills"`
	Equipment datatypes.JSONSlice[string] `json:"equipment"`

	RateCents int64  `gorm:"not null;default:0" json:"rate_cents"`
	Currency  string `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`

	Gig *Gig `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
