package models

import "gorm.io/datatypes"

// DefaultSearchRadiusKm applies when a profile does not set a radius.
const DefaultSearchRadiusKm = 50

// MusicianProfile holds the attributes the candidate matcher reads.
type MusicianProfile struct {
	BaseModel

	UserID         string                      `gorm:"size:64;not null;uniqueIndex" json:"user_id"`
	Instruments    datatypes.JSONSlice[string] `json:"instruments"`
	Latitude       *float64                    `json:"latitude,omitempty"`
	Longitude      *float64                    `json:"longitude,omitempty"`
	SearchRadiusKm float64                     `gorm:"not null;default:50" json:"search_radius_km"`
	Bio            string                      `gorm:"type:text" json:"bio"`

	RatingAverage float64 `gorm:"not null;default:0" json:"rating_average"`
	RatingCount   int     `gorm:"not null;default:0" json:"rating_count"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}
