package models

import "gorm.io/datatypes"

// Rater roles.
const (
	RaterRoleOrganizer = "organizer"
	RaterRoleMusician  = "musician"
)

// Rating is a post-gig score left by one participant about the other.
type Rating struct {
	BaseModel

	InviteID  string                      `gorm:"size:64;not null;uniqueIndex:idx_ratings_invite_rater_role" json:"invite_id"`
	GigID     string                      `gorm:"size:64;not null;index" json:"gig_id"`
	RaterID   string                      `gorm:"size:64;not null;index" json:"rater_id"`
	RatedID   string                      `gorm:"size:64;not null;index" json:"rated_id"`
	RaterRole string                      `gorm:"type:varchar(32);not null;uniqueIndex:idx_ratings_invite_rater_role" json:"rater_role"`
	Score     int                         `gorm:"not null;check:score >= 1 AND score <= 5" json:"score"`
	Comment   string                      `gorm:"type:text" json:"comment"`
	Tags      datatypes.JSONSlice[string] `json:"tags"`
}
