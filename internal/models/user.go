package models

// User kinds.
const (
	UserKindOrganizer = "organizer"
	UserKindMusician  = "musician"
)

// User is an account that acts on the booking engine. Credentials live with
// the identity provider; only the profile needed for bookings is stored here.
type User struct {
	BaseModel

	DisplayName string `gorm:"type:varchar(255);not null" json:"display_name"`
	Email       string `gorm:"type:varchar(320);uniqueIndex;not null" json:"email"`
	Kind        string `gorm:"type:varchar(32);not null;index" json:"kind"`
}
