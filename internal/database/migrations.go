package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/gigbook/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := clearBlankNotificationEvents(db); err != nil {
		return err
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		return err
	}
	return migrateOpenInviteGuard(db)
}

// clearBlankNotificationEvents nulls empty event ids written before
// notifications were unique per event and user, so the unique index can build.
func clearBlankNotificationEvents(db *gorm.DB) error {
	m := db.Migrator()
	if !m.HasTable(&models.Notification{}) || !m.HasColumn(&models.Notification{}, "EventID") {
		return nil
	}
	if err := db.Model(&models.Notification{}).Where("event_id = ?", "").Update("event_id", nil).Error; err != nil {
		return fmt.Errorf("clear blank notification events: %w", err)
	}
	return nil
}

// migrateOpenInviteGuard adds a partial unique index so a musician holds at
// most one open invite per role on dialects that support it. MySQL has no
// partial indexes; the dispatch transaction enforces the rule there.
func migrateOpenInviteGuard(db *gorm.DB) error {
	switch db.Dialector.Name() {
	case "sqlite", "postgres":
	default:
		return nil
	}
	stmt := `CREATE UNIQUE INDEX IF NOT EXISTS idx_invites_open_role_musician
		ON invites (role_id, musician_id) WHERE status IN ('pending', 'accepted')`
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("create open invite index: %w", err)
	}
	return nil
}

// SeedData inserts the demo organizer and musician used by local development.
// It is idempotent.
func SeedData(db *gorm.DB) error {
	users := []models.User{
		{
			BaseModel:   models.BaseModel{ID: DemoOrganizerID},
			DisplayName: "Demo Organizer",
			Email:       "organizer@gigbook.local",
			Kind:        models.UserKindOrganizer,
		},
		{
			BaseModel:   models.BaseModel{ID: DemoMusicianID},
			DisplayName: "Demo Musician",
			Email:       "musician@gigbook.local",
			Kind:        models.UserKindMusician,
		},
	}

	for _, user := range users {
		if err := db.Where(models.User{Email: user.Email}).Attrs(user).FirstOrCreate(&models.User{}).Error; err != nil {
			return err
		}
	}

	lat, lon := 36.1627, -86.7816
	profile := models.MusicianProfile{
		UserID:         DemoMusicianID,
		Instruments:    []string{"guitar", "voice"},
		Latitude:       &lat,
		Longitude:      &lon,
		SearchRadiusKm: models.DefaultSearchRadiusKm,
	}
	return db.Where(models.MusicianProfile{UserID: profile.UserID}).Attrs(profile).FirstOrCreate(&models.MusicianProfile{}).Error
}

// Identifiers of the seeded demo accounts.
const (
	DemoOrganizerID = "00000000-0000-4000-8000-000000000001"
	DemoMusicianID  = "00000000-0000-4000-8000-000000000002"
)
