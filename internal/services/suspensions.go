package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/gigbook/internal/models"
)

// activeSuspension returns the longest-running suspension covering now, or nil.
func activeSuspension(db *gorm.DB, musicianID string, now time.Time) (*models.Suspension, error) {
	var rows []models.Suspension
	err := db.Where("musician_id = ? AND starts_at <= ? AND ends_at > ?", musicianID, now.UTC(), now.UTC()).
		Order("ends_at DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load active suspension: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// activeSuspensions returns the active suspension per musician for the given ids.
func activeSuspensions(db *gorm.DB, musicianIDs []string, now time.Time) (map[string]*models.Suspension, error) {
	out := make(map[string]*models.Suspension)
	if len(musicianIDs) == 0 {
		return out, nil
	}

	var rows []models.Suspension
	err := db.Where("musician_id IN ? AND starts_at <= ? AND ends_at > ?", musicianIDs, now.UTC(), now.UTC()).
		Order("ends_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load active suspensions: %w", err)
	}
	for i := range rows {
		if _, ok := out[rows[i].MusicianID]; !ok {
			out[rows[i].MusicianID] = &rows[i]
		}
	}
	return out, nil
}
