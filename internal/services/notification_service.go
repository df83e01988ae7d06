package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/gigbook/internal/events"
	"github.com/charlesng35/gigbook/internal/models"
	"github.com/charlesng35/gigbook/internal/realtime"
	apperrors "github.com/charlesng35/gigbook/pkg/errors"
)

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID        string               `json:"id"`
	UserID    string               `json:"user_id"`
	GigID     string               `json:"gig_id,omitempty"`
	Type      string               `json:"type"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Severity  string               `json:"severity"`
	ActionURL string               `json:"action_url,omitempty"`
	Metadata  map[string]any       `json:"metadata,omitempty"`
	IsRead    bool                 `json:"is_read"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	ReadAt    *time.Time           `json:"read_at,omitempty"`
	Raw       *models.Notification `json:"-"`
}

// CreateNotificationInput defines attributes required to persist a notification.
type CreateNotificationInput struct {
	UserID    string
	GigID     string
	Type      string
	Title     string
	Message   string
	Severity  string
	ActionURL string
	Metadata  map[string]any
	// EventID makes creation idempotent per user for a delivered domain event.
	EventID string
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID     string
	GigID      string
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationEventPayload represents data sent to realtime consumers.
type NotificationEventPayload struct {
	Notification   *NotificationDTO `json:"notification,omitempty"`
	NotificationID string           `json:"notification_id,omitempty"`
}

// NotificationService manages in-app notifications and fans booking events
// out to connected clients.
type NotificationService struct {
	db  *gorm.DB
	hub realtime.Publisher
	now func() time.Time
}

// NewNotificationService constructs a NotificationService. hub may be nil.
func NewNotificationService(db *gorm.DB, hub realtime.Publisher) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db, hub: hub, now: time.Now}, nil
}

// ListForUser returns notifications for the supplied user ordered by recency.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if input.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if gigID := strings.TrimSpace(input.GigID); gigID != "" {
		query = query.Where("gig_id = ?", gigID)
	}

	var rows []models.Notification
	if err := query.
		Order("created_at DESC").
		Limit(clampLimit(input.Limit, 25, 100)).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	return mapNotificationRows(rows), nil
}

// Create registers a new notification and broadcasts it to the user. When
// EventID is set and a notification for the same event and user exists, the
// existing one is returned and nothing is broadcast.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}
	notificationType := strings.TrimSpace(input.Type)
	if notificationType == "" {
		return nil, errors.New("notification service: type is required")
	}

	eventID := strings.TrimSpace(input.EventID)
	if eventID != "" {
		existing, err := s.findForEvent(ctx, eventID, userID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	notification := models.Notification{
		UserID:    userID,
		GigID:     strings.TrimSpace(input.GigID),
		Type:      notificationType,
		Title:     strings.TrimSpace(input.Title),
		Message:   strings.TrimSpace(input.Message),
		Severity:  strings.TrimSpace(defaultIfEmpty(input.Severity, "info")),
		ActionURL: strings.TrimSpace(input.ActionURL),
	}
	if eventID != "" {
		notification.EventID = &eventID
	}

	if input.Metadata != nil {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("notification service: marshal metadata: %w", err)
		}
		notification.Metadata = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		// a concurrent delivery of the same event won the insert
		if eventID != "" && isUniqueConstraintError(err) {
			existing, findErr := s.findForEvent(ctx, eventID, userID)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	dto := mapNotification(notification)
	s.broadcast(userID, "notification.created", &NotificationEventPayload{
		Notification: &dto,
	})
	return &dto, nil
}

func (s *NotificationService) findForEvent(ctx context.Context, eventID, userID string) (*NotificationDTO, error) {
	var existing []models.Notification
	if err := s.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Limit(1).
		Find(&existing).Error; err != nil {
		return nil, fmt.Errorf("notification service: check duplicate: %w", err)
	}
	if len(existing) == 0 {
		return nil, nil
	}
	dto := mapNotification(existing[0])
	return &dto, nil
}

// UnreadCount returns how many unread notifications the user has.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, apperrors.NewBadRequest("user id is required")
	}
	var count int64
	if err := s.db.WithContext(ensureContext(ctx)).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: count unread: %w", err)
	}
	return count, nil
}

// MarkRead sets the notification read flag for a user.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	notification, err := s.load(ctx, userID, notificationID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(notification).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		return nil, fmt.Errorf("notification service: mark read: %w", err)
	}
	notification.IsRead = true
	notification.ReadAt = &now

	dto := mapNotification(*notification)
	s.broadcast(userID, "notification.read", &NotificationEventPayload{
		Notification:   &dto,
		NotificationID: notification.ID,
	})
	return &dto, nil
}

// MarkAllRead marks all notifications for the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)
	now := s.now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		return fmt.Errorf("notification service: mark all read: %w", err)
	}

	s.broadcast(userID, "notification.read_all", nil)
	return nil
}

// Delete removes a notification owned by the supplied user.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("notification service: delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("notification")
	}

	s.broadcast(userID, "notification.deleted", &NotificationEventPayload{
		NotificationID: notificationID,
	})
	return nil
}

// PruneRead deletes read notifications created before cutoff.
func (s *NotificationService) PruneRead(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ensureContext(ctx)).
		Where("is_read = ? AND created_at < ?", true, cutoff.UTC()).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: prune read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// HandleEvent turns a delivered booking event into notifications for the
// affected participants and pushes the raw change to both booking views.
// It is registered as a dispatcher subscriber, so a returned error schedules
// a retry; Create's EventID check keeps retries from duplicating rows.
func (s *NotificationService) HandleEvent(ctx context.Context, event events.Event) error {
	notes, participants, err := notificationsFor(event)
	if err != nil {
		return err
	}
	for _, note := range notes {
		note.EventID = event.ID
		if _, err := s.Create(ctx, note); err != nil {
			return err
		}
	}
	if s.hub != nil && len(participants) > 0 {
		s.hub.BroadcastToUsers(realtime.StreamBookings, participants, realtime.Message{
			Stream: realtime.StreamBookings,
			Event:  event.Type,
			Data:   event.Payload,
			Meta:   map[string]any{"event_id": event.ID, "aggregate_id": event.AggregateID},
		})
	}
	return nil
}

func notificationsFor(event events.Event) ([]CreateNotificationInput, []string, error) {
	switch event.Type {
	case events.TypeInviteCreated, events.TypeInviteAccepted, events.TypeInviteDeclined, events.TypeInviteWithdrawn:
		var p events.InvitePayload
		if err := event.Decode(&p); err != nil {
			return nil, nil, err
		}
		meta := map[string]any{"invite_id": p.InviteID, "role_id": p.RoleID, "gig_id": p.GigID}
		url := "/invites/" + p.InviteID
		participants := []string{p.MusicianID, p.OrganizerID}
		switch event.Type {
		case events.TypeInviteCreated:
			return []CreateNotificationInput{{
				UserID: p.MusicianID, Type: event.Type, Title: "New gig invite",
				Message:   fmt.Sprintf("You have been invited to play %s at %s", p.Instrument, gigLabel(p.GigTitle)),
				ActionURL: url, Metadata: meta, GigID: p.GigID,
			}}, participants, nil
		case events.TypeInviteAccepted:
			return []CreateNotificationInput{{
				UserID: p.OrganizerID, Type: event.Type, Title: "Invite accepted", Severity: "success",
				Message:   fmt.Sprintf("A musician accepted your %s invite for %s", p.Instrument, gigLabel(p.GigTitle)),
				ActionURL: url, Metadata: meta, GigID: p.GigID,
			}}, participants, nil
		case events.TypeInviteDeclined:
			return []CreateNotificationInput{{
				UserID: p.OrganizerID, Type: event.Type, Title: "Invite declined",
				Message:   fmt.Sprintf("A musician declined your %s invite for %s", p.Instrument, gigLabel(p.GigTitle)),
				ActionURL: url, Metadata: meta, GigID: p.GigID,
			}}, participants, nil
		default:
			meta["reason"] = p.Reason
			return []CreateNotificationInput{{
				UserID: p.MusicianID, Type: event.Type, Title: "Invite withdrawn",
				Message:   fmt.Sprintf("Your invite for %s is no longer open (%s)", gigLabel(p.GigTitle), strings.ReplaceAll(p.Reason, "_", " ")),
				ActionURL: url, Metadata: meta, GigID: p.GigID,
			}}, participants, nil
		}

	case events.TypeMusicianConfirmed, events.TypeConfirmationCancelled:
		var p events.ConfirmationPayload
		if err := event.Decode(&p); err != nil {
			return nil, nil, err
		}
		meta := map[string]any{"confirmation_id": p.ConfirmationID, "invite_id": p.InviteID, "gig_id": p.GigID}
		participants := []string{p.MusicianID, p.OrganizerID}
		if event.Type == events.TypeMusicianConfirmed {
			return []CreateNotificationInput{{
				UserID: p.MusicianID, Type: event.Type, Title: "You're booked", Severity: "success",
				Message:   fmt.Sprintf("You are confirmed for %s on %s", gigLabel(p.GigTitle), p.GigStartsAt.UTC().Format(time.RFC1123)),
				ActionURL: "/gigs/" + p.GigID, Metadata: meta, GigID: p.GigID,
			}}, participants, nil
		}
		meta["initiator"] = p.Initiator
		meta["late"] = p.Late
		recipient := p.OrganizerID
		if p.Initiator == models.InitiatorOrganizer {
			recipient = p.MusicianID
		}
		return []CreateNotificationInput{{
			UserID: recipient, Type: event.Type, Title: "Booking cancelled", Severity: "warning",
			Message:   fmt.Sprintf("The booking for %s was cancelled by the %s", gigLabel(p.GigTitle), p.Initiator),
			ActionURL: "/gigs/" + p.GigID, Metadata: meta, GigID: p.GigID,
		}}, participants, nil

	case events.TypeMusicianSuspended:
		var p events.SuspensionPayload
		if err := event.Decode(&p); err != nil {
			return nil, nil, err
		}
		return []CreateNotificationInput{{
			UserID: p.MusicianID, Type: event.Type, Title: "Booking suspension", Severity: "warning",
			Message: fmt.Sprintf("You cannot receive new invites until %s", p.EndsAt.UTC().Format(time.RFC1123)),
			Metadata: map[string]any{
				"suspension_id": p.SuspensionID, "reason": p.Reason,
				"ends_at": p.EndsAt.UTC().Format(time.RFC3339),
			},
		}}, nil, nil

	case events.TypeRatingSubmitted:
		var p events.RatingPayload
		if err := event.Decode(&p); err != nil {
			return nil, nil, err
		}
		return []CreateNotificationInput{{
			UserID: p.RatedID, Type: event.Type, Title: "New rating",
			Message:  fmt.Sprintf("You received a %d star rating", p.Score),
			Metadata: map[string]any{"rating_id": p.RatingID}, GigID: p.GigID,
		}}, nil, nil
	}
	return nil, nil, nil
}

func gigLabel(title string) string {
	if strings.TrimSpace(title) == "" {
		return "your gig"
	}
	return title
}

func (s *NotificationService) load(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	var notification models.Notification
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		First(&notification).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("notification")
		}
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}
	return &notification, nil
}

func (s *NotificationService) broadcast(userID, event string, payload *NotificationEventPayload) {
	if s.hub == nil {
		return
	}
	message := realtime.Message{
		Stream: realtime.StreamNotifications,
		Event:  event,
	}
	if payload != nil {
		message.Data = payload
	}
	s.hub.BroadcastToUser(realtime.StreamNotifications, userID, message)
}

func mapNotificationRows(rows []models.Notification) []NotificationDTO {
	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items
}

func mapNotification(row models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        row.ID,
		UserID:    row.UserID,
		GigID:     row.GigID,
		Type:      row.Type,
		Title:     row.Title,
		Message:   row.Message,
		Severity:  defaultIfEmpty(row.Severity, "info"),
		ActionURL: row.ActionURL,
		Metadata:  decodeJSON(row.Metadata),
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		ReadAt:    row.ReadAt,
		Raw:       &row,
	}
}
