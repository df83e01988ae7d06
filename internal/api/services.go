package api

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/gigbook/internal/app"
	"github.com/charlesng35/gigbook/internal/events"
	"github.com/charlesng35/gigbook/internal/matching"
	"github.com/charlesng35/gigbook/internal/policy"
	"github.com/charlesng35/gigbook/internal/realtime"
	"github.com/charlesng35/gigbook/internal/services"
)

// Services groups the booking services exposed over HTTP.
type Services struct {
	Users         *services.UserService
	Gigs          *services.GigService
	Musicians     *services.MusicianService
	Candidates    *services.CandidateService
	Invites       *services.InviteService
	Confirmations *services.ConfirmationService
	Ratings       *services.RatingService
	Notifications *services.NotificationService
	Views         services.BookingReadModel
}

// NewServices constructs the booking services and subscribes the event
// consumers (notifications, rating aggregates) to the dispatcher.
func NewServices(db *gorm.DB, dispatcher *events.Dispatcher, hub realtime.Publisher, cfg *app.Config) (*Services, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("event dispatcher must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	users, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	gigs, err := services.NewGigService(db, dispatcher)
	if err != nil {
		return nil, err
	}
	musicians, err := services.NewMusicianService(db)
	if err != nil {
		return nil, err
	}
	candidates, err := services.NewCandidateService(db, matching.NewMatcher(cfg.Matching.Estimator()))
	if err != nil {
		return nil, err
	}
	invites, err := services.NewInviteService(db, dispatcher,
		services.WithAutoConfirmSingleCandidate(cfg.Booking.AutoConfirmSingleCandidate))
	if err != nil {
		return nil, err
	}
	cancellation := policy.NewCancellationPolicy(cfg.Booking.CancellationPolicyConfig())
	confirmations, err := services.NewConfirmationService(db, cancellation, dispatcher)
	if err != nil {
		return nil, err
	}
	ratings, err := services.NewRatingService(db, dispatcher)
	if err != nil {
		return nil, err
	}
	notifications, err := services.NewNotificationService(db, hub)
	if err != nil {
		return nil, err
	}
	views, err := services.NewBookingReadModel(db)
	if err != nil {
		return nil, err
	}

	dispatcher.Subscribe("notifications", notifications.HandleEvent)
	dispatcher.Subscribe("rating-aggregates", ratings.RefreshProfileAggregate, events.TypeRatingSubmitted)

	return &Services{
		Users:         users,
		Gigs:          gigs,
		Musicians:     musicians,
		Candidates:    candidates,
		Invites:       invites,
		Confirmations: confirmations,
		Ratings:       ratings,
		Notifications: notifications,
		Views:         views,
	}, nil
}
