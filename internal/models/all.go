package models

// All returns every persisted model in migration order.
func All() []any {
	return []any{
		&User{},
		&Gig{},
		&GigRole{},
		&MusicianProfile{},
		&Invite{},
		&Confirmation{},
		&CancellationRecord{},
		&Suspension{},
		&Rating{},
		&DomainEvent{},
		&Notification{},
		&CacheEntry{},
	}
}
