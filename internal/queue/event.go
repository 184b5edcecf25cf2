// Package queue defines the RabbitMQ topology, message payloads,
// publisher and background consumers used for show-added notifications
// and the deferred release of unpaid bookings.
package queue

// ShowAddedEvent is published when an admin schedules new shows for a
// movie.  It carries enough for downstream consumers (the notification
// mailer) to act without querying the primary database.
type ShowAddedEvent struct {
	MovieID      string   `json:"movie_id"`
	MovieTitle   string   `json:"movie_title"`
	ShowIDs      []uint64 `json:"show_ids"`
	FirstStartAt string   `json:"first_start_at"` // RFC3339 UTC
}

// ReleaseTask is the payload of a deferred release check.  Only the
// booking id travels with the task; the handler re-fetches all current
// state, since the task fires long after the request that enqueued it.
type ReleaseTask struct {
	BookingID   string `json:"booking_id"`
	ScheduledAt string `json:"scheduled_at"` // RFC3339 UTC, informational
}
