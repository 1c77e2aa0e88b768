package domain

import "errors"

var (
	// ErrSourceUnavailable marks a network, parse or schema failure in one platform's source.
	ErrSourceUnavailable = errors.New("contest source unavailable")
	// ErrAggregateLoad marks an unexpected failure while loading all sources.
	ErrAggregateLoad = errors.New("failed to load contests")
	// ErrPreferenceCorrupt marks persisted preference data that could not be decoded.
	ErrPreferenceCorrupt = errors.New("stored preferences are corrupt")
	// ErrNotificationUnsupported means no notification capability is available.
	ErrNotificationUnsupported = errors.New("notifications not supported")
	// ErrPermissionDenied means the notification capability refused permission.
	ErrPermissionDenied = errors.New("notification permission denied")
	// ErrContestNotFound is returned when a contest ID is not in the current list.
	ErrContestNotFound = errors.New("contest not found")
)
