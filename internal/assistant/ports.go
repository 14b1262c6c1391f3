package assistant

import (
	"context"

	"github.com/i474232898/farm-assistant/internal/weather"
)

// Order is the listing order of messages.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ListOptions narrows a message listing. A zero Limit means the service default.
type ListOptions struct {
	Order Order
	Limit int
}

// RunQuerier is what the Poller needs from the assistant service.
type RunQuerier interface {
	GetRun(ctx context.Context, threadID, runID string) (Run, error)
	ListMessages(ctx context.Context, threadID string, opts ListOptions) ([]Message, error)
}

// Conversation abstracts the hosted assistant service (threads, messages, runs).
// Implementations return ErrThreadNotFound for unknown threads.
type Conversation interface {
	RunQuerier

	CreateThread(ctx context.Context) (Thread, error)
	GetThread(ctx context.Context, threadID string) (Thread, error)
	DeleteThread(ctx context.Context, threadID string) error
	PostMessage(ctx context.Context, threadID string, role Role, text string) (Message, error)
	StartRun(ctx context.Context, threadID string) (Run, error)
}

// AddressExtractor reads the farm address out of a thread's system notes.
type AddressExtractor interface {
	ExtractAddress(ctx context.Context, notes []string) (string, error)
}

// WeatherLookup returns the current observation for an address.
type WeatherLookup interface {
	CurrentByAddress(ctx context.Context, address string) (weather.Observation, error)
}

// MemberRegistry keeps the member to thread mapping in the members backend.
type MemberRegistry interface {
	Register(ctx context.Context, memberID string, record ThreadRecord) error
	List(ctx context.Context, memberID string) ([]ThreadRecord, error)
	Update(ctx context.Context, memberID string, record ThreadRecord) error
	Delete(ctx context.Context, memberID, threadID string) error
}
