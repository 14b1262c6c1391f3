package assistant

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/i474232898/farm-assistant/internal/weather"
)

// Service implements the chat operations on top of the assistant service and
// the members backend.
type Service struct {
	conv      Conversation
	poller    *Poller
	members   MemberRegistry
	extractor AddressExtractor
	weather   WeatherLookup
	logger    *zap.Logger
}

// NewService creates a new Service.
func NewService(conv Conversation, poller *Poller, members MemberRegistry, extractor AddressExtractor, lookup WeatherLookup, logger *zap.Logger) *Service {
	return &Service{
		conv:      conv,
		poller:    poller,
		members:   members,
		extractor: extractor,
		weather:   lookup,
		logger:    logger,
	}
}

// CreateThread opens a thread, records the profile as a system note, and
// registers the thread for the member. The thread is removed again if any
// later step fails.
func (s *Service) CreateThread(ctx context.Context, memberID string, profile ThreadProfile) (Thread, error) {
	thread, err := s.conv.CreateThread(ctx)
	if err != nil {
		return Thread{}, fmt.Errorf("create thread: %w", err)
	}

	if _, err := s.conv.PostMessage(ctx, thread.ID, RoleAssistant, creationNote(profile)); err != nil {
		s.discard(thread.ID)
		return Thread{}, fmt.Errorf("record thread profile: %w", err)
	}

	if err := s.members.Register(ctx, memberID, recordFor(thread.ID, profile)); err != nil {
		s.discard(thread.ID)
		return Thread{}, fmt.Errorf("register thread: %w", err)
	}

	s.logger.Info("thread created",
		zap.String("member_id", memberID),
		zap.String("thread_id", thread.ID),
		zap.Int("crop_id", profile.CropID),
	)
	return thread, nil
}

// discard deletes a half-created thread. It ignores the request context so a
// cancelled request still cleans up.
func (s *Service) discard(threadID string) {
	if err := s.conv.DeleteThread(context.Background(), threadID); err != nil {
		s.logger.Warn("failed to delete orphaned thread", zap.String("thread_id", threadID), zap.Error(err))
	}
}

// ListThreads returns the threads registered for memberID.
func (s *Service) ListThreads(ctx context.Context, memberID string) ([]ThreadRecord, error) {
	records, err := s.members.List(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	if records == nil {
		records = []ThreadRecord{}
	}
	return records, nil
}

// GetThread returns the visible conversation of a thread, oldest first.
func (s *Service) GetThread(ctx context.Context, threadID string) (ThreadDetail, error) {
	if _, err := s.conv.GetThread(ctx, threadID); err != nil {
		return ThreadDetail{}, err
	}

	msgs, err := s.conv.ListMessages(ctx, threadID, ListOptions{Order: OrderAsc})
	if err != nil {
		return ThreadDetail{}, fmt.Errorf("list messages: %w", err)
	}

	visible := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsSystemNote() {
			continue
		}
		visible = append(visible, m)
	}
	return ThreadDetail{ThreadID: threadID, Messages: visible}, nil
}

// SendMessage posts text as the user, runs the assistant, and waits for its reply.
func (s *Service) SendMessage(ctx context.Context, threadID, text string) (Reply, error) {
	if _, err := s.conv.GetThread(ctx, threadID); err != nil {
		return Reply{}, err
	}
	if _, err := s.conv.PostMessage(ctx, threadID, RoleUser, text); err != nil {
		return Reply{}, fmt.Errorf("post message: %w", err)
	}

	run, err := s.conv.StartRun(ctx, threadID)
	if err != nil {
		return Reply{}, fmt.Errorf("start run: %w", err)
	}

	msg, err := s.poller.AwaitCompletion(ctx, run)
	if err != nil {
		return Reply{}, err
	}
	return Reply{ThreadID: threadID, Text: msg.Text}, nil
}

// UpdateThread records a profile change in the thread and the members backend.
func (s *Service) UpdateThread(ctx context.Context, memberID, threadID string, profile ThreadProfile) error {
	if _, err := s.conv.GetThread(ctx, threadID); err != nil {
		return err
	}
	if _, err := s.conv.PostMessage(ctx, threadID, RoleAssistant, updateNote(profile)); err != nil {
		return fmt.Errorf("record profile change: %w", err)
	}
	if err := s.members.Update(ctx, memberID, recordFor(threadID, profile)); err != nil {
		return fmt.Errorf("update thread registration: %w", err)
	}
	return nil
}

// DeleteThread unregisters the thread and then deletes it.
func (s *Service) DeleteThread(ctx context.Context, memberID, threadID string) error {
	if err := s.members.Delete(ctx, memberID, threadID); err != nil {
		return fmt.Errorf("unregister thread: %w", err)
	}
	if err := s.conv.DeleteThread(ctx, threadID); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	s.logger.Info("thread deleted", zap.String("member_id", memberID), zap.String("thread_id", threadID))
	return nil
}

// Status builds the dashboard for a thread: current weather at the address
// recorded in its system notes, recommended actions, and its creation date.
func (s *Service) Status(ctx context.Context, threadID string) (ThreadStatus, error) {
	thread, err := s.conv.GetThread(ctx, threadID)
	if err != nil {
		return ThreadStatus{}, err
	}

	msgs, err := s.conv.ListMessages(ctx, threadID, ListOptions{Order: OrderAsc})
	if err != nil {
		return ThreadStatus{}, fmt.Errorf("list messages: %w", err)
	}

	var notes []string
	for _, m := range msgs {
		if m.Role == RoleAssistant && m.IsSystemNote() {
			notes = append(notes, m.Text)
		}
	}
	if len(notes) == 0 {
		return ThreadStatus{}, fmt.Errorf("%w: %s", ErrNoAddress, threadID)
	}

	address, err := s.extractor.ExtractAddress(ctx, notes)
	if err != nil {
		return ThreadStatus{}, err
	}

	obs, err := s.weather.CurrentByAddress(ctx, address)
	if err != nil {
		return ThreadStatus{}, err
	}

	return ThreadStatus{
		Address:            address,
		Weather:            summarize(obs),
		RecommendedActions: recommendedActions(),
		CreatedAt:          dateOf(thread.CreatedAt.In(weather.KST)),
	}, nil
}

func summarize(obs weather.Observation) WeatherSummary {
	return WeatherSummary{
		Temp:          obs.Temperature,
		SkyCondition:  obs.SkyCondition.Korean(),
		RainfallMM:    obs.RainfallMM,
		RainCondition: obs.RainCondition.Korean(),
		Humidity:      obs.Humidity,
		WindSpeed:     obs.WindSpeed,
		WindDirection: obs.WindDirection.Korean(),
	}
}
