package chat

import (
	"context"
	"fmt"

	"privatemsg/internal/message"
)

// RefreshConversations replaces the summary list wholesale. Live
// events never patch it; the list is only as fresh as the last
// refresh, which the list view triggers on every revisit. On failure
// the previous list stays in place.
func (s *Service) RefreshConversations(ctx context.Context) ([]message.ConversationSummary, error) {
	list, err := s.api.Conversations(ctx)
	if err != nil {
		return s.store.Summaries(), fmt.Errorf("list conversations: %w", err)
	}
	s.store.SetSummaries(list)
	return list, nil
}

// Summaries returns the last successfully fetched list.
func (s *Service) Summaries() []message.ConversationSummary {
	return s.store.Summaries()
}
