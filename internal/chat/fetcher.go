package chat

import (
	"context"
	"fmt"
)

// FetchPage loads the next history page for a conversation. Page zero
// is the newest window; each further call walks back in time until
// hasMore goes false, after which it becomes a no-op. A page that is
// already loading is rejected so duplicate fetches never race.
func (s *Service) FetchPage(ctx context.Context, counterpartID string) error {
	if !s.store.BeginLoading(counterpartID) {
		return ErrFetchInFlight
	}

	view := s.store.View(counterpartID)
	if view.Offset > 0 && !view.HasMore {
		s.store.EndLoading(counterpartID)
		return nil
	}
	firstPage := view.Offset == 0

	page, err := s.api.Conversation(ctx, counterpartID, s.cfg.PageSize, view.Offset)
	if err != nil {
		// Loading clears, sequence untouched; the caller may retry.
		s.rec.ApplyHistoryError(counterpartID)
		return fmt.Errorf("fetch conversation page: %w", err)
	}

	s.rec.ApplyHistory(counterpartID, page.Conversation, page.HasMore, s.cfg.PageSize)

	if firstPage {
		s.subject.Notify(Event{Type: EventScrollToNewest, CounterpartID: counterpartID})
	}

	// Viewing a conversation marks its messages read server-side, so
	// the unread total has to be re-pulled rather than guessed.
	s.RefreshUnread(ctx)
	return nil
}
