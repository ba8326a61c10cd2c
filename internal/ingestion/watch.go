package ingestion

import (
	"context"

	"solana-cgt/internal/solana"
)

// Watch consumes wallet activity notifications and runs an incremental
// fetch for each burst. It returns when the context is cancelled or the
// notification channel closes. Fetch errors are logged, not fatal: a bad
// page resolves itself on the next notification.
func (f *Fetcher) Watch(ctx context.Context, notifications <-chan solana.SignatureNotification, wallets []string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notif, ok := <-notifications:
			if !ok {
				return nil
			}
			// Drain whatever queued up behind this notification; one
			// fetch covers the whole burst.
			drain(notifications)
			f.logger.Printf("activity signature %s at slot %d, fetching", notif.Signature, notif.Slot)
			if _, err := f.FetchAll(ctx, wallets); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				f.logger.Printf("watch fetch failed: %v", err)
			}
		}
	}
}

func drain(ch <-chan solana.SignatureNotification) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
