package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tbeckett/slotwizard/internal/wizard"
)

// DefaultJanitorCron runs the session sweep every fifteen minutes, frequent
// enough that an abandoned session never lingers much past its TTL.
const DefaultJanitorCron = "*/15 * * * *"

// SweepSessions drops planning sessions that have sat idle past their TTL.
// Expired sessions are also dropped lazily on access; the sweep exists so
// abandoned sessions release their slot plans without waiting for a request.
func SweepSessions(ctx context.Context, store *wizard.Store) error {
	if store == nil {
		return fmt.Errorf("session sweep requires a store")
	}
	removed := store.Sweep()
	if removed > 0 {
		log.Ctx(ctx).Info().
			Int("removed", removed).
			Int("remaining", store.Len()).
			Msg("Expired planning sessions swept")
	}
	return nil
}
