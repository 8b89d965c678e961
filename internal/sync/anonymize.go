// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

/*
anonymize.go - Retention Sweep

Removes empty accounts, then anonymizes accounts and characters older
than the retention TTL. The first sweep catches up in bulk from the
fixed full-anonymize origin; steady-state sweeps advance a persisted
watermark so each pass only covers the window since the previous one.
*/

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/sc2-pulse/laddersync/internal/logging"
)

// anonymize runs one retention pass.
func (m *Manager) anonymize(ctx context.Context) error {
	removed, err := m.accounts.RemoveEmpty(ctx)
	if err != nil {
		return fmt.Errorf("remove empty accounts: %w", err)
	}

	from, err := m.vars.AnonymizeWatermark()
	if err != nil {
		return fmt.Errorf("load anonymize watermark: %w", err)
	}
	if from.IsZero() {
		from = m.fullAnonymizeOrigin()
	}

	to := m.now().Add(-m.cfg.RetentionTTL)
	if !to.After(from) {
		return nil
	}

	anonymized, err := m.accounts.Anonymize(ctx, from, to)
	if err != nil {
		return fmt.Errorf("anonymize accounts: %w", err)
	}
	if err := m.vars.SetAnonymizeWatermark(to); err != nil {
		return fmt.Errorf("persist anonymize watermark: %w", err)
	}

	logging.Info().
		Int64("removed_accounts", removed).
		Int64("anonymized_accounts", anonymized).
		Time("from", from).
		Time("to", to).
		Msg("retention sweep complete")
	return nil
}

// fullAnonymizeOrigin is the bulk catch-up boundary used on the first
// sweep, before any watermark exists. Config validation guarantees the
// configured date parses; the fallback covers hand-built configs.
func (m *Manager) fullAnonymizeOrigin() time.Time {
	if t, err := time.Parse("2006-01-02", m.cfg.FullAnonymizeSince); err == nil {
		return t.UTC()
	}
	return time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
}
