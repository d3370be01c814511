package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"readlog/pkg/domain"
	"readlog/pkg/store"
)

// LoadSettings reads the persisted preferences. Missing or unreadable data
// yields the defaults without writing anything back.
func (l *Library) LoadSettings(ctx context.Context) (domain.Settings, error) {
	defaults := domain.Settings{Sort: domain.DefaultSort().String()}
	raw, err := l.kv.Get(ctx, store.SettingsKey)
	if errors.Is(err, store.ErrNotFound) {
		return defaults, nil
	}
	if err != nil {
		return defaults, fmt.Errorf("read settings: %w", err)
	}
	var settings domain.Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		slog.Warn("stored settings unreadable, using defaults", "err", err)
		return defaults, nil
	}
	settings.Sort = settings.SortSpec().String()
	return settings, nil
}

// SaveSort persists the sort preference under its own key.
func (l *Library) SaveSort(ctx context.Context, spec domain.SortSpec) error {
	data, err := json.Marshal(domain.Settings{Sort: spec.String()})
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := l.kv.Set(ctx, store.SettingsKey, data); err != nil {
		return fmt.Errorf("persist settings: %w", err)
	}
	return nil
}
