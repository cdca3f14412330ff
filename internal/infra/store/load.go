package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"connection-pro/internal/domain"
)

// Load читает запись в dst. Возвращает false, если записи нет.
func Load(ctx context.Context, s domain.Store, key string, dst any) (bool, error) {
	data, err := s.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
