package models

import (
	"fmt"

	"github.com/marshallshelly/fenceorders/pkg/registry"
)

// All lists every model in dependency order.
func All() []any {
	return []any{
		User{},
		Manager{},
		Administrator{},
		Client{},
		Product{},
		Job{},
		Order{},
		OrderProduct{},
		OrderJob{},
		Document{},
		Comment{},
	}
}

// RegisterAll registers all models with the global registry.
func RegisterAll() error {
	for _, model := range All() {
		if err := registry.Register(model); err != nil {
			return fmt.Errorf("failed to register %T: %w", model, err)
		}
	}
	return nil
}
