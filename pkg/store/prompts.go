package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"thoughtpost/pkg/logger"
	"thoughtpost/pkg/models"
	"thoughtpost/pkg/utils"
)

// Categories and prompt presets are small admin-managed collections; plain
// upsert semantics are enough, no version checks.

// SaveCategory upserts a category, assigning an id when absent.
func SaveCategory(c *models.Category) (*models.Category, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	if c.ID == "" {
		c.ID = utils.GenID()
		c.CreatedAt = time.Now().UTC()
	}
	c.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal category: %w", err)
	}
	if err := db.Set(categoryKey(c.ID), data, pebble.Sync); err != nil {
		logger.Error("save_category_failed", "category", c.ID, "error", err)
		return nil, err
	}
	return c, nil
}

// GetCategory returns the stored category or ErrNotFound.
func GetCategory(id string) (*models.Category, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get(categoryKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("category %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	defer closer.Close()
	var c models.Category
	if err := json.Unmarshal(v, &c); err != nil {
		return nil, fmt.Errorf("invalid category JSON for %s: %w", id, err)
	}
	return &c, nil
}

// FindCategoryByName returns the first category with the given name.
func FindCategoryByName(name string) (*models.Category, error) {
	cats, err := ListCategories()
	if err != nil {
		return nil, err
	}
	for _, c := range cats {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("category %q: %w", name, ErrNotFound)
}

// ListCategories returns all stored categories.
func ListCategories() ([]*models.Category, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("category:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []*models.Category
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		v := append([]byte(nil), iter.Value()...)
		var c models.Category
		if err := json.Unmarshal(v, &c); err != nil {
			continue
		}
		out = append(out, &c)
	}
	return out, iter.Error()
}

// DeleteCategory removes a category.
func DeleteCategory(id string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return db.Delete(categoryKey(id), pebble.Sync)
}

// SavePrompt upserts a prompt preset, assigning an id when absent.
func SavePrompt(p *models.Prompt) (*models.Prompt, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	if p.ID == "" {
		p.ID = utils.GenID()
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prompt: %w", err)
	}
	if err := db.Set(promptKey(p.ID), data, pebble.Sync); err != nil {
		logger.Error("save_prompt_failed", "prompt", p.ID, "error", err)
		return nil, err
	}
	return p, nil
}

// GetPrompt returns the stored prompt or ErrNotFound.
func GetPrompt(id string) (*models.Prompt, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get(promptKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("prompt %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	defer closer.Close()
	var p models.Prompt
	if err := json.Unmarshal(v, &p); err != nil {
		return nil, fmt.Errorf("invalid prompt JSON for %s: %w", id, err)
	}
	return &p, nil
}

// ListPrompts returns all stored prompt presets.
func ListPrompts() ([]*models.Prompt, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("prompt:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []*models.Prompt
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		v := append([]byte(nil), iter.Value()...)
		var p models.Prompt
		if err := json.Unmarshal(v, &p); err != nil {
			continue
		}
		out = append(out, &p)
	}
	return out, iter.Error()
}

// FindPromptsByPlatform returns prompts for a platform, optionally filtered
// by type.
func FindPromptsByPlatform(platform models.Platform, types ...models.PromptType) ([]*models.Prompt, error) {
	all, err := ListPrompts()
	if err != nil {
		return nil, err
	}
	var out []*models.Prompt
	for _, p := range all {
		if p.Platform != platform {
			continue
		}
		if len(types) > 0 {
			match := false
			for _, t := range types {
				if p.Type == t {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// DeletePrompt removes a prompt preset.
func DeletePrompt(id string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return db.Delete(promptKey(id), pebble.Sync)
}
