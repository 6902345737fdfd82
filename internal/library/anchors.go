// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/paperwatch/internal/logger"
	"github.com/pdiddy/paperwatch/internal/textutil"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// ErrNoAnchors means the folder exists but holds no usable items.
var ErrNoAnchors = errors.New("anchor folder has no usable items")

const (
	defaultMaxAnchors    = 20
	defaultAbstractChars = 400
	noAbstract           = "(No Abstract)"
)

// skippedItemTypes are Zotero item types that never describe a paper.
var skippedItemTypes = map[string]bool{
	"attachment": true,
	"note":       true,
	"annotation": true,
}

// Source lists the items of a named folder.
type Source interface {
	ResolveCollection(ctx context.Context, name string) (string, error)
	CollectionItems(ctx context.Context, collectionKey string) ([]Item, error)
}

// LoadAnchors resolves the configured folder and converts its items into
// anchor papers. Attachments, notes, and untitled items are skipped; at most
// MaxAnchors anchors are returned, each abstract cut to AbstractChars.
func LoadAnchors(ctx context.Context, src Source, cfg types.LibraryConfig) ([]types.AnchorPaper, error) {
	log := logger.WithContext(ctx)

	key, err := src.ResolveCollection(ctx, cfg.Folder)
	if err != nil {
		return nil, err
	}

	items, err := src.CollectionItems(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("listing items of folder %q: %w", cfg.Folder, err)
	}

	maxAnchors := cfg.MaxAnchors
	if maxAnchors <= 0 {
		maxAnchors = defaultMaxAnchors
	}
	abstractChars := cfg.AbstractChars
	if abstractChars <= 0 {
		abstractChars = defaultAbstractChars
	}

	var anchors []types.AnchorPaper
	for _, it := range items {
		if len(anchors) >= maxAnchors {
			break
		}
		if skippedItemTypes[it.ItemType] {
			continue
		}
		title := textutil.StripMarkup(it.Title)
		if title == "" {
			continue
		}
		abstract := textutil.Truncate(textutil.StripMarkup(it.Abstract), abstractChars)
		if abstract == "" {
			abstract = noAbstract
		}
		anchors = append(anchors, types.AnchorPaper{Key: it.Key, Title: title, Abstract: abstract})
	}

	if len(anchors) == 0 {
		return nil, fmt.Errorf("%w: %q (%d items)", ErrNoAnchors, cfg.Folder, len(items))
	}

	log.Info("loaded anchor papers", "folder", cfg.Folder, "anchors", len(anchors), "items", len(items), "limit", maxAnchors)
	return anchors, nil
}

// FormatContext renders anchors as the bullet list used in prompts.
func FormatContext(anchors []types.AnchorPaper) string {
	var b strings.Builder
	for _, a := range anchors {
		fmt.Fprintf(&b, "- Title: %s\n  Abstract: %s\n\n", a.Title, a.Abstract)
	}
	return b.String()
}
