// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package library reads anchor papers from a collection in the user's
// Zotero library. Anchors describe the user's established interests and
// become the context of every relevance prompt.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/paperwatch/internal/httputil"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// zoteroAPIBase is the Zotero Web API root. Declared as a var so tests can
// substitute an httptest server.
var zoteroAPIBase = "https://api.zotero.org"

// pageLimit is the largest page the Zotero API serves.
const pageLimit = 100

var (
	// ErrFolderNotFound means no collection matched the configured name.
	ErrFolderNotFound = errors.New("anchor folder not found")

	// ErrUnauthorized means the API key was rejected or lacks access.
	ErrUnauthorized = errors.New("library authentication failed")
)

// Collection is a Zotero collection (folder).
type Collection struct {
	Key    string
	Name   string
	Parent string
}

// Item is the subset of a Zotero item the loader needs.
type Item struct {
	Key      string
	ItemType string
	Title    string
	Abstract string
}

// Client talks to the Zotero Web API v3.
type Client struct {
	HTTP      *http.Client
	LibraryID string
	Type      types.LibraryType
	APIKey    string
	UserAgent string
}

// NewClient builds a Client from the library configuration.
func NewClient(cfg types.LibraryConfig) *Client {
	return &Client{
		HTTP:      &http.Client{Timeout: cfg.Timeout},
		LibraryID: cfg.LibraryID,
		Type:      cfg.Type,
		APIKey:    cfg.APIKey,
		UserAgent: cfg.UserAgent,
	}
}

// prefix returns "/users/<id>" or "/groups/<id>".
func (c *Client) prefix() string {
	kind := "users"
	if c.Type == types.LibraryGroup {
		kind = "groups"
	}
	return "/" + kind + "/" + url.PathEscape(c.LibraryID)
}

// Collections lists every collection in the library, following pagination.
func (c *Client) Collections(ctx context.Context) ([]Collection, error) {
	var out []Collection
	err := c.paginate(ctx, c.prefix()+"/collections", func(body io.Reader) (int, error) {
		var page []zoteroCollection
		if err := json.NewDecoder(body).Decode(&page); err != nil {
			return 0, fmt.Errorf("parsing collections: %w", err)
		}
		for _, col := range page {
			out = append(out, Collection{
				Key:    col.Key,
				Name:   col.Data.Name,
				Parent: parentKey(col.Data.ParentCollection),
			})
		}
		return len(page), nil
	})
	return out, err
}

// ResolveCollection returns the key of the collection whose name matches
// name case-insensitively. It returns ErrFolderNotFound when none does.
func (c *Client) ResolveCollection(ctx context.Context, name string) (string, error) {
	cols, err := c.Collections(ctx)
	if err != nil {
		return "", err
	}
	want := strings.TrimSpace(name)
	for _, col := range cols {
		if strings.EqualFold(strings.TrimSpace(col.Name), want) {
			return col.Key, nil
		}
	}
	return "", fmt.Errorf("%w: %q (%d collections searched)", ErrFolderNotFound, name, len(cols))
}

// CollectionItems lists the top-level items of a collection.
func (c *Client) CollectionItems(ctx context.Context, collectionKey string) ([]Item, error) {
	var out []Item
	path := c.prefix() + "/collections/" + url.PathEscape(collectionKey) + "/items/top"
	err := c.paginate(ctx, path, func(body io.Reader) (int, error) {
		var page []zoteroItem
		if err := json.NewDecoder(body).Decode(&page); err != nil {
			return 0, fmt.Errorf("parsing collection items: %w", err)
		}
		for _, it := range page {
			out = append(out, Item{
				Key:      it.Key,
				ItemType: it.Data.ItemType,
				Title:    it.Data.Title,
				Abstract: it.Data.AbstractNote,
			})
		}
		return len(page), nil
	})
	return out, err
}

// paginate fetches path page by page. decode consumes one page body and
// reports how many entries it held. Paging stops at the Total-Results count
// or at the first short page when the header is absent.
func (c *Client) paginate(ctx context.Context, path string, decode func(io.Reader) (int, error)) error {
	for start := 0; ; {
		params := url.Values{
			"start": {strconv.Itoa(start)},
			"limit": {strconv.Itoa(pageLimit)},
		}
		reqURL := zoteroAPIBase + path + "?" + params.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Zotero-API-Version", "3")
		req.Header.Set("Zotero-API-Key", c.APIKey)
		if c.UserAgent != "" {
			req.Header.Set("User-Agent", c.UserAgent)
		}

		resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, 3)
		if err != nil {
			return fmt.Errorf("Zotero API request: %w", err)
		}

		n, total, err := c.readPage(resp, decode)
		if err != nil {
			return err
		}

		start += n
		if n == 0 || (total >= 0 && start >= total) || (total < 0 && n < pageLimit) {
			return nil
		}
	}
}

func (c *Client) readPage(resp *http.Response, decode func(io.Reader) (int, error)) (int, int, error) {
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return 0, 0, fmt.Errorf("%w: Zotero API returned HTTP %d for library %s", ErrUnauthorized, resp.StatusCode, c.prefix())
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, 0, fmt.Errorf("Zotero API returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	total := -1
	if v := resp.Header.Get("Total-Results"); v != "" {
		if t, err := strconv.Atoi(v); err == nil {
			total = t
		}
	}

	n, err := decode(resp.Body)
	return n, total, err
}

// parentKey decodes parentCollection, which the API sends as either a key
// string or false for top-level collections.
func parentKey(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// Zotero API JSON structures.
type zoteroCollection struct {
	Key  string `json:"key"`
	Data struct {
		Name             string          `json:"name"`
		ParentCollection json.RawMessage `json:"parentCollection"`
	} `json:"data"`
}

type zoteroItem struct {
	Key  string `json:"key"`
	Data struct {
		ItemType     string `json:"itemType"`
		Title        string `json:"title"`
		AbstractNote string `json:"abstractNote"`
	} `json:"data"`
}
