// Package catalog maps numeric item ids to their unique item names.
//
// The table is loaded once at startup from a newline-delimited "id:name"
// dump and is read-only afterwards, so lookups need no locking.
package catalog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultURL is the formatted item dump published by the data project.
const DefaultURL = "https://raw.githubusercontent.com/ao-data/ao-bin-dumps/master/formatted/items.txt"

// Catalog is an immutable item id to name table.
type Catalog struct {
	names map[uint32]string
}

// Empty returns a catalog with no entries; every lookup misses.
func Empty() *Catalog {
	return &Catalog{names: map[uint32]string{}}
}

// New builds a catalog from an existing mapping.
func New(names map[uint32]string) *Catalog {
	c := &Catalog{names: make(map[uint32]string, len(names))}
	for id, name := range names {
		c.names[id] = name
	}
	return c
}

// Lookup returns the unique name for id.
func (c *Catalog) Lookup(id uint32) (string, bool) {
	if c == nil {
		return "", false
	}
	name, ok := c.names[id]
	return name, ok
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.names)
}

// Parse reads "id:name" lines. Lines that do not parse are skipped and
// counted; the first occurrence of an id wins.
//
// Some dumps carry a localized display name as a third field
// ("1: T1_FARM_CARROT_SEED : Carrot Seeds"); only the unique name is kept.
func Parse(r io.Reader) (*Catalog, int, error) {
	c := Empty()
	skipped := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, ":")
		if len(fields) < 2 {
			skipped++
			continue
		}

		id, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 32)
		if err != nil {
			skipped++
			continue
		}

		name := strings.TrimSpace(fields[1])
		if name == "" {
			skipped++
			continue
		}

		if _, exists := c.names[uint32(id)]; !exists {
			c.names[uint32(id)] = name
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("read catalog: %w", err)
	}

	return c, skipped, nil
}

// Fetch downloads and parses the catalog at url.
func Fetch(ctx context.Context, client *http.Client, url string, logger *slog.Logger) (*Catalog, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger = logger.With("component", "catalog")
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch catalog: unexpected status %d", resp.StatusCode)
	}

	c, skipped, err := Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	logger.Info("catalog_loaded",
		"url", url,
		"items", c.Len(),
		"skipped_lines", skipped,
		"latency_ms", time.Since(startTime).Milliseconds(),
	)

	return c, nil
}
