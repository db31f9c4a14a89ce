// Package rss fetches and parses RSS/Atom feeds into NewsItems. Implemented
// with mmcdole/gofeed.
package rss

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/sawpanic/marketfeed/internal/model"
)

const maxItemsPerFetch = 64

// TierScore maps a configured source tier to the base NewsItem score. Tier
// 1 sources (wire services, regulators) outrank tier 2 (trade press), which
// outranks tier 3 (aggregators/blogs).
func TierScore(tier int) float64 {
	switch tier {
	case 1:
		return 100
	case 2:
		return 60
	default:
		return 30
	}
}

// Source describes one configured RSS/Atom feed.
type Source struct {
	Name            string
	URL             string
	Category        model.Category
	RefreshInterval time.Duration
	Tier            int
	Region          string
	Country         string
}

// Fetcher pulls and parses one feed, returning up to 64 NewsItems.
type Fetcher struct {
	parser *gofeed.Parser
}

func NewFetcher() *Fetcher {
	return &Fetcher{parser: gofeed.NewParser()}
}

func (f *Fetcher) Fetch(ctx context.Context, src Source) ([]model.NewsItem, error) {
	feed, err := f.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("rss: parse %s: %w", src.Name, err)
	}

	now := time.Now()
	score := TierScore(src.Tier)

	items := feed.Items
	if len(items) > maxItemsPerFetch {
		items = items[:maxItemsPerFetch]
	}

	out := make([]model.NewsItem, 0, len(items))
	for _, item := range items {
		title := item.Title
		if title == "" {
			continue
		}
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		var published time.Time
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		}

		out = append(out, model.NewsItem{
			Title:       title,
			Source:      src.Name,
			URL:         item.Link,
			Summary:     truncateSummary(summary),
			Category:    src.Category,
			PublishedAt: published,
			IngestedAt:  now,
			Score:       score,
			Region:      src.Region,
			Country:     src.Country,
		})
	}
	return out, nil
}

const maxSummaryLen = 3334

func truncateSummary(s string) string {
	if len(s) <= maxSummaryLen {
		return s
	}
	return s[:maxSummaryLen]
}
