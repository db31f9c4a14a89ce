// Package restmap implements the declarative REST field-mapping engine:
// turning an arbitrary JSON response body into DataPoint or NewsItem
// records using a configuration-driven path navigator.
package restmap

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/marketfeed/internal/indexnames"
	"github.com/sawpanic/marketfeed/internal/model"
)

// Config is a mapping descriptor: the recognized options for turning a
// source's JSON response into DataPoints or NewsItems.
type Config struct {
	Name           string
	Category       model.Category
	SourceName     string
	Currency       string
	DataPath       string
	FieldSymbol    string
	FieldPrice     string
	FieldChange    string
	FieldVolume    string
	FieldName      string
	FieldPrevClose string
	SymbolFilter   []string
}

func (c Config) symbolKey() string { return orDefault(c.FieldSymbol, "symbol") }
func (c Config) nameKey() string   { return c.FieldName }
func (c Config) currency() string  { return orDefault(c.Currency, "USD") }

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// navigate walks a dot-separated path from root. A numeric segment addresses
// an array index only when the current value is already a []interface{};
// otherwise every segment is treated as a case-sensitive object key.
// Ambiguous "json-pointer" style array addressing is never attempted on
// objects.
func navigate(root interface{}, path string) interface{} {
	if path == "" {
		return root
	}
	current := root
	for _, tok := range strings.Split(path, ".") {
		if current == nil {
			return nil
		}
		if arr, ok := current.([]interface{}); ok {
			if idx, err := strconv.Atoi(tok); err == nil {
				if idx < 0 || idx >= len(arr) {
					return nil
				}
				current = arr[idx]
				continue
			}
			return nil
		}
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current, ok = obj[tok]
		if !ok {
			return nil
		}
	}
	return current
}

// resolve dispatches to navigate when key contains a dot, else performs a
// direct case-sensitive object lookup.
func resolve(obj interface{}, key string) interface{} {
	if key == "" {
		return nil
	}
	if strings.Contains(key, ".") {
		return navigate(obj, key)
	}
	m, ok := obj.(map[string]interface{})
	if !ok {
		return nil
	}
	v, ok := m[key]
	if !ok {
		return nil
	}
	return v
}

// extractFloat implements the three accepted leaf representations: a JSON
// number, a JSON string (parsed as floating, empty/unparsable => NaN), or a
// JSON array (first element, same rules recursively).
func extractFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nan()
		}
		return f
	case string:
		if t == "" {
			return nan()
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nan()
		}
		return f
	case []interface{}:
		if len(t) == 0 {
			return nan()
		}
		return extractFloat(t[0])
	default:
		return nan()
	}
}

func extractString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return ""
	}
}

func nan() float64 { return math.NaN() }

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// decodeBody decodes an opaque JSON body into a generic interface{} tree,
// then navigates to cfg.DataPath before recognizing its shape.
func decodeBody(body []byte, dataPath string) (interface{}, error) {
	var root interface{}
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("restmap: decode body: %w", err)
	}
	return navigate(root, dataPath), nil
}

// inSymbolFilter reports whether symbol is allowed by cfg's SymbolFilter;
// an empty filter allows everything.
func (c Config) inSymbolFilter(symbol string) bool {
	if len(c.SymbolFilter) == 0 {
		return true
	}
	for _, s := range c.SymbolFilter {
		if s == symbol {
			return true
		}
	}
	return false
}

// buildFromItem maps one item object (array element or object-of-objects
// value) into a DataPoint, applying the prev-close auto-derivation.
func (c Config) buildFromItem(item interface{}, symbolOverride string, now time.Time) (model.DataPoint, bool) {
	symbol := symbolOverride
	if symbol == "" {
		symbol = extractString(resolve(item, c.symbolKey()))
	}
	if !c.inSymbolFilter(symbol) {
		return model.DataPoint{}, false
	}

	priceKey := orDefault(c.FieldPrice, "price")
	changeKey := orDefault(c.FieldChange, "change_percent")
	volumeKey := orDefault(c.FieldVolume, "volume")

	value := extractFloat(resolve(item, priceKey))
	changePct := extractFloat(resolve(item, changeKey))
	volume := extractFloat(resolve(item, volumeKey))
	displayName := ""
	if c.nameKey() != "" {
		displayName = extractString(resolve(item, c.nameKey()))
	}

	if math.IsNaN(changePct) && c.FieldPrevClose != "" {
		prev := extractFloat(resolve(item, c.FieldPrevClose))
		if isFinite(value) && isFinite(prev) && prev > 0 {
			changePct = (value - prev) / prev * 100.0
		}
	}

	if symbol == "" && displayName == "" {
		return model.DataPoint{}, false
	}
	if !isFinite(value) {
		return model.DataPoint{}, false
	}

	dp := model.DataPoint{
		SourceName:  c.SourceName,
		SourceKind:  model.SourceREST,
		Category:    c.Category,
		Symbol:      symbol,
		DisplayName: displayName,
		Value:       value,
		Currency:    c.currency(),
		ChangePct:   changePct,
		Volume:      volume,
		Timestamp:   now,
		IngestedAt:  now,
	}
	if dp.Category == model.CategoryStockIndex && dp.DisplayName == "" {
		if name, ok := indexnames.Lookup(dp.Symbol); ok {
			dp.DisplayName = name
		}
	}
	return dp, true
}

// MapDataPoints recognizes three response shapes — an array of items, a
// flat single object, and an object keyed by symbol (CoinGecko-style) — and
// returns the DataPoints produced.
func (c Config) MapDataPoints(body []byte, now time.Time) ([]model.DataPoint, error) {
	navigated, err := decodeBody(body, c.DataPath)
	if err != nil {
		return nil, err
	}
	if navigated == nil {
		return nil, nil
	}

	priceKey := orDefault(c.FieldPrice, "price")

	switch shape := navigated.(type) {
	case []interface{}:
		out := make([]model.DataPoint, 0, len(shape))
		for _, item := range shape {
			if dp, ok := c.buildFromItem(item, "", now); ok {
				out = append(out, dp)
			}
		}
		return out, nil

	case map[string]interface{}:
		if v, ok := shape[priceKey]; ok {
			if _, isObj := v.(map[string]interface{}); !isObj {
				symbol := ""
				if len(c.SymbolFilter) > 0 {
					symbol = c.SymbolFilter[0]
				} else {
					symbol = c.Name
				}
				if dp, ok := c.buildFromItem(shape, symbol, now); ok {
					return []model.DataPoint{dp}, nil
				}
				return nil, nil
			}
		}

		// Object of objects keyed by symbol (CoinGecko-style defaults).
		oooCfg := c
		if oooCfg.FieldPrice == "" {
			oooCfg.FieldPrice = "usd"
		}
		if oooCfg.FieldChange == "" {
			oooCfg.FieldChange = "usd_24h_change"
		}
		if oooCfg.FieldVolume == "" {
			oooCfg.FieldVolume = "usd_24h_vol"
		}

		out := make([]model.DataPoint, 0, len(shape))
		for key, entry := range shape {
			symbol := key
			if nested, ok := entry.(map[string]interface{}); ok {
				if override := extractString(resolve(nested, oooCfg.symbolKey())); override != "" && oooCfg.FieldSymbol != "" {
					symbol = override
				}
				if dp, ok := oooCfg.buildFromItem(nested, symbol, now); ok {
					out = append(out, dp)
				}
				continue
			}
			// Bare numeric leaf value: only value is populated.
			value := extractFloat(entry)
			if !isFinite(value) || symbol == "" {
				continue
			}
			out = append(out, model.DataPoint{
				SourceName: c.SourceName,
				SourceKind: model.SourceREST,
				Category:   c.Category,
				Symbol:     symbol,
				Value:      value,
				Currency:   c.currency(),
				ChangePct:  nan(),
				Volume:     nan(),
				Timestamp:  now,
				IngestedAt: now,
			})
		}
		return out, nil

	default:
		return nil, nil
	}
}

// MapNews is the calendar-mode entry point for category == financial_news
// sources: it shares the navigator and extraction helpers with
// MapDataPoints but returns NewsItem records.
func (c Config) MapNews(body []byte, now time.Time, tierScore float64) ([]model.NewsItem, error) {
	navigated, err := decodeBody(body, c.DataPath)
	if err != nil {
		return nil, err
	}
	items, ok := navigated.([]interface{})
	if !ok {
		if navigated == nil {
			return nil, nil
		}
		items = []interface{}{navigated}
	}

	titleKey := orDefault(c.FieldName, "title")
	urlKey := orDefault(c.FieldSymbol, "url")
	summaryKey := orDefault(c.FieldPrice, "summary")

	out := make([]model.NewsItem, 0, len(items))
	for _, raw := range items {
		title := extractString(resolve(raw, titleKey))
		if title == "" {
			continue
		}
		out = append(out, model.NewsItem{
			Title:       title,
			Source:      c.SourceName,
			URL:         extractString(resolve(raw, urlKey)),
			Summary:     extractString(resolve(raw, summaryKey)),
			Category:    c.Category,
			PublishedAt: time.Time{},
			IngestedAt:  now,
			Score:       tierScore,
		})
	}
	return out, nil
}
