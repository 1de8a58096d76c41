package taste

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/culturetwin/twin-finder/backend/internal/config"
	"github.com/culturetwin/twin-finder/backend/internal/model/taste"
)

// maxTake caps the number of items requested per category.
const maxTake = 5

// Client queries the recommendation service per entity category and
// normalizes its heterogeneous response shapes into a uniform item list.
// Failures never cross this boundary: every path resolves to an item slice,
// possibly empty, and diagnostic detail goes to the log.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	interestID string
}

// NewClient builds a recommendation client from configuration.
func NewClient(cfg config.TasteConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		interestID: cfg.InterestID,
	}
}

// GetRecommendations fetches up to limit items for the category. Unsupported
// categories short-circuit without a network call, and limit is clamped to 5.
func (c *Client) GetRecommendations(ctx context.Context, category taste.Category, limit int) []taste.Item {
	if !category.Supported() {
		log.Printf("[taste] unsupported category: %s", category)
		return []taste.Item{}
	}

	take := limit
	if take > maxTake {
		take = maxTake
	}
	if take < 1 {
		take = 1
	}

	query := url.Values{}
	query.Set("filter.type", "urn:entity:"+string(category))
	query.Set("signal.interests.entities", c.interestID)
	query.Set("take", strconv.Itoa(take))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/insights?"+query.Encode(), nil)
	if err != nil {
		log.Printf("[taste] failed to build request for %s: %v", category, err)
		return []taste.Item{}
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[taste] request failed for %s: %v", category, err)
		return []taste.Item{}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusForbidden {
			log.Printf("[taste] access forbidden for category: %s", category)
		} else {
			log.Printf("[taste] service error for %s: %s", category, resp.Status)
		}
		return []taste.Item{}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[taste] failed to read response for %s: %v", category, err)
		return []taste.Item{}
	}

	items := normalize(body, category)
	if len(items) > take {
		items = items[:take]
	}
	return items
}

// normalize accepts the three tolerated payload shapes, in order:
// {success, results:{entities:[...]}}, a bare array, and {data:[...]}.
// Anything else counts as zero items.
func normalize(body []byte, category taste.Category) []taste.Item {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("[taste] unrecognized payload for %s: %v", category, err)
		return []taste.Item{}
	}

	var raw []any
	switch data := payload.(type) {
	case []any:
		raw = data
	case map[string]any:
		if success, _ := data["success"].(bool); success {
			if results, ok := data["results"].(map[string]any); ok {
				if entities, ok := results["entities"].([]any); ok {
					raw = entities
				}
			}
		}
		if raw == nil {
			if entries, ok := data["data"].([]any); ok {
				raw = entries
			}
		}
	}

	items := make([]taste.Item, 0, len(raw))
	for _, entry := range raw {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, mapItem(fields, category))
	}
	return items
}

// mapItem assigns defaults for missing fields and passes the rest through.
func mapItem(fields map[string]any, category taste.Category) taste.Item {
	item := taste.Item{Category: category}

	if id, _ := fields["id"].(string); id != "" {
		item.ID = id
	} else {
		item.ID = uuid.NewString()
	}

	name, _ := fields["name"].(string)
	if name != "" {
		item.Name = name
	} else {
		item.Name = "Untitled " + string(category)
	}

	if imageURL, _ := fields["image_url"].(string); imageURL != "" {
		item.ImageURL = imageURL
	} else {
		// Keyed by the source name: a nameless item falls back to the
		// category initial rather than the synthesized display name.
		item.ImageURL = FallbackImageURL(category, name)
	}

	item.Description, _ = fields["description"].(string)

	extra := make(map[string]any, len(fields))
	for key, value := range fields {
		switch key {
		case "id", "name", "image_url", "description":
		default:
			extra[key] = value
		}
	}
	if len(extra) > 0 {
		item.Extra = extra
	}

	return item
}
