package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"crypto-dca-bot/internal/api"
	"crypto-dca-bot/internal/types"
)

// SentimentPoint is one day of the fear & greed index.
type SentimentPoint struct {
	Date           string
	Value          int
	Classification string
}

// SentimentSource supplies the daily fear & greed index.
type SentimentSource interface {
	// Latest returns the most recent published value.
	Latest(ctx context.Context) (SentimentPoint, error)
	// History returns up to limit past values, newest first. A limit
	// of zero requests the full published history.
	History(ctx context.Context, limit int) ([]SentimentPoint, error)
}

// fngResponse mirrors the api.alternative.me /fng/ payload.
type fngResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
	} `json:"data"`
	Metadata struct {
		Error any `json:"error"`
	} `json:"metadata"`
}

// alternativeMeSource fetches the index from api.alternative.me.
type alternativeMeSource struct {
	client *api.Client
}

// NewAlternativeMeSource creates a sentiment source for the given base
// URL (normally https://api.alternative.me).
func NewAlternativeMeSource(baseURL string) SentimentSource {
	return &alternativeMeSource{
		client: api.NewClient(
			api.WithBaseURL(baseURL),
			api.WithTimeout(30*time.Second),
			api.WithLogging(true),
		),
	}
}

func (a *alternativeMeSource) Latest(ctx context.Context) (SentimentPoint, error) {
	points, err := a.History(ctx, 1)
	if err != nil {
		return SentimentPoint{}, err
	}
	if len(points) == 0 {
		return SentimentPoint{}, fmt.Errorf("collector: empty fear & greed response")
	}
	return points[0], nil
}

func (a *alternativeMeSource) History(ctx context.Context, limit int) ([]SentimentPoint, error) {
	resp, err := a.client.GET(ctx, fmt.Sprintf("/fng/?limit=%d", limit))
	if err != nil {
		return nil, fmt.Errorf("collector: fetch fear & greed index: %w", err)
	}

	var payload fngResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("collector: decode fear & greed response: %w", err)
	}
	if payload.Metadata.Error != nil {
		return nil, fmt.Errorf("collector: fear & greed api error: %v", payload.Metadata.Error)
	}

	out := make([]SentimentPoint, 0, len(payload.Data))
	for _, d := range payload.Data {
		value, err := strconv.Atoi(d.Value)
		if err != nil {
			return nil, fmt.Errorf("collector: parse index value %q: %w", d.Value, err)
		}
		unix, err := strconv.ParseInt(d.Timestamp, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("collector: parse index timestamp %q: %w", d.Timestamp, err)
		}
		out = append(out, SentimentPoint{
			Date:           types.FormatDay(time.Unix(unix, 0).UTC()),
			Value:          value,
			Classification: d.ValueClassification,
		})
	}
	return out, nil
}
