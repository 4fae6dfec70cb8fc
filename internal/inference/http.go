package inference

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 4 << 20

// HTTPEngine posts images to an engine exposing POST /infer.
type HTTPEngine struct {
	endpoint string
	client   *http.Client
	// throttle caps outbound calls across all users of this instance.
	throttle *rate.Limiter
}

type HTTPOption func(*HTTPEngine)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(e *HTTPEngine) { e.client = c }
}

// WithThrottle limits outbound calls to rps with the given burst.
func WithThrottle(rps float64, burst int) HTTPOption {
	return func(e *HTTPEngine) { e.throttle = rate.NewLimiter(rate.Limit(rps), burst) }
}

func NewHTTPEngine(baseURL string, opts ...HTTPOption) *HTTPEngine {
	e := &HTTPEngine{
		endpoint: strings.TrimRight(baseURL, "/") + "/infer",
		client:   &http.Client{Timeout: 2 * time.Minute},
		throttle: rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// wireResponse accepts both the tagged format and the legacy parallel arrays.
type wireResponse struct {
	Classification  string    `json:"classification"`
	FoodProbability *float64  `json:"food_probability"`
	Variants        []Variant `json:"variants"`

	Title        []string          `json:"title"`
	Ingredients  []json.RawMessage `json:"ingredients"`
	Instructions []json.RawMessage `json:"recipe"`
}

func (e *HTTPEngine) Infer(ctx context.Context, image []byte, filename string) (*Output, error) {
	if err := e.throttle.Wait(ctx); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(image); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading inference response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference engine returned status %d", resp.StatusCode)
	}

	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return normalize(&wire)
}

func normalize(w *wireResponse) (*Output, error) {
	out := &Output{FoodProbability: w.FoodProbability}

	if w.Classification != "" || len(w.Variants) > 0 {
		switch Class(strings.ToUpper(w.Classification)) {
		case ClassOK, "":
			out.Class = ClassOK
		case ClassNotFood:
			out.Class = ClassNotFood
		case ClassNotRecipe:
			out.Class = ClassNotRecipe
		default:
			return nil, fmt.Errorf("%w: unknown classification %q", ErrMalformedResponse, w.Classification)
		}
		out.Variants = w.Variants
		return out, nil
	}

	if len(w.Title) == 0 {
		return nil, fmt.Errorf("%w: no variants", ErrMalformedResponse)
	}
	if w.Title[0] == LegacyNotFoodTitle {
		out.Class = ClassNotFood
		return out, nil
	}

	out.Class = ClassOK
	// Rejected variants carry a title and a reason but no ingredients entry.
	next := 0
	for i, title := range w.Title {
		v := Variant{Title: title}
		if title == LegacyNotRecipeTitle {
			v.Reason = legacyReason(w.Instructions, i)
			out.Variants = append(out.Variants, v)
			continue
		}
		if next < len(w.Ingredients) {
			v.Ingredients = decodeList(w.Ingredients[next])
		}
		next++
		if i < len(w.Instructions) {
			v.Instructions = decodeList(w.Instructions[i])
		}
		out.Variants = append(out.Variants, v)
	}
	return out, nil
}

// decodeList reads a JSON array of strings, or a single string.
func decodeList(raw json.RawMessage) []string {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

func legacyReason(instructions []json.RawMessage, i int) string {
	if i >= len(instructions) {
		return "engine rejected the recipe"
	}
	list := decodeList(instructions[i])
	if len(list) == 0 {
		return "engine rejected the recipe"
	}
	return strings.TrimPrefix(list[0], "Reason: ")
}
