// Package inference talks to the external image-to-recipe engine.
package inference

import (
	"context"
	"errors"
)

// Class is the engine's own verdict on an image.
type Class string

const (
	ClassOK        Class = "OK"
	ClassNotFood   Class = "NOT_FOOD"
	ClassNotRecipe Class = "NOT_RECIPE"
)

// Legacy engines signal failures through these titles instead of a class.
const (
	LegacyNotFoodTitle   = "Not a valid food image!"
	LegacyNotRecipeTitle = "Not a valid recipe!"
)

// Variant is one candidate recipe. Reason is set when the engine itself
// rejected the candidate.
type Variant struct {
	Title        string   `json:"title"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	Reason       string   `json:"reason,omitempty"`
}

// Output is the normalized engine response.
type Output struct {
	Class Class
	// FoodProbability is nil when the engine did not report one.
	FoodProbability *float64
	Variants        []Variant
}

// Engine runs one inference. Implementations must not retry.
type Engine interface {
	Infer(ctx context.Context, image []byte, filename string) (*Output, error)
}

var ErrMalformedResponse = errors.New("malformed inference response")
