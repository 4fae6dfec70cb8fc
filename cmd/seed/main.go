// Command seed creates demo accounts, public recipes and ratings for local
// development. Existing accounts are left alone.
package main

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pageza/recipe-lens/backend/config"
	"github.com/pageza/recipe-lens/backend/internal/database"
	"github.com/pageza/recipe-lens/backend/internal/logging"
	"github.com/pageza/recipe-lens/backend/internal/models"
	"github.com/pageza/recipe-lens/backend/internal/service"
	"github.com/pageza/recipe-lens/backend/internal/types"
)

const demoPassword = "testpassword123"

var demoUsers = []struct {
	name  string
	email string
	diet  string
}{
	{name: "John Doe", email: "john.doe@example.com", diet: "pescatarian"},
	{name: "Jane Smith", email: "jane.smith@example.com", diet: "vegetarian"},
	{name: "Bob Wilson", email: "bob.wilson@example.com"},
	{name: "Alice Cooper", email: "alice.cooper@example.com", diet: "vegan"},
}

var demoRecipes = []types.SaveRecipeRequest{
	{
		Title:        "Roasted Tomato Soup",
		Ingredients:  []string{"1 kg tomatoes", "1 onion", "2 cloves garlic", "olive oil", "salt"},
		Instructions: []string{"Roast the tomatoes, onion and garlic.", "Blend until smooth.", "Season and simmer for 10 minutes."},
		IsPublic:     true,
	},
	{
		Title:        "Chickpea Curry",
		Ingredients:  []string{"2 cans chickpeas", "1 can coconut milk", "curry paste", "spinach"},
		Instructions: []string{"Fry the curry paste.", "Add chickpeas and coconut milk.", "Stir in the spinach before serving."},
		IsPublic:     true,
	},
	{
		Title:        "Lemon Pancakes",
		Ingredients:  []string{"flour", "2 eggs", "milk", "1 lemon", "sugar"},
		Instructions: []string{"Whisk everything into a batter.", "Cook on a hot pan until golden."},
	},
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: "console"})

	db, err := database.Open(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)
	if err := database.RunMigrations(db); err != nil {
		logging.Fatal().Err(err).Msg("failed to migrate database")
	}

	ctx := context.Background()
	auth := service.NewAuthService(db, cfg.JWT.Secret, cfg.JWT.Expiry)
	recipes := service.NewRecipeService(db)
	ratings := service.NewRatingService(db)

	var created []*models.User
	for _, u := range demoUsers {
		user, err := auth.Register(ctx, u.email, demoPassword, u.name)
		if errors.Is(err, service.ErrDuplicateIdentity) {
			logging.Info().Str("email", u.email).Msg("user already exists, skipping")
			continue
		}
		if err != nil {
			logging.Error().Err(err).Str("email", u.email).Msg("failed to create user")
			continue
		}
		if u.diet != "" {
			diet := u.diet
			if _, err := auth.UpdatePreferences(ctx, user.ID, &types.UpdatePreferencesRequest{DietaryType: &diet}); err != nil {
				logging.Warn().Err(err).Str("email", u.email).Msg("failed to set preferences")
			}
		}
		created = append(created, user)
		logging.Info().Str("email", u.email).Msg("created user")
	}

	if len(created) == 0 {
		logging.Info().Msg("nothing to seed")
		return
	}

	owner := created[0]
	for i := range demoRecipes {
		recipe, err := recipes.Save(ctx, owner.ID, &demoRecipes[i])
		if err != nil {
			logging.Error().Err(err).Str("title", demoRecipes[i].Title).Msg("failed to save recipe")
			continue
		}
		if recipe.IsPublic {
			rateByOthers(ctx, ratings, recipe.ID, created[1:])
		}
		logging.Info().Str("title", recipe.Title).Bool("public", recipe.IsPublic).Msg("saved recipe")
	}

	logging.Info().Int("users", len(created)).Str("password", demoPassword).Msg("seed complete")
}

func rateByOthers(ctx context.Context, ratings service.IRatingService, recipeID uuid.UUID, raters []*models.User) {
	for i, u := range raters {
		if _, err := ratings.Rate(ctx, recipeID, u.ID, 3+i%3, nil); err != nil {
			logging.Warn().Err(err).Msg("failed to rate recipe")
		}
	}
}
