package domain

// RatingInput is what the user submits for a recipe.
type RatingInput struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Review string `json:"review,omitempty" validate:"max=2000"`
}

// RatingRecord is the current identity's confirmed rating for one recipe.
// One record exists per (identity, recipe) pair; the client only knows the
// records of the identity that is signed in right now.
type RatingRecord struct {
	RecipeID int    `json:"recipe_id"`
	Rating   int    `json:"rating"`
	Review   string `json:"review,omitempty"`
}

// AggregateStats is the server-computed rating summary for a recipe. It is
// not identity-scoped and is cached opportunistically from mutation
// responses; the client never derives it from its own partial data.
type AggregateStats struct {
	RecipeID      int     `json:"recipe_id"`
	AverageRating float64 `json:"average_rating"`
	RatingCount   int     `json:"rating_count"`
}
