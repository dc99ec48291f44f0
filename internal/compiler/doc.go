// Package compiler turns authored recipe books into ir.Book.
//
// Books are written in CUE:
//
//	card: {
//		fire:  {name: "Fire"}
//		water: {name: "Water"}
//		steam: {name: "Steam", description: "Hot mist"}
//	}
//	recipe: [
//		{ingredients: ["fire", "water"], result: "steam"},
//	]
//
// or, for small fixtures, in YAML with top-level "cards" and "recipes"
// lists. Recipe order is preserved: the catalog keeps the first recipe
// for each ingredient set.
//
// The compiler rejects books it cannot read (non-concrete values, wrong
// types). Recipes that are well-typed but semantically bad (one
// ingredient, missing result) compile as-is so the catalog build can skip
// and report them; Validate lints for them ahead of time.
package compiler
