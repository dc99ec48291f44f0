package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/fusion/internal/ir"
)

// CompileBook parses a CUE value into a Book.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is the book root, holding the "card" struct and the "recipe"
// list:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	book, err := CompileBook(v)
func CompileBook(v cue.Value) (*ir.Book, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	book := &ir.Book{}

	// Cards are optional; recipes may reference cards defined elsewhere.
	cardsVal := v.LookupPath(cue.ParsePath("card"))
	if cardsVal.Exists() {
		iter, err := cardsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			spec, err := compileCard(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			book.Cards = append(book.Cards, spec)
		}
	}

	recipesVal := v.LookupPath(cue.ParsePath("recipe"))
	if !recipesVal.Exists() {
		return nil, &CompileError{
			Field:   "recipe",
			Message: "recipe list is required",
			Pos:     v.Pos(),
		}
	}

	list, err := recipesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; list.Next(); i++ {
		spec, err := compileRecipe(list.Value(), i)
		if err != nil {
			return nil, err
		}
		book.Recipes = append(book.Recipes, spec)
	}

	return book, nil
}

// compileCard parses one card definition. The struct label is the ID.
func compileCard(label string, v cue.Value) (ir.CardSpec, error) {
	spec := ir.CardSpec{ID: strings.TrimSpace(label)}

	var err error
	if spec.Name, err = optionalString(v, "name"); err != nil {
		return spec, err
	}
	if spec.Description, err = optionalString(v, "description"); err != nil {
		return spec, err
	}
	return spec, nil
}

// compileRecipe parses one recipe. Missing fields compile to zero values
// so the catalog build reports them rather than the compiler.
func compileRecipe(v cue.Value, index int) (ir.RecipeSpec, error) {
	spec := ir.RecipeSpec{Line: v.Pos().Line()}

	ingVal := v.LookupPath(cue.ParsePath("ingredients"))
	if ingVal.Exists() {
		iter, err := ingVal.List()
		if err != nil {
			return spec, &CompileError{
				Field:   fmt.Sprintf("recipe[%d].ingredients", index),
				Message: "must be a list of card IDs",
				Pos:     ingVal.Pos(),
			}
		}
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return spec, &CompileError{
					Field:   fmt.Sprintf("recipe[%d].ingredients", index),
					Message: "ingredient must be a concrete string",
					Pos:     iter.Value().Pos(),
				}
			}
			spec.Ingredients = append(spec.Ingredients, strings.TrimSpace(s))
		}
	}

	result, err := optionalString(v, "result")
	if err != nil {
		return spec, &CompileError{
			Field:   fmt.Sprintf("recipe[%d].result", index),
			Message: "result must be a concrete string",
			Pos:     v.Pos(),
		}
	}
	spec.Result = result

	return spec, nil
}

// optionalString reads a string field, returning "" when absent.
func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return strings.TrimSpace(s), nil
}
