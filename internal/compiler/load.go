package compiler

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"

	"github.com/roach88/fusion/internal/ir"
)

// LoadBook reads a recipe book from path:
//   - a .cue file
//   - a directory of .cue files forming one CUE instance
//   - a .yaml or .yml file
func LoadBook(path string) (*ir.Book, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load book: %w", err)
	}

	if info.IsDir() {
		return loadCUEDir(path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return loadCUEFile(path)
	case ".yaml", ".yml":
		return loadYAMLFile(path)
	default:
		return nil, fmt.Errorf("load book: unsupported file type %q", filepath.Ext(path))
	}
}

// CompileBookString compiles CUE source. The filename is used in error
// positions only.
func CompileBookString(src, filename string) (*ir.Book, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	return CompileBook(v)
}

func loadCUEFile(path string) (*ir.Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load book: %w", err)
	}
	return CompileBookString(string(data), path)
}

func loadCUEDir(dir string) (*ir.Book, error) {
	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("load book: scanning directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("load book: no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("load book: no CUE instances loaded")
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("load book: loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileBook(value)
}

func loadYAMLFile(path string) (*ir.Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load book: %w", err)
	}
	return ParseYAMLBook(data)
}

// ParseYAMLBook decodes a YAML book. Unknown fields are rejected to catch
// typos like "recipe:" vs "recipes:".
func ParseYAMLBook(data []byte) (*ir.Book, error) {
	var book ir.Book
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&book); err != nil {
		return nil, fmt.Errorf("failed to parse YAML book: %w", err)
	}

	for i := range book.Cards {
		book.Cards[i].ID = strings.TrimSpace(book.Cards[i].ID)
	}
	for i := range book.Recipes {
		r := &book.Recipes[i]
		for j := range r.Ingredients {
			r.Ingredients[j] = strings.TrimSpace(r.Ingredients[j])
		}
		r.Result = strings.TrimSpace(r.Result)
	}
	return &book, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
