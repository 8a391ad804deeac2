// Package plan holds the static job table for both stages: which raw dumps
// are converted into which tables, and which tables are combined.
package plan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"redditetl/internal/config"
	"redditetl/internal/convert"
	"redditetl/internal/merge"
	"redditetl/internal/schema"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("plan: invalid")

type ConvertEntry struct {
	Name        string      `yaml:"name" json:"name"`
	Source      string      `yaml:"source" json:"source" validate:"required"`
	Destination string      `yaml:"destination" json:"destination" validate:"required"`
	Kind        schema.Kind `yaml:"kind" json:"kind" validate:"required"`
}

type CombineEntry struct {
	Name   string      `yaml:"name" json:"name"`
	First  string      `yaml:"first" json:"first" validate:"required"`
	Second string      `yaml:"second" json:"second" validate:"required"`
	Output string      `yaml:"output" json:"output" validate:"required"`
	Kind   schema.Kind `yaml:"kind" json:"kind" validate:"required"`
}

type Plan struct {
	Convert []ConvertEntry `yaml:"convert" json:"convert" validate:"unique=Destination,dive"`
	Combine []CombineEntry `yaml:"combine" json:"combine" validate:"unique=Output,dive"`
}

// Default is the two-subreddit layout the tool was built for.
func Default() *Plan {
	return &Plan{
		Convert: []ConvertEntry{
			{Source: "r_politics_comments.jsonl", Destination: "politics_comments_cleaned.csv", Kind: schema.Comment},
			{Source: "r_conservative_comments.jsonl", Destination: "conservative_comments_cleaned.csv", Kind: schema.Comment},
			{Source: "r_politics_posts.jsonl", Destination: "politics_posts_cleaned.csv", Kind: schema.Post},
			{Source: "r_conservative_posts.jsonl", Destination: "conservative_posts_cleaned.csv", Kind: schema.Post},
		},
		Combine: []CombineEntry{
			{First: "politics_comments_cleaned.csv", Second: "conservative_comments_cleaned.csv", Output: "all_comments.csv", Kind: schema.Comment},
			{First: "politics_posts_cleaned.csv", Second: "conservative_posts_cleaned.csv", Output: "all_posts.csv", Kind: schema.Post},
		},
	}
}

// LoadFile reads a plan from .yaml/.yml or .json.
func LoadFile(path string) (*Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Plan
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &p); err != nil {
			return nil, fmt.Errorf("plan %s: %w", path, err)
		}
	case ".json":
		if err := sonic.Unmarshal(b, &p); err != nil {
			return nil, fmt.Errorf("plan %s: %w", path, err)
		}
	default:
		return nil, errors.New("unsupported plan file format (use .yaml/.yml or .json)")
	}
	if len(p.Convert) == 0 && len(p.Combine) == 0 {
		return nil, fmt.Errorf("%w: %s defines no convert or combine entries", ErrInvalid, path)
	}
	return &p, nil
}

// Load returns the file plan when path is set, else Default.
func Load(path string) (*Plan, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// Kinds are checked while decoding (schema.Kind.UnmarshalText); required
// catches entries that leave kind out.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field presence and kinds, that no two conversions write the
// same table, and that no merge overwrites one of its own inputs.
func (p *Plan) Validate(cfg *config.Config) error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	seen := make(map[string]int, len(p.Convert))
	for i, c := range p.Convert {
		dst := filepath.Clean(cfg.ProcessedPath(c.Destination))
		if j, ok := seen[dst]; ok {
			return fmt.Errorf("%w: convert[%d] and convert[%d] both write %s", ErrInvalid, j, i, dst)
		}
		seen[dst] = i
	}
	for i, c := range p.Combine {
		out := filepath.Clean(cfg.CombinedPath(c.Output))
		if out == filepath.Clean(cfg.ProcessedPath(c.First)) || out == filepath.Clean(cfg.ProcessedPath(c.Second)) {
			return fmt.Errorf("%w: combine[%d] output %s is also one of its inputs", ErrInvalid, i, out)
		}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Namespace() + " is required"
	case "unique":
		return fmt.Sprintf("%s: duplicate %s", fe.Namespace(), strings.ToLower(fe.Param()))
	}
	return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
}

// Jobs turns the convert entries into executor jobs. Call Validate first.
func (p *Plan) Jobs() []convert.Job {
	out := make([]convert.Job, 0, len(p.Convert))
	for _, c := range p.Convert {
		out = append(out, convert.Job{Name: c.Name, Source: c.Source, Destination: c.Destination, Kind: c.Kind})
	}
	return out
}

// Pairs turns the combine entries into merge pairs. Call Validate first.
func (p *Plan) Pairs() []merge.Pair {
	out := make([]merge.Pair, 0, len(p.Combine))
	for _, c := range p.Combine {
		out = append(out, merge.Pair{Name: c.Name, First: c.First, Second: c.Second, Output: c.Output, Kind: c.Kind})
	}
	return out
}
