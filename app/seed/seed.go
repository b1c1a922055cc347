// Package seed loads sample postings and puts them into an empty store on startup.
// Samples are kept as YAML, the embedded set is used unless a custom file is provided.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/go-pkgz/lgr"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/umputun/jobboard/app/web/persistence"
	"github.com/umputun/jobboard/app/web/request"
)

//go:embed postings.yml
var embeddedPostings []byte

// File is the layout of a seed file
type File struct {
	Postings []Posting `yaml:"postings" json:"postings" jsonschema:"required,minItems=1,description=sample postings"`
}

// Posting is a single posting in the seed file, every field is required
type Posting struct {
	Title        string `yaml:"title" json:"title" jsonschema:"required,minLength=1"`
	Company      string `yaml:"company" json:"company" jsonschema:"required,minLength=1"`
	Location     string `yaml:"location" json:"location" jsonschema:"required,minLength=1"`
	JobType      string `yaml:"job_type" json:"job_type" jsonschema:"required,enum=Full-time,enum=Part-time,enum=Contract,enum=Remote"`
	Description  string `yaml:"description" json:"description" jsonschema:"required,minLength=1"`
	Requirements string `yaml:"requirements" json:"requirements" jsonschema:"required,minLength=1"`
	SalaryRange  string `yaml:"salary_range" json:"salary_range" jsonschema:"required,minLength=1"`
	HowToApply   string `yaml:"how_to_apply" json:"how_to_apply" jsonschema:"required,minLength=1"`
}

// Store is the subset of persistence used for seeding
type Store interface {
	SeedIfEmpty(ctx context.Context, postings []persistence.Posting) (int, error)
}

// Default returns embedded sample postings
func Default() ([]persistence.Posting, error) {
	return Load(bytes.NewReader(embeddedPostings))
}

// LoadFile reads seed postings from a yaml file
func LoadFile(path string) ([]persistence.Posting, error) {
	fh, err := os.Open(path) //nolint:gosec // path comes from cli options
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer fh.Close()

	res, err := Load(fh)
	if err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	return res, nil
}

// Load decodes and validates seed postings from yaml. Unknown fields are rejected.
func Load(r io.Reader) ([]persistence.Posting, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no postings defined")
		}
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	if len(f.Postings) == 0 {
		return nil, errors.New("no postings defined")
	}

	res := make([]persistence.Posting, 0, len(f.Postings))
	for i, p := range f.Postings {
		np := request.NewPosting{
			Title:        p.Title,
			Company:      p.Company,
			Location:     p.Location,
			JobType:      p.JobType,
			Description:  p.Description,
			Requirements: p.Requirements,
			SalaryRange:  p.SalaryRange,
			HowToApply:   p.HowToApply,
		}
		jobType, err := np.Validate()
		if err != nil {
			return nil, fmt.Errorf("posting %d: %w", i+1, err)
		}
		res = append(res, persistence.Posting{
			Title:        np.Title,
			Company:      np.Company,
			Location:     np.Location,
			JobType:      jobType,
			Description:  np.Description,
			Requirements: np.Requirements,
			SalaryRange:  np.SalaryRange,
			HowToApply:   np.HowToApply,
		})
	}
	return res, nil
}

// Apply puts postings into the store if it's empty and returns the number inserted
func Apply(ctx context.Context, store Store, postings []persistence.Posting) (int, error) {
	n, err := store.SeedIfEmpty(ctx, postings)
	if err != nil {
		return 0, fmt.Errorf("failed to seed store: %w", err)
	}
	if n == 0 {
		log.Printf("[DEBUG] store not empty, seeding skipped")
		return 0, nil
	}
	log.Printf("[INFO] seeded %d postings", n)
	return n, nil
}

// GenerateSchema returns json schema of the seed file
func GenerateSchema() *jsonschema.Schema {
	schema := jsonschema.Reflect(&File{})
	schema.Title = "Jobboard Seed File Schema"
	schema.Description = "Schema for sample postings loaded into an empty store"
	return schema
}
