package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jsamuelsen/quotes-api/internal/domain"
	"github.com/jsamuelsen/quotes-api/internal/ports"
)

// SeedQuote is one entry of a seed set.
type SeedQuote struct {
	Author string `yaml:"author"`
	Text   string `yaml:"text"`
}

// DefaultSeed returns the built-in seed set. Inserted into an empty store
// they receive ids 1, 2 and 3 in this order.
func DefaultSeed() []SeedQuote {
	return []SeedQuote{
		{Author: "Dennis Gabor", Text: "Det bästa sättet att förutspå framtiden är genom att skapa den."},
		{Author: "Mahatma Gandhi", Text: "Var den förändring du vill se i världen."},
		{Author: "Pablo Picasso", Text: "Allt du kan föreställa dig är verkligt."},
	}
}

// seedFile is the YAML layout read by LoadSeedFile:
//
//	quotes:
//	  - author: Dennis Gabor
//	    text: Det bästa sättet ...
type seedFile struct {
	Quotes []SeedQuote `yaml:"quotes"`
}

// LoadSeedFile reads a seed set from a YAML file. Every entry must have a
// non-blank author and text.
func LoadSeedFile(path string) ([]SeedQuote, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file %s: %w", path, err)
	}

	for i, q := range f.Quotes {
		if err := domain.ValidateQuoteFields(q.Author, q.Text); err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i+1, err)
		}
	}

	return f.Quotes, nil
}

// Seed inserts quotes in order into an empty store and returns how many
// were inserted. A store that already holds records is left untouched, so
// calling Seed twice never duplicates the set.
func Seed(ctx context.Context, repo ports.QuoteRepository, quotes []SeedQuote, logger *slog.Logger) (int, error) {
	n, err := repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting quotes: %w", err)
	}

	if n > 0 {
		logger.InfoContext(ctx, "store already populated, skipping seed", slog.Int("existing", n))
		return 0, nil
	}

	for i, q := range quotes {
		if _, err := repo.Insert(ctx, q.Author, q.Text); err != nil {
			return i, fmt.Errorf("seeding quote %d: %w", i+1, err)
		}
	}

	logger.InfoContext(ctx, "store seeded", slog.Int("quotes", len(quotes)))

	return len(quotes), nil
}
