package index

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"gitlab.com/yelinaung/lease-engine/internal/models"
	"gitlab.com/yelinaung/lease-engine/internal/repository"
)

// SeriesFile is a static series, for example:
//
//	series: IRL
//	values:
//	  - {year: 2024, quarter: 1, value: "143.46"}
type SeriesFile struct {
	Series string      `yaml:"series"`
	Values []SeedValue `yaml:"values"`
}

// SeedValue is one entry of a SeriesFile. Value is kept as text so that no
// precision is lost through floating point.
type SeedValue struct {
	Year    int    `yaml:"year"`
	Quarter int    `yaml:"quarter"`
	Value   string `yaml:"value"`
}

// LoadSeriesFile reads and validates a YAML series file.
func LoadSeriesFile(path string) (*SeriesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read series file: %w", err)
	}
	return ParseSeries(data)
}

// ParseSeries parses YAML series data.
func ParseSeries(data []byte) (*SeriesFile, error) {
	var f SeriesFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse series file: %w", err)
	}
	f.Series = strings.ToUpper(strings.TrimSpace(f.Series))
	if f.Series == "" {
		return nil, fmt.Errorf("series file has no series name")
	}
	if _, err := f.Points(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Points converts the file values.
func (f *SeriesFile) Points() ([]models.IndexPoint, error) {
	points := make([]models.IndexPoint, 0, len(f.Values))
	for _, v := range f.Values {
		value, err := decimal.NewFromString(strings.TrimSpace(v.Value))
		if err != nil {
			return nil, fmt.Errorf("invalid value %q for %d-Q%d: %w", v.Value, v.Year, v.Quarter, err)
		}
		p := models.IndexPoint{Year: v.Year, Quarter: v.Quarter, Value: value}
		if err := validatePoint(p); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// Load upserts the file values into store and returns how many were written.
func (f *SeriesFile) Load(ctx context.Context, store repository.IndexStore) (int, error) {
	points, err := f.Points()
	if err != nil {
		return 0, err
	}
	for _, p := range points {
		if err := store.Upsert(ctx, f.Series, p); err != nil {
			return 0, err
		}
	}
	return len(points), nil
}
