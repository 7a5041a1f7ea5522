// Package catalog reads collectible definitions from YAML or TOML files.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/waste3d/cardvault-api/internal/domain"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFormat = errors.New("unsupported catalog format")

type file struct {
	Cards []entry `yaml:"cards" toml:"cards"`
}

type entry struct {
	Code         string            `yaml:"code" toml:"code"`
	Name         string            `yaml:"name" toml:"name"`
	Description  string            `yaml:"description" toml:"description"`
	ImageURL     string            `yaml:"image_url" toml:"image_url"`
	Series       string            `yaml:"series" toml:"series"`
	SeriesNumber int               `yaml:"series_number" toml:"series_number"`
	Rarity       domain.Rarity     `yaml:"rarity" toml:"rarity"`
	IsActive     *bool             `yaml:"is_active" toml:"is_active"`
	MaxSupply    *int              `yaml:"max_supply" toml:"max_supply"`
	Trigger      domain.TriggerDef `yaml:"discovery_trigger" toml:"discovery_trigger"`
}

// Load reads path by extension (.yaml, .yml or .toml) and validates every
// entry. One bad entry fails the whole file.
func Load(path string) ([]domain.Collectible, error) {
	var f file
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse yaml catalog: %w", err)
		}
	case ".toml":
		if _, err := toml.DecodeFile(path, &f); err != nil {
			return nil, fmt.Errorf("parse toml catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	return build(f.Cards)
}

func build(entries []entry) ([]domain.Collectible, error) {
	seen := make(map[string]struct{}, len(entries))
	out := make([]domain.Collectible, 0, len(entries))

	for i, e := range entries {
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("card #%d (%s): %w", i+1, e.Code, err)
		}
		if _, dup := seen[e.Code]; dup {
			return nil, fmt.Errorf("card #%d: duplicate code %q", i+1, e.Code)
		}
		seen[e.Code] = struct{}{}

		active := true
		if e.IsActive != nil {
			active = *e.IsActive
		}
		out = append(out, domain.Collectible{
			Code:         e.Code,
			Name:         e.Name,
			Description:  e.Description,
			ImageURL:     e.ImageURL,
			Series:       e.Series,
			SeriesNumber: e.SeriesNumber,
			Rarity:       e.Rarity,
			IsActive:     active,
			MaxSupply:    e.MaxSupply,
			Trigger:      e.Trigger,
		})
	}

	domain.SortCatalog(out)
	return out, nil
}

func (e entry) validate() error {
	switch {
	case e.Code == "":
		return errors.New("code is required")
	case e.Name == "":
		return errors.New("name is required")
	case e.Series == "":
		return errors.New("series is required")
	case !e.Rarity.Valid():
		return fmt.Errorf("unknown rarity %q", e.Rarity)
	case e.MaxSupply != nil && *e.MaxSupply < 1:
		return errors.New("max_supply must be positive when set")
	}
	if _, err := domain.ParseTrigger(e.Trigger); err != nil {
		return err
	}
	return nil
}
