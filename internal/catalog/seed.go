package catalog

import (
	"context"
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/example/yachay/pkg/models"
)

//go:embed seed.yaml
var seedYAML []byte

type seedFile struct {
	Translations []struct {
		Label   string `yaml:"label"`
		Spanish string `yaml:"spanish"`
		Quechua string `yaml:"quechua"`
	} `yaml:"translations"`
}

// SeedTranslations returns the embedded starter catalog
func SeedTranslations() ([]models.Translation, error) {
	var f seedFile
	if err := yaml.Unmarshal(seedYAML, &f); err != nil {
		return nil, eris.Wrap(err, "catalog: parse seed")
	}
	out := make([]models.Translation, 0, len(f.Translations))
	for _, t := range f.Translations {
		out = append(out, models.Translation{Label: t.Label, Spanish: t.Spanish, Quechua: t.Quechua})
	}
	return out, nil
}

// Seed loads the starter catalog, returning how many labels were new
func (c *Catalog) Seed(ctx context.Context) (int, error) {
	ts, err := SeedTranslations()
	if err != nil {
		return 0, err
	}
	created := 0
	for i := range ts {
		isNew, err := c.Save(ctx, &ts[i])
		if err != nil {
			return created, err
		}
		if isNew {
			created++
		}
	}
	return created, nil
}
