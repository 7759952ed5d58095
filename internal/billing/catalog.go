package billing

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type Product struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Plan     string `yaml:"plan" json:"plan"`
	PriceEnv string `yaml:"price_env" json:"-"`
	PriceID  string `yaml:"price_id" json:"-"`
}

type Feature struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	Metered    bool   `yaml:"metered" json:"metered"`
	ProOnly    bool   `yaml:"pro_only" json:"proOnly"`
	MeterEvent string `yaml:"meter_event" json:"-"`
}

type Catalog struct {
	Products []Product `yaml:"products"`
	Features []Feature `yaml:"features"`
}

// LoadCatalog parses the embedded catalog and resolves price ids from the
// environment.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := map[string]bool{}
	for i := range c.Products {
		p := &c.Products[i]
		if p.ID == "" || seen["p:"+p.ID] {
			return nil, fmt.Errorf("catalog: missing or duplicate product id %q", p.ID)
		}
		seen["p:"+p.ID] = true
		if p.PriceID == "" && p.PriceEnv != "" {
			p.PriceID = os.Getenv(p.PriceEnv)
		}
	}
	for _, f := range c.Features {
		if f.ID == "" || seen["f:"+f.ID] {
			return nil, fmt.Errorf("catalog: missing or duplicate feature id %q", f.ID)
		}
		seen["f:"+f.ID] = true
	}
	return &c, nil
}

func (c *Catalog) Product(id string) (*Product, bool) {
	for i := range c.Products {
		if c.Products[i].ID == id {
			return &c.Products[i], true
		}
	}
	return nil, false
}

func (c *Catalog) Feature(id string) (*Feature, bool) {
	for i := range c.Features {
		if c.Features[i].ID == id {
			return &c.Features[i], true
		}
	}
	return nil, false
}
