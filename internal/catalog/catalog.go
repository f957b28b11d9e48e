// Package catalog holds the credit packages users can buy. Prices never come
// from the client; orders reference a package id.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed packages.yaml
var defaultPackages []byte

// ErrUnknownPackage is returned by Lookup for an id not in the catalogue.
var ErrUnknownPackage = errors.New("unknown package")

type Package struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
	Credits int             `json:"credits"`
}

type Catalog struct {
	packages []Package
	byID     map[string]Package
}

// Load reads the catalogue from path, or the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultPackages
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read catalog %q: %w", path, err)
		}
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalogue.
func Parse(data []byte) (*Catalog, error) {
	var file struct {
		Packages []struct {
			ID      string `yaml:"id"`
			Name    string `yaml:"name"`
			Amount  string `yaml:"amount"`
			Credits int    `yaml:"credits"`
		} `yaml:"packages"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.Packages) == 0 {
		return nil, errors.New("catalog has no packages")
	}
	c := &Catalog{byID: make(map[string]Package, len(file.Packages))}
	for _, p := range file.Packages {
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			return nil, fmt.Errorf("package %q: amount %q: %w", p.ID, p.Amount, err)
		}
		if p.ID == "" || !amount.IsPositive() || p.Credits <= 0 {
			return nil, fmt.Errorf("package %q: id, positive amount and credits are required", p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("package %q defined twice", p.ID)
		}
		pkg := Package{ID: p.ID, Name: p.Name, Amount: amount.Round(2), Credits: p.Credits}
		c.packages = append(c.packages, pkg)
		c.byID[p.ID] = pkg
	}
	return c, nil
}

func (c *Catalog) Lookup(id string) (Package, error) {
	p, ok := c.byID[id]
	if !ok {
		return Package{}, fmt.Errorf("%w: %q", ErrUnknownPackage, id)
	}
	return p, nil
}

// List returns packages in catalogue order.
func (c *Catalog) List() []Package {
	out := make([]Package, len(c.packages))
	copy(out, c.packages)
	return out
}
