package bond

import (
	"fmt"

	"github.com/xraph/bond/source"
)

// Kind selects the ledger an item's readings go to.
type Kind string

const (
	// Production readings come from generating assets.
	Production Kind = "production"
	// Consumption readings come from loads.
	Consumption Kind = "consumption"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == Production || k == Consumption
}

// Ledger returns the name of the ledger that stores readings of kind k.
func (k Kind) Ledger() string { return string(k) }

// Category selects the wake events an item takes part in.
type Category string

const (
	// Hourly items run on every wake event.
	Hourly Category = "hourly"
	// Daily items run only on the full daily cycle.
	Daily Category = "daily"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == Hourly || c == Daily
}

// Item is one configured meter: where readings come from, which ledger
// they go to, and which origin they are minted under remotely.
type Item struct {
	Name     string
	Kind     Kind
	Category Category
	Origin   string
	Source   source.Source
}

// Validate checks the item's configuration.
func (i Item) Validate() error {
	switch {
	case i.Name == "":
		return fmt.Errorf("%w: missing name", ErrInvalidItem)
	case !i.Kind.Valid():
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidItem, i.Name, i.Kind)
	case !i.Category.Valid():
		return fmt.Errorf("%w: %s: unknown category %q", ErrInvalidItem, i.Name, i.Category)
	case i.Origin == "":
		return fmt.Errorf("%w: %s: missing origin", ErrInvalidItem, i.Name)
	case i.Source == nil:
		return fmt.Errorf("%w: %s", ErrNoSource, i.Name)
	}
	return nil
}

// inCategories reports whether the item is selected by cats. An empty
// selector selects everything.
func (i Item) inCategories(cats []Category) bool {
	if len(cats) == 0 {
		return true
	}
	for _, c := range cats {
		if c == i.Category {
			return true
		}
	}
	return false
}
