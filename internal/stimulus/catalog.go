package stimulus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"randomizer/internal/logging"

	"go.uber.org/zap"
)

// Catalog is the set of stimuli available to an experiment, partitioned by
// orientation. Order within each partition follows the input order.
type Catalog struct {
	Uniform []Object
	Left    []Object
	Right   []Object
}

// NewCatalog partitions already-parsed objects.
func NewCatalog(objects []Object) Catalog {
	var c Catalog
	for _, obj := range objects {
		switch obj.Orientation {
		case OrientationLeft:
			c.Left = append(c.Left, obj)
		case OrientationRight:
			c.Right = append(c.Right, obj)
		default:
			c.Uniform = append(c.Uniform, obj)
		}
	}
	return c
}

// ParseCatalog parses every identifier and partitions the result. The first
// malformed identifier aborts the load.
func ParseCatalog(identifiers []string) (Catalog, error) {
	objects := make([]Object, 0, len(identifiers))
	for _, id := range identifiers {
		obj, err := Parse(id)
		if err != nil {
			return Catalog{}, err
		}
		objects = append(objects, obj)
	}
	return NewCatalog(objects), nil
}

// Len returns the total number of objects in the catalog.
func (c Catalog) Len() int {
	return len(c.Uniform) + len(c.Left) + len(c.Right)
}

// PerRound returns the number of stimuli presented each round.
func (c Catalog) PerRound() int {
	return len(c.Uniform) + len(c.Left)
}

// LoadCatalog reads a delimited stimulus table. The first row is a header;
// the first field of every following row is an identifier.
func LoadCatalog(r io.Reader) (Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var identifiers []string
	for line := 0; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Catalog{}, fmt.Errorf("failed to read stimulus table: %w", err)
		}
		if line == 0 {
			continue
		}
		id := strings.TrimSpace(row[0])
		if id == "" {
			return Catalog{}, fmt.Errorf("%w: empty identifier on row %d", ErrMalformedIdentifier, line+1)
		}
		identifiers = append(identifiers, id)
	}

	catalog, err := ParseCatalog(identifiers)
	if err != nil {
		return Catalog{}, err
	}

	logging.Get(logging.CategoryCatalog).Debug("catalog loaded",
		zap.Int("uniform", len(catalog.Uniform)),
		zap.Int("left", len(catalog.Left)),
		zap.Int("right", len(catalog.Right)))
	return catalog, nil
}

// LoadCatalogFile opens path and calls LoadCatalog.
func LoadCatalogFile(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to open stimulus table: %w", err)
	}
	defer f.Close()

	catalog, err := LoadCatalog(f)
	if err != nil {
		return Catalog{}, fmt.Errorf("%s: %w", path, err)
	}
	return catalog, nil
}
