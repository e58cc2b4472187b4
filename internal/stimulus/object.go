// Package stimulus parses novel-object image identifiers into canonical
// object descriptors and loads the stimulus catalog for an experiment.
//
// Identifiers look like "img/RedGreen_12in_3.9_left.JPG" (non-uniform) or
// "img/UniformGrey_12in.JPG" (uniform). The directory and extension are
// ignored, the "12in" size token is discarded, and the remaining fields are
// the color name, the weight ratio and the orientation.
package stimulus

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"unicode"
)

// ErrMalformedIdentifier is returned when an identifier does not follow the
// stimulus naming grammar.
var ErrMalformedIdentifier = errors.New("malformed stimulus identifier")

// Orientation of a non-uniform object as photographed.
type Orientation string

const (
	OrientationNone  Orientation = ""
	OrientationLeft  Orientation = "left"
	OrientationRight Orientation = "right"
)

const (
	sizeToken     = "12in"
	uniformPrefix = "Uniform"
	fieldSep      = "_"
	ratioSep      = "."
)

// Colors is either a single color (uniform object) or an ordered left/right
// pair. Second is empty for uniform objects.
type Colors struct {
	First  string
	Second string
}

// Uniform reports whether the colors describe a single-color object.
func (c Colors) Uniform() bool {
	return c.Second == ""
}

func (c Colors) String() string {
	if c.Uniform() {
		return c.First
	}
	return c.First + "/" + c.Second
}

// Ratio is the weight split of a non-uniform object, e.g. {"3/9", "6/9"}.
// The zero value means "no ratio" (uniform object).
type Ratio struct {
	Left  string
	Right string
}

// Empty reports whether the ratio is unset.
func (r Ratio) Empty() bool {
	return r == Ratio{}
}

// Object is the canonical, immutable descriptor of one stimulus.
type Object struct {
	Identifier  string
	Colors      Colors
	Ratio       Ratio
	Orientation Orientation
}

// Uniform reports whether the object has a single color and no split.
func (o Object) Uniform() bool {
	return o.Orientation == OrientationNone
}

// EssentiallyEqual reports whether o and other are the same physical object,
// possibly flipped: same colors and same ratio, regardless of identifier and
// orientation.
func (o Object) EssentiallyEqual(other Object) bool {
	return o.Colors == other.Colors && o.Ratio == other.Ratio
}

// Labels returns the per-side labels of the object as seen by the
// experimenter. Uniform objects have a single "Uniform <color>" label;
// right-oriented objects list the right side first.
func (o Object) Labels() []string {
	if o.Uniform() {
		return []string{uniformPrefix + " " + o.Colors.First}
	}
	labels := []string{
		o.Ratio.Left + " " + o.Colors.First,
		o.Ratio.Right + " " + o.Colors.Second,
	}
	if o.Orientation == OrientationRight {
		labels[0], labels[1] = labels[1], labels[0]
	}
	return labels
}

// Info joins Labels into the single object-info string written to trial records.
func (o Object) Info() string {
	return strings.Join(o.Labels(), " ")
}

// Parse converts an identifier into an Object.
func Parse(identifier string) (Object, error) {
	// Catalogs written on Windows use backslash separators.
	base := path.Base(strings.ReplaceAll(identifier, `\`, "/"))
	if ext := path.Ext(base); !strings.Contains(ext, fieldSep) {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." || base == "/" {
		return Object{}, fmt.Errorf("%w: %q has no file name", ErrMalformedIdentifier, identifier)
	}

	fields := discardSizeToken(strings.Split(base, fieldSep))

	switch len(fields) {
	case 1:
		colors := splitColor(fields[0])
		if !colors.Uniform() {
			return Object{}, fmt.Errorf("%w: %q names two colors but has no ratio or orientation", ErrMalformedIdentifier, identifier)
		}
		return Object{Identifier: identifier, Colors: colors}, nil

	case 3:
		colors := splitColor(fields[0])
		if colors.Uniform() {
			return Object{}, fmt.Errorf("%w: %q is uniform but carries a ratio", ErrMalformedIdentifier, identifier)
		}
		if colors.First == colors.Second {
			return Object{}, fmt.Errorf("%w: %q repeats color %q", ErrMalformedIdentifier, identifier, colors.First)
		}
		ratio, err := parseRatio(fields[1])
		if err != nil {
			return Object{}, fmt.Errorf("%w: %q: %v", ErrMalformedIdentifier, identifier, err)
		}
		orientation := Orientation(fields[2])
		if orientation != OrientationLeft && orientation != OrientationRight {
			return Object{}, fmt.Errorf("%w: %q has orientation %q", ErrMalformedIdentifier, identifier, fields[2])
		}
		return Object{
			Identifier:  identifier,
			Colors:      colors,
			Ratio:       ratio,
			Orientation: orientation,
		}, nil

	default:
		return Object{}, fmt.Errorf("%w: %q has %d fields", ErrMalformedIdentifier, identifier, len(fields))
	}
}

// discardSizeToken removes the first size token, if any.
func discardSizeToken(fields []string) []string {
	for i, f := range fields {
		if f == sizeToken {
			return append(fields[:i:i], fields[i+1:]...)
		}
	}
	return fields
}

// splitColor breaks "FirstSecond" at the second uppercase letter. A leading
// "Uniform" token or an empty trailing token yields a uniform color.
func splitColor(name string) Colors {
	split := len(name)
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) {
			split = i
			break
		}
	}
	first, second := name[:split], name[split:]
	if first == uniformPrefix && second != "" {
		return Colors{First: second}
	}
	return Colors{First: first, Second: second}
}

// parseRatio turns "A.B" into {"A/B", "(B-A)/B"}.
func parseRatio(field string) (Ratio, error) {
	parts := strings.Split(field, ratioSep)
	if len(parts) != 2 {
		return Ratio{}, fmt.Errorf("ratio %q is not of the form A.B", field)
	}
	r1, err := strconv.Atoi(parts[0])
	if err != nil {
		return Ratio{}, fmt.Errorf("ratio numerator %q: %w", parts[0], err)
	}
	r2, err := strconv.Atoi(parts[1])
	if err != nil {
		return Ratio{}, fmt.Errorf("ratio denominator %q: %w", parts[1], err)
	}
	return Ratio{
		Left:  fmt.Sprintf("%d/%d", r1, r2),
		Right: fmt.Sprintf("%d/%d", r2-r1, r2),
	}, nil
}
