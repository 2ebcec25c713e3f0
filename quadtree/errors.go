package quadtree

import "github.com/aukilabs/go-tooling/pkg/errors"

// MaxDimension is the largest width or height of a tree, in cells.
const MaxDimension = 1024

const (
	// The error type returned when a tree is requested with a width or a
	// height lower than 1 or greater than MaxDimension.
	ErrTypeInvalidDimensions = "quadtree_invalid_dimensions"

	// The error type returned when a node rectangle is inverted or out of the
	// map while building a tree.
	ErrTypeInvalidGeometry = "quadtree_invalid_geometry"
)

// CheckDimensions returns an ErrTypeInvalidDimensions error when a width x
// height grid cannot be indexed.
func CheckDimensions(width, height int) error {
	if width < 1 || height < 1 || width > MaxDimension || height > MaxDimension {
		return errors.New("invalid dimensions").
			WithType(ErrTypeInvalidDimensions).
			WithTag("width", width).
			WithTag("height", height).
			WithTag("max", MaxDimension)
	}
	return nil
}
