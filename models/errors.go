package models

const (
	// The error type returned when an edit targets a corner or a cell outside
	// of the map.
	ErrTypeOutOfMap = "out_of_map"

	// The error type returned when a unit id is unknown.
	ErrTypeUnitNotFound = "unit_not_found"

	// The error type returned when a unit has no surface.
	ErrTypeInvalidUnit = "invalid_unit"

	// The error type returned when a texture index is out of range or when
	// textures and alphas do not match.
	ErrTypeInvalidTexture = "invalid_texture"
)
