// Package geocell quantizes raw coordinates into H3 cell indexes so
// stored location proofs never carry exact positions.
package geocell

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"

	"gnsd/internal/domain"
)

// H3Quantizer maps latitude/longitude pairs onto Uber H3 cells.
type H3Quantizer struct{}

var _ domain.CellQuantizer = (*H3Quantizer)(nil)

func NewH3Quantizer() *H3Quantizer {
	return &H3Quantizer{}
}

// CellIndex returns the lowercase hex H3 index for the cell containing
// the given point at the given resolution.
func (q *H3Quantizer) CellIndex(lat, lng float64, resolution uint8) (string, error) {
	if resolution < domain.MinCellResolution || resolution > domain.MaxCellResolution {
		return "", &domain.ValidationError{
			Field:  "resolution",
			Reason: fmt.Sprintf("must be between %d and %d", domain.MinCellResolution, domain.MaxCellResolution),
		}
	}
	if lat < -90 || lat > 90 {
		return "", &domain.ValidationError{Field: "latitude", Reason: "must be between -90 and 90"}
	}
	if lng < -180 || lng > 180 {
		return "", &domain.ValidationError{Field: "longitude", Reason: "must be between -180 and 180"}
	}

	cell := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lng}, int(resolution))
	if !cell.IsValid() {
		return "", &domain.ValidationError{Field: "cell", Reason: "coordinates produced an invalid cell"}
	}
	return cell.String(), nil
}

// Resolution reports the resolution embedded in an H3 index, or an
// error if the index does not parse as a valid cell.
func Resolution(index string) (uint8, error) {
	cell := h3.Cell(h3.IndexFromString(index))
	if !cell.IsValid() {
		return 0, &domain.ValidationError{Field: "cell", Reason: "not a valid H3 index"}
	}
	return uint8(cell.Resolution()), nil
}
