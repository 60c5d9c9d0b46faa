// Package geo provides bounding box and WKT geometry helpers.
package geo

import (
	"fmt"
	"strconv"
	"strings"
)

// BBox is an axis-aligned bounding box in WGS84 degrees.
type BBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// Valid reports whether the box is non-degenerate (min < max on both axes).
func (b BBox) Valid() bool {
	return b.MinLon < b.MaxLon && b.MinLat < b.MaxLat
}

// Center returns the center point of the box.
func (b BBox) Center() (lat, lon float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// WKT renders the box as a closed WKT polygon, counter-clockwise.
func (b BBox) WKT() string {
	return fmt.Sprintf("POLYGON((%g %g, %g %g, %g %g, %g %g, %g %g))",
		b.MinLon, b.MinLat,
		b.MaxLon, b.MinLat,
		b.MaxLon, b.MaxLat,
		b.MinLon, b.MaxLat,
		b.MinLon, b.MinLat)
}

// String renders the box as "minLon,minLat,maxLon,maxLat".
func (b BBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// ParseBBox parses the "minLon,minLat,maxLon,maxLat" form produced by String.
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, &GeometryError{Input: s, Reason: "expected 4 comma-separated values"}
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, &GeometryError{Input: s, Reason: "invalid coordinate: " + p}
		}
		vals[i] = v
	}
	return BBox{MinLon: vals[0], MinLat: vals[1], MaxLon: vals[2], MaxLat: vals[3]}, nil
}

// BoundingBoxAround returns a square box centered on a point, extending
// halfWidthDegrees in each direction.
func BoundingBoxAround(lat, lon, halfWidthDegrees float64) BBox {
	return BBox{
		MinLon: lon - halfWidthDegrees,
		MinLat: lat - halfWidthDegrees,
		MaxLon: lon + halfWidthDegrees,
		MaxLat: lat + halfWidthDegrees,
	}
}

// DefaultPointHalfWidth is the half-width in degrees of the box a bare
// WKT POINT expands to.
const DefaultPointHalfWidth = 0.05

// ParseGeometry parses a WKT POLYGON or POINT and returns its bounding
// envelope; a POINT expands to a DefaultPointHalfWidth box around itself.
// Malformed or degenerate input returns a *GeometryError; callers treat this
// as non-fatal for the zone in question.
func ParseGeometry(wkt string) (BBox, error) {
	trimmed := strings.TrimSpace(wkt)
	upper := strings.ToUpper(trimmed)
	if strings.HasPrefix(upper, "POINT") {
		return parsePoint(trimmed)
	}
	if !strings.HasPrefix(upper, "POLYGON") {
		return BBox{}, &GeometryError{Input: wkt, Reason: "only POINT and POLYGON geometries are supported"}
	}

	open := strings.Index(trimmed, "((")
	end := strings.LastIndex(trimmed, "))")
	if open == -1 || end == -1 || end <= open {
		return BBox{}, &GeometryError{Input: wkt, Reason: "malformed polygon body"}
	}

	// Outer ring only; interior rings cannot extend the envelope.
	body := trimmed[open+2 : end]
	if idx := strings.Index(body, ")"); idx != -1 {
		body = body[:idx]
	}

	var box BBox
	first := true
	for _, pair := range strings.Split(body, ",") {
		fields := strings.Fields(strings.TrimSpace(pair))
		if len(fields) != 2 {
			return BBox{}, &GeometryError{Input: wkt, Reason: "malformed coordinate pair: " + pair}
		}
		lon, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return BBox{}, &GeometryError{Input: wkt, Reason: "invalid longitude: " + fields[0]}
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return BBox{}, &GeometryError{Input: wkt, Reason: "invalid latitude: " + fields[1]}
		}

		if first {
			box = BBox{MinLon: lon, MinLat: lat, MaxLon: lon, MaxLat: lat}
			first = false
			continue
		}
		if lon < box.MinLon {
			box.MinLon = lon
		}
		if lon > box.MaxLon {
			box.MaxLon = lon
		}
		if lat < box.MinLat {
			box.MinLat = lat
		}
		if lat > box.MaxLat {
			box.MaxLat = lat
		}
	}

	if first {
		return BBox{}, &GeometryError{Input: wkt, Reason: "empty polygon"}
	}
	if !box.Valid() {
		return BBox{}, &GeometryError{Input: wkt, Reason: "degenerate bounding box"}
	}
	return box, nil
}

func parsePoint(wkt string) (BBox, error) {
	open := strings.Index(wkt, "(")
	end := strings.LastIndex(wkt, ")")
	if open == -1 || end == -1 || end <= open {
		return BBox{}, &GeometryError{Input: wkt, Reason: "malformed point body"}
	}

	fields := strings.Fields(strings.TrimSpace(wkt[open+1 : end]))
	if len(fields) != 2 {
		return BBox{}, &GeometryError{Input: wkt, Reason: "expected two point coordinates"}
	}
	lon, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return BBox{}, &GeometryError{Input: wkt, Reason: "invalid longitude: " + fields[0]}
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return BBox{}, &GeometryError{Input: wkt, Reason: "invalid latitude: " + fields[1]}
	}
	return BoundingBoxAround(lat, lon, DefaultPointHalfWidth), nil
}

// GeometryError reports unusable geometry input.
type GeometryError struct {
	Input  string
	Reason string
}

func (e *GeometryError) Error() string {
	return "invalid geometry: " + e.Reason
}

// IsGeometryError checks if an error is a geometry error.
func IsGeometryError(err error) bool {
	_, ok := err.(*GeometryError)
	return ok
}
