package value

import (
	"fmt"
	"math"
)

// CRS names the coordinate reference system tag a Point carries, matching
// openCypher's four built-in CRS values.
type CRS int

const (
	CRSCartesian CRS = iota
	CRSCartesian3D
	CRSWGS84
	CRSWGS843D
)

func (c CRS) String() string {
	switch c {
	case CRSCartesian:
		return "cartesian"
	case CRSCartesian3D:
		return "cartesian-3d"
	case CRSWGS84:
		return "wgs-84"
	case CRSWGS843D:
		return "wgs-84-3d"
	default:
		return "unknown"
	}
}

// Point is a 2D/3D Cartesian or geographic coordinate, per spec.md §3.2.
type Point struct {
	X, Y, Z float64
	Is3D    bool
	CRS     CRS
}

func (p Point) Equal(o Point) bool {
	return p.X == o.X && p.Y == o.Y && p.Z == o.Z && p.Is3D == o.Is3D && p.CRS == o.CRS
}

func (p Point) String() string {
	if p.Is3D {
		return fmt.Sprintf("point({x: %v, y: %v, z: %v, crs: '%s'})", p.X, p.Y, p.Z, p.CRS)
	}
	return fmt.Sprintf("point({x: %v, y: %v, crs: '%s'})", p.X, p.Y, p.CRS)
}

// NewPointFromMap constructs a Point per spec.md §4.5.2: `{x,y[,z]}` for
// Cartesian points or `{latitude,longitude[,height]}` for geographic ones.
// A crs key is not read; the CRS follows from which keys are present.
// Out-of-range geographic coordinates are reported as an error.
func NewPointFromMap(get func(string) (Value, bool)) (Point, error) {
	if lat, ok := get("latitude"); ok {
		lon, _ := get("longitude")
		if !lat.IsNumeric() || !lon.IsNumeric() {
			return Point{}, fmt.Errorf("point: latitude/longitude must be numeric")
		}
		latF, lonF := lat.AsFloat64(), lon.AsFloat64()
		if latF < -90 || latF > 90 {
			return Point{}, fmt.Errorf("point: latitude %v out of range [-90, 90]", latF)
		}
		if lonF < -180 || lonF > 180 {
			return Point{}, fmt.Errorf("point: longitude %v out of range [-180, 180]", lonF)
		}
		p := Point{X: lonF, Y: latF, CRS: CRSWGS84}
		if z, ok := get("height"); ok && z.IsNumeric() {
			p.Z = z.AsFloat64()
			p.Is3D = true
			p.CRS = CRSWGS843D
		}
		return p, nil
	}
	x, xok := get("x")
	y, yok := get("y")
	if !xok || !yok || !x.IsNumeric() || !y.IsNumeric() {
		return Point{}, fmt.Errorf("point: x and y are required and must be numeric")
	}
	p := Point{X: x.AsFloat64(), Y: y.AsFloat64(), CRS: CRSCartesian}
	if z, ok := get("z"); ok && z.IsNumeric() {
		p.Z = z.AsFloat64()
		p.Is3D = true
		p.CRS = CRSCartesian3D
	}
	return p, nil
}

// Distance computes Euclidean distance between two points of the same
// dimensionality, used by `distance(p1, p2)`.
func Distance(a, b Point) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	if a.Is3D || b.Is3D {
		dz := a.Z - b.Z
		return math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return math.Sqrt(dx*dx + dy*dy)
}
