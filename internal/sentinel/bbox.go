package sentinel

import "math"

// webMercatorCRS identifies EPSG:3857, the metric system all request
// bounding boxes are expressed in.
const webMercatorCRS = "http://www.opengis.net/def/crs/EPSG/0/3857"

// earthRadiusM is the spherical Mercator earth radius in meters
const earthRadiusM = 6378137.0

// BBox is a square envelope in EPSG:3857 centered on a projected point
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
	CRS                    string
}

// Bounds returns the envelope as [minx, miny, maxx, maxy]
func (b BBox) Bounds() []float64 {
	return []float64{b.MinX, b.MinY, b.MaxX, b.MaxY}
}

// projectWebMercator converts WGS84 degrees to EPSG:3857 meters
func projectWebMercator(lon, lat float64) (x, y float64) {
	x = earthRadiusM * lon * math.Pi / 180
	y = earthRadiusM * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return x, y
}

// BuildBBox projects (lon, lat) into Web Mercator and forms a square
// envelope of side 2×bufferKM kilometers around it.
func BuildBBox(lon, lat, bufferKM float64) BBox {
	x, y := projectWebMercator(lon, lat)
	bufferM := bufferKM * 1000

	return BBox{
		MinX: x - bufferM,
		MinY: y - bufferM,
		MaxX: x + bufferM,
		MaxY: y + bufferM,
		CRS:  webMercatorCRS,
	}
}
