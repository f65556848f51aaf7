// Package transform converts SGP4 output between reference frames.
//
// SGP4 produces TEME (True Equator Mean Equinox) coordinates. Rotating by GMST
// gives a pseudo Earth-fixed frame, which is close enough to ECEF (ignoring
// polar motion and the equation of the equinoxes) to derive the sub-satellite
// point reported in classification features.
package transform

import (
	"math"
	"time"
)

// Vec3 is a Cartesian 3-vector. Units are set by the caller (km or km/s here).
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Finite reports whether no component is NaN or ±Inf.
func (v Vec3) Finite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// TEMEToECEF rotates a TEME state (km, km/s) into the Earth-fixed frame at t.
func TEMEToECEF(pos, vel Vec3, t time.Time) (Vec3, Vec3) {
	return RotateGMST(pos, vel, GMST(t))
}

// RotateGMST applies r_ecef = R3(θ)·r_teme and v_ecef = R3(θ)·v_teme − ω × r_ecef.
func RotateGMST(pos, vel Vec3, gmst float64) (Vec3, Vec3) {
	c, s := math.Cos(gmst), math.Sin(gmst)

	r := Vec3{
		X: pos.X*c + pos.Y*s,
		Y: -pos.X*s + pos.Y*c,
		Z: pos.Z,
	}
	v := Vec3{
		X: vel.X*c + vel.Y*s + OmegaEarth*r.Y,
		Y: -vel.X*s + vel.Y*c - OmegaEarth*r.X,
		Z: vel.Z,
	}
	return r, v
}

// WGS-84 ellipsoid.
const (
	wgs84A  = 6378.137 // km
	wgs84F  = 1 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

const maxGeodeticIterations = 10

// Geodetic converts an Earth-fixed position in km to geodetic latitude and
// longitude in degrees and height above the WGS-84 ellipsoid in km.
func Geodetic(r Vec3) (latDeg, lonDeg, heightKm float64) {
	p := math.Hypot(r.X, r.Y)
	lon := math.Atan2(r.Y, r.X)
	lat := math.Atan2(r.Z, p*(1-wgs84E2))

	var n float64
	for i := 0; i < maxGeodeticIterations; i++ {
		sin := math.Sin(lat)
		n = wgs84A / math.Sqrt(1-wgs84E2*sin*sin)
		next := math.Atan2(r.Z+wgs84E2*n*sin, p)
		if math.Abs(next-lat) < 1e-12 {
			lat = next
			break
		}
		lat = next
	}

	sin, cos := math.Sin(lat), math.Cos(lat)
	n = wgs84A / math.Sqrt(1-wgs84E2*sin*sin)
	h := p*cos + (r.Z+wgs84E2*n*sin)*sin - n

	return lat * 180 / math.Pi, lon * 180 / math.Pi, h
}
