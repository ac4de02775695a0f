package crs

import (
	"math"

	"github.com/paulmach/orb"
)

// GRS80 ellipsoid, shared by RGF93 projections
const (
	grs80A = 6378137.0
	grs80E = 0.0818191910428158
)

// conic is a Lambert Conformal Conic projection with two standard
// parallels on the GRS80 ellipsoid.
type conic struct {
	lon0   float64 // radians
	x0, y0 float64
	n      float64
	f      float64
	rho0   float64
}

func newConic(lat0, lat1, lat2, lon0, x0, y0 float64) conic {
	phi0, phi1, phi2 := rad(lat0), rad(lat1), rad(lat2)
	m1, m2 := lccM(phi1), lccM(phi2)
	t0, t1, t2 := lccT(phi0), lccT(phi1), lccT(phi2)

	n := (math.Log(m1) - math.Log(m2)) / (math.Log(t1) - math.Log(t2))
	f := m1 / (n * math.Pow(t1, n))
	return conic{
		lon0: rad(lon0),
		x0:   x0,
		y0:   y0,
		n:    n,
		f:    f,
		rho0: grs80A * f * math.Pow(t0, n),
	}
}

// conics holds Lambert-93 and the nine Lambert CC zones
var conics = func() map[int]conic {
	m := map[int]conic{
		2154: newConic(46.5, 44, 49, 3, 700000, 6600000),
	}
	for zone := 42; zone <= 50; zone++ {
		lat0 := float64(zone)
		m[3900+zone] = newConic(lat0, lat0-0.75, lat0+0.75, 3, 1700000, float64(zone-41)*1e6+200000)
	}
	return m
}()

func (c conic) forward(p orb.Point) orb.Point {
	lam, phi := rad(p[0]), rad(p[1])
	rho := grs80A * c.f * math.Pow(lccT(phi), c.n)
	theta := c.n * (lam - c.lon0)
	return orb.Point{
		c.x0 + rho*math.Sin(theta),
		c.y0 + c.rho0 - rho*math.Cos(theta),
	}
}

func (c conic) inverse(p orb.Point) orb.Point {
	dx := p[0] - c.x0
	dy := c.rho0 - (p[1] - c.y0)
	rho := math.Copysign(math.Hypot(dx, dy), c.n)
	theta := math.Atan2(dx, dy)
	t := math.Pow(rho/(grs80A*c.f), 1/c.n)

	phi := math.Pi/2 - 2*math.Atan(t)
	for i := 0; i < 15; i++ {
		es := grs80E * math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-es)/(1+es), grs80E/2))
		if math.Abs(next-phi) < 1e-12 {
			phi = next
			break
		}
		phi = next
	}
	return orb.Point{deg(theta/c.n + c.lon0), deg(phi)}
}

func lccM(phi float64) float64 {
	s := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-grs80E*grs80E*s*s)
}

func lccT(phi float64) float64 {
	es := grs80E * math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) / math.Pow((1-es)/(1+es), grs80E/2)
}

func rad(d float64) float64 { return d * math.Pi / 180 }
func deg(r float64) float64 { return r * 180 / math.Pi }
