// Package solar models clear-sky irradiance and daylight hours for a site.
package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// solarConstant is the mean irradiance at the top of the atmosphere in W/m²
const solarConstant = 1361.0

// linkeTurbidity is a typical clear-sky turbidity for the Sahel coast
const linkeTurbidity = 2.0

// Site locates a measurement station
type Site struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// Altitude in meters above sea level
	Altitude float64 `json:"altitude"`
}

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}

func radToDeg(rad float64) float64 {
	return rad * (180.0 / math.Pi)
}

// fixAngle normalizes an angle to [0, 360)
func fixAngle(angle float64) float64 {
	a := math.Mod(angle, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// equationOfTime returns apparent minus mean solar time, in minutes
func equationOfTime(t time.Time) float64 {
	T := (julian.TimeToJD(t.UTC()) - 2451545.0) / 36525.0

	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)
	eps := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60

	y := math.Pow(math.Tan(degToRad(eps)/2), 2)
	return radToDeg(y*math.Sin(degToRad(2*L0))-
		2*e*math.Sin(degToRad(M))+
		4*e*y*math.Sin(degToRad(M))*math.Cos(degToRad(2*L0))-
		0.5*y*y*math.Sin(degToRad(4*L0))-
		1.25*e*e*math.Sin(degToRad(2*M))) * 4
}

// declination is the solar declination in degrees for a day of the year
func declination(dayOfYear int) float64 {
	return 23.45 * math.Sin(degToRad(360.0/365.0*float64(dayOfYear-81)))
}

// Zenith returns the solar zenith angle in degrees at site for instant t
func Zenith(t time.Time, site Site) float64 {
	t = t.UTC()
	minutes := float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60.0
	trueSolar := minutes + 4*site.Longitude + equationOfTime(t)
	hourAngle := degToRad(trueSolar/4 - 180)

	lat := degToRad(site.Latitude)
	dec := degToRad(declination(t.YearDay()))
	cosZ := math.Sin(lat)*math.Sin(dec) + math.Cos(lat)*math.Cos(dec)*math.Cos(hourAngle)
	return radToDeg(math.Acos(math.Max(-1, math.Min(1, cosZ))))
}

// ClearSkyGHI estimates global horizontal irradiance in W/m² under a
// cloudless sky using a simplified Ineichen-Perez model.  It is zero while
// the sun is below the horizon.
func ClearSkyGHI(t time.Time, site Site) float64 {
	zenith := Zenith(t, site)
	if zenith >= 90 {
		return 0
	}

	n := float64(t.UTC().YearDay())
	extraterrestrial := solarConstant * (1 + 0.033*math.Cos(degToRad(360.0*(n-3)/365.0)))

	// Kasten-Young air mass
	airMass := 1.0 / (math.Cos(degToRad(zenith)) + 0.50572*math.Pow(96.07995-zenith, -1.6364))
	dni := extraterrestrial * 0.7 * math.Exp(-0.027*airMass*linkeTurbidity*math.Exp(-site.Altitude/8000.0))
	diffuseFraction := 0.1 + 0.05*math.Sin(math.Pi*(n-100)/365.0)
	dhi := diffuseFraction * extraterrestrial * math.Sin(degToRad(zenith))

	return dni*math.Cos(degToRad(zenith)) + dhi
}
