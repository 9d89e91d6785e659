package solar

import (
	"math"
	"time"
)

// Daylight returns the UTC sunrise and sunset bracketing solar noon on the
// calendar day of date.  ok is false during polar day or polar night.
func Daylight(date time.Time, site Site) (sunrise, sunset time.Time, ok bool) {
	date = date.UTC()
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	lat := degToRad(site.Latitude)
	dec := degToRad(declination(day.YearDay()))
	cosH := -math.Tan(lat) * math.Tan(dec)
	if cosH < -1 || cosH > 1 {
		return time.Time{}, time.Time{}, false
	}

	halfDay := radToDeg(math.Acos(cosH)) / 15 * 60
	noon := 720 - 4*site.Longitude - equationOfTime(day.Add(12*time.Hour))

	sunrise = day.Add(time.Duration((noon - halfDay) * float64(time.Minute))).Round(time.Minute)
	sunset = day.Add(time.Duration((noon + halfDay) * float64(time.Minute))).Round(time.Minute)
	return sunrise, sunset, true
}

// DayLength returns the time between sunrise and sunset, or zero when the
// sun does not rise and set on that day
func DayLength(date time.Time, site Site) time.Duration {
	sunrise, sunset, ok := Daylight(date, site)
	if !ok {
		if math.Abs(site.Latitude) > 60 && declination(date.UTC().YearDay())*site.Latitude > 0 {
			return 24 * time.Hour
		}
		return 0
	}
	return sunset.Sub(sunrise)
}
