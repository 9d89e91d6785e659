package solar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cotonou = Site{Latitude: 6.37, Longitude: 2.43, Altitude: 10}

func TestClearSkyGHI(t *testing.T) {
	noon := time.Date(2022, 3, 20, 12, 0, 0, 0, time.UTC)

	ghi := ClearSkyGHI(noon, cotonou)
	assert.Greater(t, ghi, 800.0)
	assert.Less(t, ghi, 1100.0)

	morning := ClearSkyGHI(time.Date(2022, 3, 20, 8, 0, 0, 0, time.UTC), cotonou)
	assert.Greater(t, morning, 0.0)
	assert.Less(t, morning, ghi)

	assert.Zero(t, ClearSkyGHI(time.Date(2022, 3, 20, 0, 0, 0, 0, time.UTC), cotonou))
}

func TestClearSkyGHIUsesUTC(t *testing.T) {
	noon := time.Date(2022, 3, 20, 12, 0, 0, 0, time.UTC)
	local := noon.In(time.FixedZone("WAT", 3600))
	assert.InDelta(t, ClearSkyGHI(noon, cotonou), ClearSkyGHI(local, cotonou), 1e-9)
}

func TestZenith(t *testing.T) {
	assert.Less(t, Zenith(time.Date(2022, 3, 20, 12, 0, 0, 0, time.UTC), cotonou), 15.0)
	assert.Greater(t, Zenith(time.Date(2022, 3, 20, 23, 0, 0, 0, time.UTC), cotonou), 90.0)
}

func TestDaylight(t *testing.T) {
	tests := []struct {
		name        string
		date        time.Time
		site        Site
		sunriseUTC  string
		sunsetUTC   string
		toleranceMn float64
	}{
		{
			name:        "equator at equinox",
			date:        time.Date(2022, 3, 20, 0, 0, 0, 0, time.UTC),
			site:        Site{},
			sunriseUTC:  "06:00",
			sunsetUTC:   "18:00",
			toleranceMn: 20,
		},
		{
			name:        "Freetown in December",
			date:        time.Date(2022, 12, 21, 0, 0, 0, 0, time.UTC),
			site:        Site{Latitude: 8.48, Longitude: -13.23},
			sunriseUTC:  "07:00",
			sunsetUTC:   "18:40",
			toleranceMn: 25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sunrise, sunset, ok := Daylight(tt.date, tt.site)
			require.True(t, ok)

			wantRise, err := time.Parse("15:04", tt.sunriseUTC)
			require.NoError(t, err)
			wantSet, err := time.Parse("15:04", tt.sunsetUTC)
			require.NoError(t, err)

			assert.InDelta(t, float64(wantRise.Hour()*60+wantRise.Minute()), float64(sunrise.Hour()*60+sunrise.Minute()), tt.toleranceMn)
			assert.InDelta(t, float64(wantSet.Hour()*60+wantSet.Minute()), float64(sunset.Hour()*60+sunset.Minute()), tt.toleranceMn)
			assert.True(t, sunset.After(sunrise))
		})
	}
}

func TestDayLengthPolar(t *testing.T) {
	tromso := Site{Latitude: 69.65, Longitude: 18.96}

	_, _, ok := Daylight(time.Date(2022, 6, 21, 0, 0, 0, 0, time.UTC), tromso)
	assert.False(t, ok)
	assert.Equal(t, 24*time.Hour, DayLength(time.Date(2022, 6, 21, 0, 0, 0, 0, time.UTC), tromso))
	assert.Zero(t, DayLength(time.Date(2022, 12, 21, 0, 0, 0, 0, time.UTC), tromso))

	equator := DayLength(time.Date(2022, 3, 20, 0, 0, 0, 0, time.UTC), Site{})
	assert.InDelta(t, 12*time.Hour, equator, float64(10*time.Minute))
}
