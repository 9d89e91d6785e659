package analytics

import (
	"github.com/chrissnell/solarcompare/internal/dataset"
	"github.com/chrissnell/solarcompare/pkg/solar"
)

// ClearSky compares a source's measured irradiance with the modelled
// clear-sky irradiance at its site over the same timestamps
type ClearSky struct {
	Source   string      `json:"source"`
	Site     *solar.Site `json:"site,omitempty"`
	Measured Value       `json:"measured_mean"`
	Modelled Value       `json:"clear_sky_mean"`
	// Index is measured over modelled energy.  Values well below 1 indicate
	// cloud, dust or soiling losses.
	Index Value `json:"index"`
	Count int   `json:"count"`
}

// ClearSkyIndex computes the clear-sky index of metric per source.  Only
// daytime rows with both a timestamp and a value are used.  Sources without
// a site keep their row with every figure undefined.
func ClearSkyIndex(ds *dataset.Dataset, metric string, sites map[string]solar.Site) ([]ClearSky, error) {
	col, err := ds.NumericColumn(metric)
	if err != nil {
		return nil, err
	}
	if ds.TimeField() == "" {
		return nil, ErrNoTimeField
	}
	timeCol, _ := ds.Column(ds.TimeField())

	order, groups := ds.GroupBySource()
	out := make([]ClearSky, 0, len(order))
	for _, source := range order {
		row := ClearSky{Source: source, Measured: Undefined, Modelled: Undefined, Index: Undefined}
		site, located := sites[source]
		if !located {
			out = append(out, row)
			continue
		}
		row.Site = &site

		var measured, modelled []float64
		for _, i := range groups[source] {
			t, ok := timeCol.Time(i)
			if !ok {
				continue
			}
			v, ok := col.Float(i)
			if !ok {
				continue
			}
			clear := solar.ClearSkyGHI(t, site)
			if clear <= 0 {
				continue
			}
			measured = append(measured, v)
			modelled = append(modelled, clear)
		}

		row.Count = len(measured)
		row.Measured = mean(measured)
		row.Modelled = mean(modelled)
		if row.Count > 0 && row.Modelled > 0 {
			row.Index = row.Measured / row.Modelled
		}
		out = append(out, row)
	}
	return out, nil
}
