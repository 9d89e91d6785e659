package analytics

import (
	"errors"
	"sort"
	"time"

	"github.com/chrissnell/solarcompare/internal/dataset"
)

// ErrNoTimeField is returned by time-based aggregations on a dataset without
// a normalized time column
var ErrNoTimeField = errors.New("dataset has no time column")

// Ranked is one entry of a ranking
type Ranked struct {
	Source string `json:"source"`
	Mean   Value  `json:"mean"`
}

// RankBy orders the sources of ds by descending mean of metric.  Sources
// with equal means keep their order of first appearance; sources with an
// undefined mean come last.
func RankBy(ds *dataset.Dataset, metric string) ([]Ranked, error) {
	col, err := ds.NumericColumn(metric)
	if err != nil {
		return nil, err
	}

	order, groups := ds.GroupBySource()
	ranking := make([]Ranked, 0, len(order))
	for _, source := range order {
		ranking = append(ranking, Ranked{Source: source, Mean: mean(col.Floats(groups[source]))})
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		a, b := ranking[i].Mean, ranking[j].Mean
		if !a.Defined() {
			return false
		}
		if !b.Defined() {
			return true
		}
		return a > b
	})
	return ranking, nil
}

// DailyPoint is the mean of a metric for one source on one calendar day
type DailyPoint struct {
	Date   time.Time `json:"date"`
	Source string    `json:"source"`
	Mean   Value     `json:"mean"`
	Count  int       `json:"count"`
}

type dayKey struct {
	day    time.Time
	source string
}

// DailyAverages computes the mean of metric per (calendar day, source).
// Points are ordered by day, then by first appearance of the source in ds.
// Days where a source has rows but no values for metric are omitted.
func DailyAverages(ds *dataset.Dataset, metric string) ([]DailyPoint, error) {
	col, err := ds.NumericColumn(metric)
	if err != nil {
		return nil, err
	}
	if ds.TimeField() == "" {
		return nil, ErrNoTimeField
	}
	timeCol, _ := ds.Column(ds.TimeField())

	order, _ := ds.GroupBySource()
	rank := make(map[string]int, len(order))
	for i, s := range order {
		rank[s] = i
	}

	buckets := make(map[dayKey][]float64)
	var keys []dayKey
	for i := 0; i < ds.Len(); i++ {
		t, ok := timeCol.Time(i)
		if !ok {
			continue
		}
		v, ok := col.Float(i)
		if !ok {
			continue
		}
		k := dayKey{day: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), source: ds.Source(i)}
		if _, seen := buckets[k]; !seen {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], v)
	}

	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].day.Equal(keys[j].day) {
			return keys[i].day.Before(keys[j].day)
		}
		return rank[keys[i].source] < rank[keys[j].source]
	})

	points := make([]DailyPoint, len(keys))
	for i, k := range keys {
		values := buckets[k]
		points[i] = DailyPoint{Date: k.day, Source: k.source, Mean: mean(values), Count: len(values)}
	}
	return points, nil
}

// Headline is the set of summary figures shown above the charts
type Headline struct {
	Metric          string  `json:"metric"`
	TotalRecords    int     `json:"total_records"`
	SourcesSelected int     `json:"sources_selected"`
	Top             *Ranked `json:"top,omitempty"`
}

// Overview computes the headline figures for a filtered dataset.  selected
// is the number of sources the user asked for, which may exceed the number
// of sources with rows in ds.
func Overview(ds *dataset.Dataset, metric string, selected int) (*Headline, error) {
	ranking, err := RankBy(ds, metric)
	if err != nil {
		return nil, err
	}

	h := &Headline{
		Metric:          metric,
		TotalRecords:    ds.Len(),
		SourcesSelected: selected,
	}
	if len(ranking) > 0 && ranking[0].Mean.Defined() {
		top := ranking[0]
		h.Top = &top
	}
	return h, nil
}
