package dashboard

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/chrissnell/solarcompare/internal/dataset"
)

var errBadQuery = errors.New("invalid query")

// selection is the filter and metric chosen by a request
type selection struct {
	Criteria dataset.Criteria
	Metric   string
	Start    string
	End      string
}

// parseSelection reads the source, metric, start and end query parameters.
// With no source parameter every loaded source is selected.  source may be
// repeated or hold a comma separated list.
func parseSelection(req *http.Request, all []string, defaultMetric string) (selection, error) {
	q := req.URL.Query()

	var sources []string
	if values, ok := q["source"]; ok {
		for _, v := range values {
			sources = append(sources, strings.Split(v, ",")...)
		}
	} else {
		sources = all
	}

	sel := selection{
		Metric: strings.TrimSpace(q.Get("metric")),
		Start:  strings.TrimSpace(q.Get("start")),
		End:    strings.TrimSpace(q.Get("end")),
	}
	if sel.Metric == "" {
		sel.Metric = defaultMetric
	}

	c, err := dataset.NewCriteria(sources, sel.Start, sel.End)
	if err != nil {
		return selection{}, fmt.Errorf("%w: %v", errBadQuery, err)
	}
	sel.Criteria = c
	return sel, nil
}

// query encodes the selection for links to charts and exports
func (s selection) query() url.Values {
	q := url.Values{}
	if len(s.Criteria.Sources) == 0 {
		// An empty value keeps "nothing selected" distinct from "all sources"
		q.Set("source", "")
	}
	for _, src := range s.Criteria.Sources {
		q.Add("source", src)
	}
	q.Set("metric", s.Metric)
	if s.Start != "" {
		q.Set("start", s.Start)
		q.Set("end", s.End)
	}
	return q
}

func (s selection) selected(source string) bool {
	for _, src := range s.Criteria.Sources {
		if src == source {
			return true
		}
	}
	return false
}
