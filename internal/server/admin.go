// Admin aggregate report: column averages over all persisted submissions.
package server

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

var adminTemplate = template.Must(template.New("vitals").Parse(`<!DOCTYPE html>
<html>
<head><title>Web Vitals Averages</title></head>
<body>
<h1>Web Vitals Averages</h1>
{{if .Rows}}
<table>
<thead><tr><th>Metric</th><th>Average</th></tr></thead>
<tbody>
{{range .Rows}}<tr><td>{{.Name}}</td><td>{{.Value}}</td></tr>
{{end}}</tbody>
</table>
<p>{{.Samples}} samples</p>
{{else}}
<p>No data available.</p>
{{end}}
</body>
</html>
`))

type adminRow struct {
	Name  string
	Value string
}

type adminView struct {
	Rows    []adminRow
	Samples int64
}

// handleAdminVitals renders the read-only averages table. No filtering,
// pagination or time-windowing.
func (s *Server) handleAdminVitals(w http.ResponseWriter, r *http.Request) {
	avg, err := s.store.AverageVitals(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("averages query failed")
		s.writeError(w, "internal error", http.StatusInternalServerError)
		return
	}

	view := adminView{Samples: avg.Samples}
	if avg.Samples > 0 {
		view.Rows = []adminRow{
			{"LCP", fmt.Sprintf("%.2f", avg.LCP)},
			{"CLS", fmt.Sprintf("%.2f", avg.CLS)},
			{"TTFB", fmt.Sprintf("%.2f", avg.TTFB)},
			{"FCP", fmt.Sprintf("%.2f", avg.FCP)},
			{"INP", fmt.Sprintf("%.2f", avg.INP)},
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := adminTemplate.Execute(w, view); err != nil {
		log.Error().Err(err).Msg("render admin page failed")
	}
}
