// Package validate checks generated dashboards and rule files: every PromQL
// expression must parse and reference only known metrics.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/grafana/grafana-foundation-sdk/go/dashboard"
	"github.com/prometheus/prometheus/model/labels"
	"github.com/prometheus/prometheus/promql/parser"

	"github.com/donaldgifford/meli-harvester/tools/dashgen/rules"
)

// Result collects validation findings. Errors fail generation; warnings
// are reported but tolerated.
type Result struct {
	Errors   []error
	Warnings []string
}

// Ok reports whether no errors were found.
func (r *Result) Ok() bool {
	return len(r.Errors) == 0
}

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Errorf(format, args...))
}

// Dashboard validates every query expression in dash.
func Dashboard(dash dashboard.Dashboard, known map[string]bool) Result {
	var res Result

	data, err := json.Marshal(dash)
	if err != nil {
		res.errorf("marshaling dashboard: %w", err)
		return res
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		res.errorf("decoding dashboard: %w", err)
		return res
	}

	titles := make(map[string]int)
	walk(tree, "", func(panel, expr string) {
		Expr(&res, panel, expr, known)
	}, titles)

	for title, n := range titles {
		if n > 1 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("panel title %q used %d times", title, n))
		}
	}
	return res
}

// walk visits every "expr" string in the decoded JSON tree, reporting the
// nearest enclosing panel title.
func walk(node any, panel string, visit func(panel, expr string), titles map[string]int) {
	switch v := node.(type) {
	case map[string]any:
		if t, ok := v["title"].(string); ok {
			if _, isPanel := v["type"]; isPanel && v["type"] != "row" {
				titles[t]++
			}
			panel = t
		}
		if e, ok := v["expr"].(string); ok {
			visit(panel, e)
		}
		for _, child := range v {
			walk(child, panel, visit, titles)
		}
	case []any:
		for _, child := range v {
			walk(child, panel, visit, titles)
		}
	}
}

// Rules validates a PrometheusRule resource. Alerts must carry a severity
// label and summary/description annotations.
func Rules(cr rules.PrometheusRule, known map[string]bool) Result {
	var res Result

	for _, g := range cr.Spec.Groups {
		if len(g.Rules) == 0 {
			res.errorf("group %s: no rules", g.Name)
		}
		for _, r := range g.Rules {
			name := r.Record
			if r.Alert != "" {
				name = r.Alert
			}
			if (r.Record == "") == (r.Alert == "") {
				res.errorf("group %s: rule %q must set exactly one of record or alert", g.Name, name)
				continue
			}
			if r.Record != "" && !known[r.Record] {
				res.errorf("recording rule %s is not listed as a known metric", r.Record)
			}
			if r.Alert != "" {
				if r.Labels["severity"] == "" {
					res.errorf("alert %s: missing severity label", r.Alert)
				}
				if r.Annotations["summary"] == "" || r.Annotations["description"] == "" {
					res.errorf("alert %s: missing summary or description", r.Alert)
				}
			}
			Expr(&res, name, r.Expr, known)
		}
	}
	return res
}

// Expr parses expr and records an error for syntax problems and for every
// selector naming an unknown metric.
func Expr(res *Result, owner, expr string, known map[string]bool) {
	parsed, err := parser.ParseExpr(expr)
	if err != nil {
		res.errorf("%s: parsing %q: %w", owner, expr, err)
		return
	}

	parser.Inspect(parsed, func(node parser.Node, _ []parser.Node) error {
		vs, ok := node.(*parser.VectorSelector)
		if !ok {
			return nil
		}
		name := selectorName(vs)
		if name == "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: selector without metric name in %q", owner, expr))
			return nil
		}
		if !isKnown(name, known) {
			res.errorf("%s: unknown metric %s", owner, name)
		}
		return nil
	})
}

// histogramSuffixes are the series a histogram exports besides its base name.
var histogramSuffixes = []string{"_bucket", "_sum", "_count"}

func isKnown(name string, known map[string]bool) bool {
	if known[name] {
		return true
	}
	for _, suffix := range histogramSuffixes {
		if base, ok := strings.CutSuffix(name, suffix); ok && known[base] {
			return true
		}
	}
	return false
}

func selectorName(vs *parser.VectorSelector) string {
	if vs.Name != "" {
		return vs.Name
	}
	for _, m := range vs.LabelMatchers {
		if m.Name == labels.MetricName && m.Type == labels.MatchEqual {
			return m.Value
		}
	}
	return ""
}
