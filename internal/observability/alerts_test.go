package observability

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"gopkg.in/yaml.v3"

	jobmetrics "github.com/storefront/storefront/internal/jobs"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

var metricRef = regexp.MustCompile(`storefront_[a-z_]+`)

// exportedNames touches every collector so Gather reports it.
func exportedNames(t *testing.T) map[string]bool {
	t.Helper()
	m := NewMetrics()
	m.OrderPlaced("US")
	m.OrderFailed("probe")
	m.StockClamped()
	m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	jm := jobmetrics.NewMetrics(m.Registerer())
	_ = jm.Track("probe").End(os.ErrNotExist)
	jm.MailSent("probe")
	jm.SetLowStock(1)

	families, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
		if mf.GetType().String() == "HISTOGRAM" {
			names[mf.GetName()+"_bucket"] = true
		}
	}
	return names
}

func TestStorefrontAlertRules(t *testing.T) {
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "storefront.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read alert file: %v", err)
	}

	var spec alertSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		t.Fatalf("failed to unmarshal alert file: %v", err)
	}

	var group *alertGroup
	for i := range spec.Groups {
		if spec.Groups[i].Name == "storefront" {
			group = &spec.Groups[i]
			break
		}
	}
	if group == nil {
		t.Fatal("storefront alert group missing")
	}

	expected := map[string]string{
		"HighErrorRate":          "critical",
		"HighLatency":            "warning",
		"OrderPlacementFailures": "critical",
		"StockOversold":          "warning",
		"LowStockProducts":       "warning",
		"MailDeliveryFailing":    "warning",
	}
	if len(group.Rules) != len(expected) {
		t.Fatalf("expected %d rules, got %d", len(expected), len(group.Rules))
	}

	exported := exportedNames(t)
	for _, rule := range group.Rules {
		severity, ok := expected[rule.Alert]
		if !ok {
			t.Fatalf("unexpected rule %q", rule.Alert)
		}
		if rule.Labels["severity"] != severity {
			t.Fatalf("rule %s severity mismatch: %s", rule.Alert, rule.Labels["severity"])
		}
		if rule.Annotations["summary"] == "" || rule.Annotations["description"] == "" || rule.Annotations["runbook"] == "" {
			t.Fatalf("rule %s must include summary, description and runbook annotations", rule.Alert)
		}
		if rule.For == "" {
			t.Fatalf("rule %s must define a hold duration", rule.Alert)
		}
		refs := metricRef.FindAllString(rule.Expr, -1)
		if len(refs) == 0 {
			t.Fatalf("rule %s references no storefront metric", rule.Alert)
		}
		for _, ref := range refs {
			if !exported[ref] {
				t.Fatalf("rule %s references unknown metric %s", rule.Alert, ref)
			}
		}
	}
}
