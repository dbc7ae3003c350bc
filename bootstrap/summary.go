package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kbukum/whisperserver/component"
)

// Summary renders the startup banner.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
}

// NewSummary creates a banner for the named service.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// Write prints the banner to w: each component's self-description, the
// routes of any RouteProvider, then live health.
func (s *Summary) Write(ctx context.Context, w io.Writer, registry *component.Registry) {
	p := func(format string, args ...any) { _, _ = fmt.Fprintf(w, format, args...) }

	p("\n🚀 %s v%s started in %.2fs\n\n", s.serviceName, s.version, s.startupDuration.Seconds())

	if registry == nil {
		p("   └── No components registered\n\n")
		return
	}

	components := registry.All()
	if len(components) == 0 {
		p("   └── No components registered\n\n")
		return
	}

	health := make(map[string]component.Health, len(components))
	for _, h := range registry.HealthAll(ctx) {
		health[h.Name] = h
	}

	p("📊 Components\n")
	var routes []component.Route
	for i, c := range components {
		d := component.Description{Name: c.Name()}
		if dc, ok := c.(component.Describable); ok {
			d = dc.Describe()
			if d.Name == "" {
				d.Name = c.Name()
			}
		}
		line := d.Name
		if d.Type != "" {
			line += " [" + d.Type + "]"
		}
		if d.Details != "" {
			line += ": " + d.Details
		}
		p("   %s %s %s\n", treePrefix(i, len(components)), healthStatusIcon(health[c.Name()].Status), line)

		if rp, ok := c.(component.RouteProvider); ok {
			routes = append(routes, rp.Routes()...)
		}
	}

	if len(routes) > 0 {
		p("\n🌐 Routes (%d)\n", len(routes))
		for i, r := range routes {
			p("   %s %-7s %s → %s\n", treePrefix(i, len(routes)), r.Method, r.Path, r.Handler)
		}
	}

	p("\n🏥 Health Check\n")
	healthy := 0
	for i, c := range components {
		h := health[c.Name()]
		if h.Status == component.StatusHealthy {
			healthy++
		}
		msg := ""
		if h.Message != "" {
			msg = " (" + h.Message + ")"
		}
		p("   %s %s %s: %s%s\n", treePrefix(i, len(components)), healthStatusIcon(h.Status), c.Name(), strings.ToLower(string(h.Status)), msg)
	}
	if healthy == len(components) {
		p("\n✅ All components healthy (%d/%d)\n\n", healthy, len(components))
	} else {
		p("\n⚠️  Some components have issues (%d/%d healthy)\n\n", healthy, len(components))
	}
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
