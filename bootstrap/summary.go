package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kbukum/snapstream/component"
)

// InfrastructureInfo describes one registered component.
type InfrastructureInfo struct {
	Name    string
	Type    string // "kafka", "redis", "stream"
	Details string
}

// Summary tracks and displays the application bootstrap process.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	infrastructure  []InfrastructureInfo
	bindings        []string
}

// NewSummary creates a new bootstrap summary tracker.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackInfrastructure adds an infrastructure entry.
func (s *Summary) TrackInfrastructure(name, componentType, details string) {
	s.infrastructure = append(s.infrastructure, InfrastructureInfo{
		Name:    name,
		Type:    componentType,
		Details: details,
	})
}

// TrackBinding records a dispatch binding by its display name.
func (s *Summary) TrackBinding(name string) {
	s.bindings = append(s.bindings, name)
}

// Collect adds every component implementing component.Describable that is
// not tracked yet.
func (s *Summary) Collect(registry *component.Registry) {
	if registry == nil {
		return
	}
	seen := make(map[string]bool, len(s.infrastructure))
	for _, inf := range s.infrastructure {
		seen[inf.Name] = true
	}
	for _, c := range registry.All() {
		d, ok := c.(component.Describable)
		if !ok {
			continue
		}
		desc := d.Describe()
		if desc.Name == "" {
			desc.Name = c.Name()
		}
		if seen[desc.Name] {
			continue
		}
		seen[desc.Name] = true
		s.TrackInfrastructure(desc.Name, desc.Type, desc.Details)
	}
}

// Infrastructure returns the tracked infrastructure entries.
func (s *Summary) Infrastructure() []InfrastructureInfo {
	return append([]InfrastructureInfo(nil), s.infrastructure...)
}

// Write prints the summary to w, including live health from registry.
func (s *Summary) Write(ctx context.Context, w io.Writer, registry *component.Registry) {
	version := s.version
	if version == "" {
		version = "dev"
	}
	fmt.Fprintf(w, "\n%s %s started in %.2fs\n", s.serviceName, version, s.startupDuration.Seconds())

	if len(s.infrastructure) > 0 {
		fmt.Fprintf(w, "\nInfrastructure\n")
		for i, inf := range s.infrastructure {
			fmt.Fprintf(w, "   %s %s [%s]: %s\n", branch(i, len(s.infrastructure)), inf.Name, inf.Type, inf.Details)
		}
	}

	if len(s.bindings) > 0 {
		fmt.Fprintf(w, "\nBindings (%d)\n", len(s.bindings))
		for i, b := range s.bindings {
			fmt.Fprintf(w, "   %s %s\n", branch(i, len(s.bindings)), b)
		}
	}

	if registry != nil {
		results := registry.HealthAll(ctx)
		if len(results) > 0 {
			fmt.Fprintf(w, "\nHealth\n")
			for i, h := range results {
				msg := ""
				if h.Message != "" {
					msg = " (" + h.Message + ")"
				}
				fmt.Fprintf(w, "   %s %s %s: %s%s\n", branch(i, len(results)), healthIcon(h.Status), h.Name, strings.ToLower(string(h.Status)), msg)
			}
		}
	}
	fmt.Fprintln(w)
}

func branch(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthIcon(status component.HealthStatus) string {
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
