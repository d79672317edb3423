// Package plugin implements the tool registry. Plugins are explicit
// registration-table bundles: each source contributes a manifest of tools,
// and reloading a plugin re-runs its manifest and swaps the complete tool
// set in one step, so concurrent readers observe either the old or the new
// registration, never a mix.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrNotFound indicates the named plugin is not loaded (or, for
	// LoadOne, not registered as a source).
	ErrNotFound = errors.New("plugin not found")

	// ErrAlreadyLoaded indicates LoadOne was called for a loaded plugin.
	ErrAlreadyLoaded = errors.New("plugin already loaded")

	// ErrNoValidTools indicates a manifest yielded no usable tools.
	ErrNoValidTools = errors.New("no valid tools in plugin")

	// ErrUnloaded indicates a reload found no valid tools and removed the
	// plugin as a side effect.
	ErrUnloaded = errors.New("plugin unloaded: no valid tools after reload")
)

// Handler executes a tool with the model-supplied structured arguments and
// returns a textual result for the model.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool is a single invocable exposed to the model.
type Tool struct {
	// Name is the bare tool name; the registry qualifies it as
	// "<plugin>.<name>".
	Name string
	// Description is surfaced to the model as the usage contract. Tools
	// with an empty description are skipped at load.
	Description string
	// Parameters is a JSON-schema object describing the arguments.
	Parameters map[string]any
	// Handler runs the tool.
	Handler Handler
}

// Descriptor is the read-only view of a registered tool.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Source provides a plugin's tool manifest. Reload re-runs the manifest.
type Source struct {
	Name     string
	Manifest func() ([]Tool, error)
}

// Status reports registry-wide counters and per-plugin tool names.
type Status struct {
	TotalPlugins int                     `json:"total_plugins"`
	TotalTools   int                     `json:"total_tools"`
	Plugins      map[string]PluginStatus `json:"plugins"`
}

// PluginStatus reports one plugin's tool inventory.
type PluginStatus struct {
	ToolsCount int      `json:"tools_count"`
	Tools      []string `json:"tools"`
}

// Failure records a per-plugin reload failure.
type Failure struct {
	Plugin string `json:"plugin"`
	Error  string `json:"error"`
}

// Report is the aggregate result of ReloadAll.
type Report struct {
	SuccessCount int       `json:"success_count"`
	TotalCount   int       `json:"total_count"`
	Failed       []Failure `json:"failed_plugins,omitempty"`
}

// Registry indexes tools by qualified name and supports load, reload and
// unload without restarting the process.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
	plugins map[string][]Tool
	tools   map[string]Tool
}

// NewRegistry creates a registry knowing the given sources. Nothing is
// loaded until LoadAll or LoadOne is called.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{
		sources: make(map[string]Source, len(sources)),
		plugins: make(map[string][]Tool),
		tools:   make(map[string]Tool),
	}
	for _, src := range sources {
		r.sources[src.Name] = src
	}
	return r
}

// valid filters a manifest down to usable tools: non-empty description and
// a name that does not start with the internal-use marker.
func valid(tools []Tool) []Tool {
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		if t.Name == "" || strings.HasPrefix(t.Name, "_") || t.Description == "" || t.Handler == nil {
			continue
		}
		out = append(out, t)
	}
	return out
}

// LoadAll loads every registered source. A source that fails or yields no
// valid tools is logged and skipped; it never aborts the others.
func (r *Registry) LoadAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, src := range r.sources {
		if _, loaded := r.plugins[name]; loaded {
			continue
		}
		tools, err := src.Manifest()
		if err != nil {
			log.Error().Err(err).Str("plugin", name).Msg("failed to load plugin")
			continue
		}
		tools = valid(tools)
		if len(tools) == 0 {
			log.Warn().Str("plugin", name).Msg("plugin defines no valid tools, skipping")
			continue
		}
		r.install(name, tools)
		log.Info().Str("plugin", name).Int("tools", len(tools)).Msg("plugin loaded")
	}
}

// LoadOne loads a single plugin by name. Fails with ErrAlreadyLoaded if it
// is present, ErrNotFound if no such source is registered and
// ErrNoValidTools if the manifest yields nothing usable.
func (r *Registry) LoadOne(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, loaded := r.plugins[name]; loaded {
		return 0, fmt.Errorf("%w: %s", ErrAlreadyLoaded, name)
	}
	src, ok := r.sources[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	tools, err := src.Manifest()
	if err != nil {
		return 0, fmt.Errorf("load plugin %s: %w", name, err)
	}
	tools = valid(tools)
	if len(tools) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoValidTools, name)
	}

	r.install(name, tools)
	log.Info().Str("plugin", name).Int("tools", len(tools)).Msg("plugin loaded")
	return len(tools), nil
}

// ReloadOne re-runs the plugin's manifest and replaces its tool set
// atomically. If the replacement set is empty the plugin is removed and
// ErrUnloaded is returned so the caller knows it is gone.
func (r *Registry) ReloadOne(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloadLocked(name)
}

func (r *Registry) reloadLocked(name string) (int, error) {
	if _, loaded := r.plugins[name]; !loaded {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	src, ok := r.sources[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	tools, err := src.Manifest()
	if err != nil {
		// Strict recovery policy: a failed reload removes the previous
		// registration rather than leaving it stale.
		r.remove(name)
		log.Error().Err(err).Str("plugin", name).Msg("plugin reload failed, previous registration removed")
		return 0, fmt.Errorf("reload plugin %s: %w", name, err)
	}

	tools = valid(tools)
	r.remove(name)
	if len(tools) == 0 {
		log.Warn().Str("plugin", name).Msg("plugin reloaded to empty, removed")
		return 0, fmt.Errorf("%w: %s", ErrUnloaded, name)
	}

	r.install(name, tools)
	log.Info().Str("plugin", name).Int("tools", len(tools)).Msg("plugin reloaded")
	return len(tools), nil
}

// ReloadAll reloads every loaded plugin independently. A failure in one
// never aborts the others.
func (r *Registry) ReloadAll() Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}

	report := Report{TotalCount: len(names)}
	for _, name := range names {
		if _, err := r.reloadLocked(name); err != nil {
			report.Failed = append(report.Failed, Failure{Plugin: name, Error: err.Error()})
			continue
		}
		report.SuccessCount++
	}

	log.Info().Int("reloaded", report.SuccessCount).Int("total", report.TotalCount).Msg("plugins reloaded")
	return report
}

// Unload removes a plugin and all of its tool entries.
func (r *Registry) Unload(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tools, loaded := r.plugins[name]
	if !loaded {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	r.remove(name)
	log.Info().Str("plugin", name).Int("tools", len(tools)).Msg("plugin unloaded")
	return len(tools), nil
}

// Tool looks up a tool by qualified name. This is a query, never an error.
func (r *Registry) Tool(qualified string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[qualified]
	return t, ok
}

// ListAll returns every loaded plugin's tool descriptors with qualified
// names, the shape handed to the model on each turn.
func (r *Registry) ListAll() map[string][]Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]Descriptor, len(r.plugins))
	for name, tools := range r.plugins {
		descs := make([]Descriptor, 0, len(tools))
		for _, t := range tools {
			descs = append(descs, Descriptor{
				Name:        qualify(name, t.Name),
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		out[name] = descs
	}
	return out
}

// Descriptors returns the flat tool descriptor list across all plugins.
func (r *Registry) Descriptors() []Descriptor {
	var out []Descriptor
	for _, descs := range r.ListAll() {
		out = append(out, descs...)
	}
	return out
}

// Status returns registry-wide counters and per-plugin tool names.
func (r *Registry) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Status{Plugins: make(map[string]PluginStatus, len(r.plugins))}
	for name, tools := range r.plugins {
		names := make([]string, 0, len(tools))
		for _, t := range tools {
			names = append(names, qualify(name, t.Name))
		}
		st.Plugins[name] = PluginStatus{ToolsCount: len(tools), Tools: names}
		st.TotalPlugins++
		st.TotalTools += len(tools)
	}
	return st
}

func (r *Registry) install(name string, tools []Tool) {
	r.plugins[name] = tools
	for _, t := range tools {
		r.tools[qualify(name, t.Name)] = t
	}
}

func (r *Registry) remove(name string) {
	for _, t := range r.plugins[name] {
		delete(r.tools, qualify(name, t.Name))
	}
	delete(r.plugins, name)
}

func qualify(plugin, tool string) string {
	return plugin + "." + tool
}
