package llm

import (
	"fmt"
	"os"
	"sync"

	"github.com/danverh/support-chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Config is the model client configuration, mutable as a unit.
type Config struct {
	Model   string
	APIKey  string
	APIBase string
}

// Info is the externally visible state of the registry. The API key is
// never exposed.
type Info struct {
	ModelName string `json:"model_name"`
	APIBase   string `json:"api_base"`
	Status    string `json:"status"`
}

// Factory builds a client from a configuration. Construction failure is
// what triggers rollback in Update.
type Factory func(cfg Config) (Client, error)

// Registry owns the active model client. Exactly one configuration is
// active at all times; Update is all-or-nothing and rolls back on client
// construction failure, so Client never returns an unusable handle once
// the registry initialized successfully.
type Registry struct {
	mu      sync.RWMutex
	cfg     Config
	client  Client
	factory Factory
}

// NewRegistry constructs the initial client. A failure here is a
// domain.ErrConfiguration: the process must refuse to start.
func NewRegistry(cfg Config, factory Factory) (*Registry, error) {
	client, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: initialize model client: %v", domain.ErrConfiguration, err)
	}
	log.Info().Str("model", cfg.Model).Msg("model client initialized")
	return &Registry{cfg: cfg, client: client, factory: factory}, nil
}

// Client returns the currently active model client.
func (r *Registry) Client() Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.client
}

// Info returns the active configuration summary.
func (r *Registry) Info() Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Info{
		ModelName: r.cfg.Model,
		APIBase:   r.cfg.APIBase,
		Status:    "active",
	}
}

// Update merges the supplied fields over the current configuration and
// swaps in a freshly constructed client. Empty fields retain their current
// value. If construction fails the previous configuration and client stay
// active and the failure is returned.
func (r *Registry) Update(model, apiKey, apiBase string) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.cfg
	if model != "" {
		next.Model = model
	}
	if apiKey != "" {
		next.APIKey = apiKey
	}
	if apiBase != "" {
		next.APIBase = apiBase
	}

	client, err := r.factory(next)
	if err != nil {
		log.Error().Err(err).Str("model", next.Model).Msg("model update failed, previous configuration kept")
		return Info{ModelName: r.cfg.Model, APIBase: r.cfg.APIBase, Status: "active"},
			fmt.Errorf("%w: update model: %v", domain.ErrUpstream, err)
	}

	old := r.cfg.Model
	r.cfg = next
	r.client = client
	log.Info().Str("old_model", old).Str("new_model", next.Model).Msg("model updated")
	return Info{ModelName: next.Model, APIBase: next.APIBase, Status: "active"}, nil
}

// ReloadFromEnv re-reads the configuration from the environment. Returns
// changed=false for a no-op when nothing differs from the active state.
func (r *Registry) ReloadFromEnv() (Info, bool, error) {
	r.mu.RLock()
	cur := r.cfg
	r.mu.RUnlock()

	next := Config{
		Model:   envOr("OPENAI_MODEL", cur.Model),
		APIKey:  envOr("OPENAI_API_KEY", cur.APIKey),
		APIBase: envOr("OPENAI_API_BASE", cur.APIBase),
	}

	if next == cur {
		return Info{ModelName: cur.Model, APIBase: cur.APIBase, Status: "active"}, false, nil
	}

	info, err := r.Update(next.Model, next.APIKey, next.APIBase)
	return info, true, err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
