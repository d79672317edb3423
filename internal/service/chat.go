package service

import (
	"context"
	"fmt"
	"time"

	"github.com/danverh/support-chat/internal/domain"
	"github.com/danverh/support-chat/internal/llm"
	"github.com/danverh/support-chat/internal/plugin"
	"github.com/danverh/support-chat/internal/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Options tune the conversation loop.
type Options struct {
	// MaxToolRounds bounds how many times a single turn may go back to
	// the model with tool results before the turn is cut off.
	MaxToolRounds int
	// MaxHistory caps how many prior messages are replayed to the model.
	MaxHistory int
	// ModelTimeout applies to each model invocation.
	ModelTimeout time.Duration
	// ToolTimeout applies to each tool invocation.
	ToolTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxToolRounds <= 0 {
		o.MaxToolRounds = 5
	}
	if o.MaxHistory <= 0 {
		o.MaxHistory = 20
	}
	if o.ModelTimeout <= 0 {
		o.ModelTimeout = 60 * time.Second
	}
	if o.ToolTimeout <= 0 {
		o.ToolTimeout = 10 * time.Second
	}
	return o
}

// ToolCallRecord logs one executed tool invocation within a turn.
type ToolCallRecord struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Result    string         `json:"result"`
}

// Result is the outcome of one conversation turn.
type Result struct {
	Response  string           `json:"response"`
	SessionID string           `json:"session_id"`
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
}

// ServiceStatus aggregates the state of all registries for reporting.
type ServiceStatus struct {
	Model    llm.Info      `json:"model"`
	Plugins  plugin.Status `json:"plugins"`
	Sessions session.Stats `json:"sessions"`
	Status   string        `json:"status"`
}

// ChatService orchestrates a conversation turn: resolve the session, call
// the model with the registered tools attached, execute requested tool
// calls, and persist the exchange.
type ChatService struct {
	sessions *session.Store
	plugins  *plugin.Registry
	models   *llm.Registry
	opts     Options
}

// NewChatService wires the orchestrator to its three registries.
func NewChatService(sessions *session.Store, plugins *plugin.Registry, models *llm.Registry, opts Options) *ChatService {
	return &ChatService{
		sessions: sessions,
		plugins:  plugins,
		models:   models,
		opts:     opts.withDefaults(),
	}
}

// ProcessMessage runs one turn. Model and tool failures degrade into an
// assistant message carrying the error text; the caller always gets a
// response.
func (s *ChatService) ProcessMessage(ctx context.Context, userID, message, sessionID string) (*Result, error) {
	sid, created := s.sessions.ResolveOrCreate(userID, sessionID)
	if created {
		log.Info().Str("session_id", sid.String()).Str("user_id", userID).Msg("new session for turn")
	}

	prior, err := s.sessions.Snapshot(sid)
	if err != nil {
		return nil, err
	}
	if len(prior) > s.opts.MaxHistory {
		prior = prior[len(prior)-s.opts.MaxHistory:]
	}

	userMsg := domain.Message{Role: domain.RoleUser, Content: message, CreatedAt: time.Now()}
	convo := append(prior, userMsg)
	tools := s.toolDefs()
	client := s.models.Client()

	var records []ToolCallRecord
	var final domain.Message
	for round := 0; ; round++ {
		reply, err := s.invokeModel(ctx, client, convo, tools)
		if err != nil {
			log.Error().Err(err).Str("session_id", sid.String()).Msg("model invocation failed")
			final = degraded(fmt.Sprintf("Sorry, something went wrong while handling your request: %v", err))
			break
		}
		if len(reply.ToolCalls) == 0 {
			final = *reply
			break
		}
		if round >= s.opts.MaxToolRounds {
			log.Warn().Str("session_id", sid.String()).Int("rounds", round).Msg("tool round limit reached")
			final = degraded("Sorry, this request needed too many tool calls and was cut off. Please try rephrasing it.")
			break
		}

		convo = append(convo, *reply)
		for _, tc := range reply.ToolCalls {
			result := s.executeToolCall(ctx, tc)
			records = append(records, ToolCallRecord{Name: tc.Name, Arguments: tc.Arguments, Result: result})
			convo = append(convo, domain.Message{
				Role:       domain.RoleTool,
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	final.CreatedAt = time.Now()
	if err := s.sessions.Append(sid, userMsg, final); err != nil {
		// The session was deleted mid-turn; the answer is still returned.
		log.Warn().Err(err).Str("session_id", sid.String()).Msg("failed to persist turn")
	}

	return &Result{
		Response:  final.Content,
		SessionID: sid.String(),
		ToolCalls: records,
	}, nil
}

func (s *ChatService) invokeModel(ctx context.Context, client llm.Client, convo []domain.Message, tools []llm.ToolDef) (*domain.Message, error) {
	mctx, cancel := context.WithTimeout(ctx, s.opts.ModelTimeout)
	defer cancel()
	return client.Invoke(mctx, convo, tools)
}

// executeToolCall never propagates a failure: unknown tools, handler
// errors and panics all become error-result strings fed back to the model.
func (s *ChatService) executeToolCall(ctx context.Context, tc domain.ToolCall) (out string) {
	t, ok := s.plugins.Tool(tc.Name)
	if !ok {
		log.Warn().Str("tool", tc.Name).Msg("model requested unknown tool")
		return fmt.Sprintf("error: tool %s does not exist", tc.Name)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("tool", tc.Name).Interface("panic", r).Msg("tool handler panicked")
			out = fmt.Sprintf("error executing tool %s: %v", tc.Name, r)
		}
	}()

	tctx, cancel := context.WithTimeout(ctx, s.opts.ToolTimeout)
	defer cancel()

	result, err := t.Handler(tctx, tc.Arguments)
	if err != nil {
		log.Warn().Err(err).Str("tool", tc.Name).Msg("tool execution failed")
		return fmt.Sprintf("error executing tool %s: %v", tc.Name, err)
	}
	log.Debug().Str("tool", tc.Name).Msg("tool executed")
	return result
}

func (s *ChatService) toolDefs() []llm.ToolDef {
	descs := s.plugins.Descriptors()
	defs := make([]llm.ToolDef, 0, len(descs))
	for _, d := range descs {
		defs = append(defs, llm.ToolDef{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}
	return defs
}

func degraded(text string) domain.Message {
	return domain.Message{Role: domain.RoleAssistant, Content: text}
}

// SessionHistory returns a session's full message log after the ownership
// check.
func (s *ChatService) SessionHistory(userID, sessionID string) (*session.Session, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	return s.sessions.History(userID, id)
}

// DeleteSession removes a session after the ownership check.
func (s *ChatService) DeleteSession(userID, sessionID string) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	return s.sessions.Delete(userID, id)
}

// UserSessions lists all sessions belonging to a user.
func (s *ChatService) UserSessions(userID string) []session.Info {
	return s.sessions.ListByOwner(userID)
}

// UpdateModel swaps the model configuration; see llm.Registry.Update.
func (s *ChatService) UpdateModel(model, apiKey, apiBase string) (llm.Info, error) {
	return s.models.Update(model, apiKey, apiBase)
}

// ReloadModelFromEnv re-reads the model configuration from the
// environment; see llm.Registry.ReloadFromEnv.
func (s *ChatService) ReloadModelFromEnv() (llm.Info, bool, error) {
	return s.models.ReloadFromEnv()
}

// ReloadPlugins reloads every loaded plugin and returns the per-plugin
// report.
func (s *ChatService) ReloadPlugins() plugin.Report {
	return s.plugins.ReloadAll()
}

// PluginStatus returns the plugin registry inventory.
func (s *ChatService) PluginStatus() plugin.Status {
	return s.plugins.Status()
}

// Status aggregates model, plugin and session state.
func (s *ChatService) Status() ServiceStatus {
	return ServiceStatus{
		Model:    s.models.Info(),
		Plugins:  s.plugins.Status(),
		Sessions: s.sessions.Stats(),
		Status:   "healthy",
	}
}
