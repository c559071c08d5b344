package chat

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/completion"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/transcript"
)

// Dependencies carries the collaborators of a Controller. Completions and
// Store are required; everything else defaults to the production
// implementation.
type Dependencies struct {
	Completions completion.Client
	Store       transcript.Store
	// NewExecutor builds the query executor for a database target.
	// Defaults to query.NewEngine.
	NewExecutor func(query.Target) (query.Executor, error)
	Logger      *slog.Logger
	Clock       func() time.Time
	Sleep       func(time.Duration)
}

// Controller owns one live session: the transcript, the session identifier,
// and the executor bound to the session database. It is not safe for
// concurrent use; callers serialize turns.
type Controller struct {
	cfg         Config
	completions completion.Client
	store       transcript.Store
	newExecutor func(query.Target) (query.Executor, error)
	logger      *slog.Logger
	clock       func() time.Time
	sleep       func(time.Duration)

	executor  query.Executor
	target    query.Target
	sessionID string
	messages  []completion.Message
}

// NewController opens the first session: it snapshots the target database
// schema into the system prompt, mints a session identifier, and persists
// the one-message transcript. Construction fails when the target cannot be
// opened or holds no tables; transcript store failures only log.
func NewController(ctx context.Context, cfg Config, deps Dependencies) (*Controller, error) {
	if deps.Completions == nil {
		return nil, fmt.Errorf("completion client is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("transcript store is required")
	}
	if strings.TrimSpace(cfg.TaskTemplate) == "" {
		return nil, fmt.Errorf("task template is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if strings.TrimSpace(cfg.Provider) == "" {
		cfg.Provider = "openai"
	}
	if cfg.InterCallDelay < 0 {
		cfg.InterCallDelay = 0
	}
	if deps.NewExecutor == nil {
		deps.NewExecutor = func(target query.Target) (query.Executor, error) {
			return query.NewEngine(target)
		}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = time.Sleep
	}

	c := &Controller{
		cfg:         cfg,
		completions: deps.Completions,
		store:       deps.Store,
		newExecutor: deps.NewExecutor,
		logger:      deps.Logger,
		clock:       deps.Clock,
		sleep:       deps.Sleep,
	}
	if err := c.store.EnsureSchema(ctx); err != nil {
		c.logger.WarnContext(ctx, "ensure transcript schema failed", slog.Any("error", err))
	}
	if err := c.startSession(ctx, cfg.Target); err != nil {
		return nil, err
	}
	return c, nil
}

// SessionID returns the identifier of the live session.
func (c *Controller) SessionID() string { return c.sessionID }

// Target returns the database target of the live session.
func (c *Controller) Target() query.Target { return c.target }

// Transcript returns a copy of the session transcript.
func (c *Controller) Transcript() []completion.Message {
	out := make([]completion.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Reconfigure points the controller at a new database target and opens a
// fresh session with a new schema snapshot and a reset transcript. On error
// the current session stays live and untouched.
func (c *Controller) Reconfigure(ctx context.Context, target query.Target) error {
	return c.startSession(ctx, target)
}

// SubmitTurn runs one user turn. The user text goes on the transcript and
// the backend replies; when that reply carries SQL, the statement runs
// against the session database and a second completion explains the output.
// Transport failures surface through TurnResult.Status; the returned error
// is non-nil only when a backend reply could not be parsed.
func (c *Controller) SubmitTurn(ctx context.Context, userText string) (TurnResult, error) {
	c.appendMessage(ctx, completion.Message{Role: completion.RoleUser, Content: userText})

	result := TurnResult{SessionID: c.sessionID, Provider: c.cfg.Provider}

	first, firstLatency, err := c.timedCompletion(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "completion call failed",
			slog.String("session_id", c.sessionID), slog.Any("error", err))
		result.Status = StatusError
		result.Model = c.cfg.Model
		return result, nil
	}
	c.appendMessage(ctx, completion.Message{Role: completion.RoleAssistant, Content: first.Content})

	fields, err := parseStructuredReply(first.Content)
	if err != nil {
		return TurnResult{}, err
	}

	usage := TokenUsage{
		PromptTokens:     first.Usage.PromptTokens,
		CompletionTokens: first.Usage.CompletionTokens,
		TotalTokens:      first.Usage.TotalTokens,
	}
	result.Status = StatusOK
	result.Model = first.Model
	result.LatencyMS = firstLatency.Milliseconds()
	result.TokenUsage = &usage
	if answer, ok := stringField(fields, "Answer"); ok {
		result.Answer = answer
	}

	statement, ok := stringField(fields, "SQL")
	if !ok {
		result.SQL = SQLNotApplicable
		return result, nil
	}
	result.SQL = statement

	c.sleep(c.cfg.InterCallDelay)

	execution, execErr := c.executor.Execute(ctx, statement)
	if execErr != nil {
		observability.ObserveSQLExecution(StatusError)
		c.logger.WarnContext(ctx, "generated statement failed",
			slog.String("session_id", c.sessionID),
			slog.String("sql", statement),
			slog.Any("error", execErr))
	} else {
		observability.ObserveSQLExecution(StatusOK)
	}
	c.appendMessage(ctx, completion.Message{
		Role:    completion.RoleUser,
		Content: renderExecutionReport(statement, execution.Rows),
	})

	second, secondLatency, err := c.timedCompletion(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "completion call failed",
			slog.String("session_id", c.sessionID), slog.Any("error", err))
		result.Status = StatusError
		return result, nil
	}
	c.appendMessage(ctx, completion.Message{Role: completion.RoleAssistant, Content: second.Content})

	followUp, err := parseStructuredReply(second.Content)
	if err != nil {
		return TurnResult{}, err
	}
	if answer, ok := stringField(followUp, "Answer"); ok {
		result.Answer = answer
	}
	usage.PromptTokens += second.Usage.PromptTokens
	usage.CompletionTokens += second.Usage.CompletionTokens
	usage.TotalTokens += second.Usage.TotalTokens
	result.LatencyMS = (firstLatency + c.cfg.InterCallDelay + secondLatency).Milliseconds()
	return result, nil
}

// startSession builds an executor for target, snapshots its schema, and
// replaces the live session. State changes only after both succeed.
func (c *Controller) startSession(ctx context.Context, target query.Target) error {
	executor, err := c.newExecutor(target)
	if err != nil {
		return fmt.Errorf("configure database target: %w", err)
	}
	schema, err := executor.Schema(ctx)
	if err != nil {
		return fmt.Errorf("snapshot database schema: %w", err)
	}

	c.executor = executor
	c.target = target
	c.sessionID = newSessionID()
	c.messages = []completion.Message{{
		Role:    completion.RoleSystem,
		Content: RenderSystemPrompt(c.cfg.TaskTemplate, schema),
	}}

	if err := c.store.CreateSession(ctx, c.sessionID); err != nil {
		observability.IncrementTranscriptPersistFailure()
		c.logger.WarnContext(ctx, "create session record failed",
			slog.String("session_id", c.sessionID), slog.Any("error", err))
	}
	c.persist(ctx)
	observability.IncrementSessionStarted()
	c.logger.InfoContext(ctx, "session started",
		slog.String("session_id", c.sessionID),
		slog.String("driver", target.Driver),
		slog.String("database", target.DSN))
	return nil
}

func (c *Controller) timedCompletion(ctx context.Context) (completion.Result, time.Duration, error) {
	start := c.clock()
	reply, err := c.completions.Complete(ctx, c.messages)
	elapsed := c.clock().Sub(start)
	if err != nil {
		observability.ObserveCompletionCall(StatusError, elapsed)
		return completion.Result{}, elapsed, err
	}
	observability.ObserveCompletionCall(StatusOK, elapsed)
	return reply, elapsed, nil
}

func (c *Controller) appendMessage(ctx context.Context, message completion.Message) {
	c.messages = append(c.messages, message)
	c.persist(ctx)
}

// persist writes the transcript through the store. Failures are logged and
// counted; the in-memory transcript stays authoritative for the session.
func (c *Controller) persist(ctx context.Context) {
	encoded, err := json.Marshal(c.messages)
	if err != nil {
		observability.IncrementTranscriptPersistFailure()
		c.logger.ErrorContext(ctx, "encode transcript failed", slog.Any("error", err))
		return
	}
	if err := c.store.UpdateSession(ctx, c.sessionID, string(encoded)); err != nil {
		observability.IncrementTranscriptPersistFailure()
		c.logger.WarnContext(ctx, "persist transcript failed",
			slog.String("session_id", c.sessionID), slog.Any("error", err))
	}
}

// renderExecutionReport formats the synthetic user message that reports a
// statement and its output back to the model. Failed executions report an
// empty output block.
func renderExecutionReport(statement string, rows [][]any) string {
	return "SQL:\n" + statement + "\n\nOutput:\n" + renderRows(rows)
}

func renderRows(rows [][]any) string {
	if len(rows) == 0 {
		return ""
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		values := make([]string, 0, len(row))
		for _, value := range row {
			values = append(values, renderValue(value))
		}
		lines = append(lines, "("+strings.Join(values, ", ")+")")
	}
	return strings.Join(lines, "\n")
}

func renderValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(typed)
	case string:
		return typed
	default:
		return fmt.Sprint(typed)
	}
}

func newSessionID() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "session_" + strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return "session_" + base64.RawURLEncoding.EncodeToString(buf)
}
