package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/askdb/askdb/internal/completion"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/transcript"
)

type scriptedClient struct {
	replies []completion.Result
	errs    []error
	calls   [][]completion.Message
}

func (s *scriptedClient) Complete(_ context.Context, messages []completion.Message) (completion.Result, error) {
	snapshot := make([]completion.Message, len(messages))
	copy(snapshot, messages)
	index := len(s.calls)
	s.calls = append(s.calls, snapshot)
	if index < len(s.errs) && s.errs[index] != nil {
		return completion.Result{}, s.errs[index]
	}
	if index >= len(s.replies) {
		return completion.Result{}, fmt.Errorf("unscripted completion call %d", index)
	}
	return s.replies[index], nil
}

type stubExecutor struct {
	schema     string
	schemaErr  error
	rows       [][]any
	execErr    error
	statements []string
}

func (s *stubExecutor) Execute(_ context.Context, statement string, _ ...any) (query.Result, error) {
	s.statements = append(s.statements, statement)
	if s.execErr != nil {
		return query.Result{}, s.execErr
	}
	return query.Result{Columns: []string{"value"}, Rows: s.rows, Duration: time.Millisecond}, nil
}

func (s *stubExecutor) Schema(context.Context) (string, error) {
	if s.schemaErr != nil {
		return "", s.schemaErr
	}
	return s.schema, nil
}

type memoryStore struct {
	ensureCalls int
	ensureErr   error
	createErr   error
	updateErr   error
	created     []string
	logs        map[string]string
}

func (m *memoryStore) EnsureSchema(context.Context) error {
	m.ensureCalls++
	return m.ensureErr
}

func (m *memoryStore) CreateSession(_ context.Context, sessionID string) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, sessionID)
	return nil
}

func (m *memoryStore) UpdateSession(_ context.Context, sessionID, messageLog string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if m.logs == nil {
		m.logs = map[string]string{}
	}
	m.logs[sessionID] = messageLog
	return nil
}

func (m *memoryStore) GetSession(_ context.Context, _ string) (transcript.Session, error) {
	return transcript.Session{}, transcript.ErrNotFound
}

func (m *memoryStore) ListSessions(context.Context, int) ([]transcript.Session, error) {
	return nil, nil
}

func (m *memoryStore) HealthCheck(context.Context) error { return nil }

type steppingClock struct {
	now   time.Time
	steps []time.Duration
	calls int
}

func (s *steppingClock) Now() time.Time {
	current := s.now
	if s.calls < len(s.steps) {
		s.now = s.now.Add(s.steps[s.calls])
	}
	s.calls++
	return current
}

type turnHarness struct {
	client         *scriptedClient
	executor       *stubExecutor
	store          *memoryStore
	clock          *steppingClock
	slept          []time.Duration
	sqlSeenAtSleep []int
}

func newTurnHarness(steps ...time.Duration) *turnHarness {
	return &turnHarness{
		client:   &scriptedClient{},
		executor: &stubExecutor{schema: "CREATE TABLE users (id INTEGER, name TEXT)"},
		store:    &memoryStore{},
		clock:    &steppingClock{now: time.Unix(1700000000, 0), steps: steps},
	}
}

func (h *turnHarness) build(t *testing.T) *Controller {
	t.Helper()
	controller, err := NewController(context.Background(), Config{
		Provider:       "openai",
		Model:          "gpt-4o-mini",
		TaskTemplate:   "Schema:\n$db_schema\nReply with a JSON object.",
		InterCallDelay: 2500 * time.Millisecond,
		Target:         query.Target{Driver: query.DriverSQLite, DSN: "chat.sqlite"},
	}, Dependencies{
		Completions: h.client,
		Store:       h.store,
		NewExecutor: func(query.Target) (query.Executor, error) { return h.executor, nil },
		Clock:       h.clock.Now,
		Sleep: func(d time.Duration) {
			h.slept = append(h.slept, d)
			h.sqlSeenAtSleep = append(h.sqlSeenAtSleep, len(h.executor.statements))
		},
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	return controller
}

func reply(content, model string, promptTokens, completionTokens, totalTokens int) completion.Result {
	return completion.Result{
		Content: content,
		Model:   model,
		Usage: completion.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      totalTokens,
		},
	}
}

func TestNewControllerSnapshotsSchemaIntoSystemPrompt(t *testing.T) {
	h := newTurnHarness()
	controller := h.build(t)

	messages := controller.Transcript()
	if len(messages) != 1 {
		t.Fatalf("transcript length = %d, want 1", len(messages))
	}
	if messages[0].Role != completion.RoleSystem {
		t.Fatalf("first message role = %q, want %q", messages[0].Role, completion.RoleSystem)
	}
	want := "Schema:\nCREATE TABLE users (id INTEGER, name TEXT)\nReply with a JSON object."
	if messages[0].Content != want {
		t.Fatalf("system prompt = %q, want %q", messages[0].Content, want)
	}
	if !strings.HasPrefix(controller.SessionID(), "session_") {
		t.Fatalf("session id = %q, want session_ prefix", controller.SessionID())
	}
	if h.store.ensureCalls != 1 {
		t.Fatalf("EnsureSchema calls = %d, want 1", h.store.ensureCalls)
	}
	if len(h.store.created) != 1 || h.store.created[0] != controller.SessionID() {
		t.Fatalf("created sessions = %v, want [%s]", h.store.created, controller.SessionID())
	}

	var persisted []completion.Message
	if err := json.Unmarshal([]byte(h.store.logs[controller.SessionID()]), &persisted); err != nil {
		t.Fatalf("unmarshal persisted transcript: %v", err)
	}
	if !reflect.DeepEqual(persisted, messages) {
		t.Fatalf("persisted transcript = %+v, want %+v", persisted, messages)
	}
}

func TestNewControllerFailsWhenSchemaUnavailable(t *testing.T) {
	h := newTurnHarness()
	h.executor.schemaErr = errors.New("database contains no tables")

	_, err := NewController(context.Background(), Config{
		Provider:     "openai",
		Model:        "gpt-4o-mini",
		TaskTemplate: "$db_schema",
		Target:       query.Target{Driver: query.DriverSQLite, DSN: "chat.sqlite"},
	}, Dependencies{
		Completions: h.client,
		Store:       h.store,
		NewExecutor: func(query.Target) (query.Executor, error) { return h.executor, nil },
	})
	if err == nil {
		t.Fatal("NewController() error = nil, want schema failure")
	}
	if len(h.store.created) != 0 {
		t.Fatalf("created sessions = %v, want none", h.store.created)
	}
}

func TestNewControllerValidatesDependencies(t *testing.T) {
	h := newTurnHarness()
	base := Config{
		Provider:     "openai",
		Model:        "gpt-4o-mini",
		TaskTemplate: "$db_schema",
		Target:       query.Target{Driver: query.DriverSQLite, DSN: "chat.sqlite"},
	}
	deps := func() Dependencies {
		return Dependencies{
			Completions: h.client,
			Store:       h.store,
			NewExecutor: func(query.Target) (query.Executor, error) { return h.executor, nil },
		}
	}

	tests := []struct {
		name   string
		mutate func(cfg *Config, d *Dependencies)
	}{
		{"missing completion client", func(_ *Config, d *Dependencies) { d.Completions = nil }},
		{"missing store", func(_ *Config, d *Dependencies) { d.Store = nil }},
		{"blank task template", func(cfg *Config, _ *Dependencies) { cfg.TaskTemplate = "  " }},
		{"blank model", func(cfg *Config, _ *Dependencies) { cfg.Model = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			d := deps()
			tt.mutate(&cfg, &d)
			if _, err := NewController(context.Background(), cfg, d); err == nil {
				t.Fatal("NewController() error = nil, want validation failure")
			}
		})
	}
}

func TestSubmitTurnWithoutSQLReportsSentinel(t *testing.T) {
	h := newTurnHarness(800 * time.Millisecond)
	h.client.replies = []completion.Result{
		reply(`{"Answer": "Hello! Ask me about your data."}`, "gpt-4o-mini-2024-07-18", 12, 7, 19),
	}
	controller := h.build(t)

	result, err := controller.SubmitTurn(context.Background(), "Hi!")
	if err != nil {
		t.Fatalf("SubmitTurn() error = %v", err)
	}
	if result.Status != StatusOK {
		t.Fatalf("status = %q, want %q", result.Status, StatusOK)
	}
	if result.SQL != SQLNotApplicable {
		t.Fatalf("SQL = %q, want %q", result.SQL, SQLNotApplicable)
	}
	if result.Answer != "Hello! Ask me about your data." {
		t.Fatalf("answer = %q", result.Answer)
	}
	if result.Model != "gpt-4o-mini-2024-07-18" {
		t.Fatalf("model = %q, want backend reported model", result.Model)
	}
	if result.LatencyMS != 800 {
		t.Fatalf("latency = %d, want 800", result.LatencyMS)
	}
	wantUsage := TokenUsage{PromptTokens: 12, CompletionTokens: 7, TotalTokens: 19}
	if result.TokenUsage == nil || *result.TokenUsage != wantUsage {
		t.Fatalf("token usage = %+v, want %+v", result.TokenUsage, wantUsage)
	}
	if len(h.client.calls) != 1 {
		t.Fatalf("completion calls = %d, want 1", len(h.client.calls))
	}
	if len(h.executor.statements) != 0 {
		t.Fatalf("executed statements = %v, want none", h.executor.statements)
	}
	if got := len(controller.Transcript()); got != 3 {
		t.Fatalf("transcript length = %d, want 3", got)
	}
}

func TestSubmitTurnExecutesGeneratedSQL(t *testing.T) {
	h := newTurnHarness(800*time.Millisecond, 0, 1200*time.Millisecond)
	h.client.replies = []completion.Result{
		reply(`{"SQL": "SELECT COUNT(*) FROM users;", "Answer": "Looking that up."}`, "gpt-4o-mini-2024-07-18", 100, 20, 120),
		reply(`{"Answer": "There are 5 users."}`, "gpt-4o-mini-2024-07-18", 150, 30, 180),
	}
	h.executor.rows = [][]any{{int64(5)}}
	controller := h.build(t)

	result, err := controller.SubmitTurn(context.Background(), "How many users are there?")
	if err != nil {
		t.Fatalf("SubmitTurn() error = %v", err)
	}
	if result.Status != StatusOK {
		t.Fatalf("status = %q, want %q", result.Status, StatusOK)
	}
	if result.SQL != "SELECT COUNT(*) FROM users;" {
		t.Fatalf("SQL = %q", result.SQL)
	}
	if result.Answer != "There are 5 users." {
		t.Fatalf("answer = %q, want follow-up answer", result.Answer)
	}
	wantUsage := TokenUsage{PromptTokens: 250, CompletionTokens: 50, TotalTokens: 300}
	if result.TokenUsage == nil || *result.TokenUsage != wantUsage {
		t.Fatalf("token usage = %+v, want %+v", result.TokenUsage, wantUsage)
	}
	if result.LatencyMS != 4500 {
		t.Fatalf("latency = %d, want 800+2500+1200", result.LatencyMS)
	}

	if got := h.executor.statements; !reflect.DeepEqual(got, []string{"SELECT COUNT(*) FROM users;"}) {
		t.Fatalf("executed statements = %v", got)
	}
	if !reflect.DeepEqual(h.slept, []time.Duration{2500 * time.Millisecond}) {
		t.Fatalf("slept = %v, want one 2.5s delay", h.slept)
	}
	if !reflect.DeepEqual(h.sqlSeenAtSleep, []int{0}) {
		t.Fatalf("delay ran after execution: statements at sleep = %v", h.sqlSeenAtSleep)
	}

	if len(h.client.calls) != 2 {
		t.Fatalf("completion calls = %d, want 2", len(h.client.calls))
	}
	second := h.client.calls[1]
	if len(second) != 4 {
		t.Fatalf("follow-up call transcript length = %d, want 4", len(second))
	}
	report := second[3]
	if report.Role != completion.RoleUser {
		t.Fatalf("report role = %q, want %q", report.Role, completion.RoleUser)
	}
	wantReport := "SQL:\nSELECT COUNT(*) FROM users;\n\nOutput:\n(5)"
	if report.Content != wantReport {
		t.Fatalf("report = %q, want %q", report.Content, wantReport)
	}

	messages := controller.Transcript()
	if len(messages) != 5 {
		t.Fatalf("transcript length = %d, want 5", len(messages))
	}
	var persisted []completion.Message
	if err := json.Unmarshal([]byte(h.store.logs[controller.SessionID()]), &persisted); err != nil {
		t.Fatalf("unmarshal persisted transcript: %v", err)
	}
	if !reflect.DeepEqual(persisted, messages) {
		t.Fatalf("persisted transcript diverged from memory")
	}
}

func TestSubmitTurnKeepsFirstAnswerWhenFollowUpOmitsIt(t *testing.T) {
	h := newTurnHarness(800*time.Millisecond, 0, 1200*time.Millisecond)
	h.client.replies = []completion.Result{
		reply(`{"SQL": "SELECT 1;", "Answer": "On it."}`, "gpt-4o-mini-2024-07-18", 10, 5, 15),
		reply(`{}`, "gpt-4o-mini-2024-07-18", 20, 5, 25),
	}
	controller := h.build(t)

	result, err := controller.SubmitTurn(context.Background(), "ping the database")
	if err != nil {
		t.Fatalf("SubmitTurn() error = %v", err)
	}
	if result.Status != StatusOK {
		t.Fatalf("status = %q, want %q", result.Status, StatusOK)
	}
	if result.Answer != "On it." {
		t.Fatalf("answer = %q, want first phase answer retained", result.Answer)
	}
	wantUsage := TokenUsage{PromptTokens: 30, CompletionTokens: 10, TotalTokens: 40}
	if result.TokenUsage == nil || *result.TokenUsage != wantUsage {
		t.Fatalf("token usage = %+v, want %+v", result.TokenUsage, wantUsage)
	}
}

func TestSubmitTurnReportsEmptyOutputWhenStatementFails(t *testing.T) {
	h := newTurnHarness(800*time.Millisecond, 0, 1200*time.Millisecond)
	h.client.replies = []completion.Result{
		reply(`{"SQL": "SELECT * FROM missing;"}`, "gpt-4o-mini-2024-07-18", 10, 5, 15),
		reply(`{"Answer": "That table does not exist."}`, "gpt-4o-mini-2024-07-18", 20, 5, 25),
	}
	h.executor.execErr = errors.New("no such table: missing")
	controller := h.build(t)

	result, err := controller.SubmitTurn(context.Background(), "show me the missing table")
	if err != nil {
		t.Fatalf("SubmitTurn() error = %v", err)
	}
	if result.Status != StatusOK {
		t.Fatalf("status = %q, want %q", result.Status, StatusOK)
	}
	report := h.client.calls[1][3].Content
	want := "SQL:\nSELECT * FROM missing;\n\nOutput:\n"
	if report != want {
		t.Fatalf("report = %q, want %q", report, want)
	}
}

func TestSubmitTurnFailsClosedOnFirstTransportError(t *testing.T) {
	h := newTurnHarness(800 * time.Millisecond)
	h.client.errs = []error{errors.New("connection refused")}
	controller := h.build(t)

	result, err := controller.SubmitTurn(context.Background(), "How many users are there?")
	if err != nil {
		t.Fatalf("SubmitTurn() error = %v", err)
	}
	want := TurnResult{
		SessionID: controller.SessionID(),
		Provider:  "openai",
		Status:    StatusError,
		Model:     "gpt-4o-mini",
	}
	if !reflect.DeepEqual(result, want) {
		t.Fatalf("result = %+v, want %+v", result, want)
	}
	if len(h.executor.statements) != 0 {
		t.Fatalf("executed statements = %v, want none", h.executor.statements)
	}
	if got := len(controller.Transcript()); got != 2 {
		t.Fatalf("transcript length = %d, want 2", got)
	}

	raw, merr := json.Marshal(result)
	if merr != nil {
		t.Fatalf("marshal result: %v", merr)
	}
	var keys map[string]any
	if uerr := json.Unmarshal(raw, &keys); uerr != nil {
		t.Fatalf("unmarshal result: %v", uerr)
	}
	for _, key := range []string{"latency_ms", "token_usage", "SQL", "Answer"} {
		if _, present := keys[key]; present {
			t.Fatalf("error result carries %q: %s", key, raw)
		}
	}
}

func TestSubmitTurnKeepsFirstPhaseAccountingOnSecondTransportError(t *testing.T) {
	h := newTurnHarness(800*time.Millisecond, 0, 1200*time.Millisecond)
	h.client.replies = []completion.Result{
		reply(`{"SQL": "SELECT COUNT(*) FROM users;", "Answer": "Counting."}`, "gpt-4o-mini-2024-07-18", 100, 20, 120),
	}
	h.client.errs = []error{nil, errors.New("gateway timeout")}
	h.executor.rows = [][]any{{int64(5)}}
	controller := h.build(t)

	result, err := controller.SubmitTurn(context.Background(), "How many users are there?")
	if err != nil {
		t.Fatalf("SubmitTurn() error = %v", err)
	}
	if result.Status != StatusError {
		t.Fatalf("status = %q, want %q", result.Status, StatusError)
	}
	if result.SQL != "SELECT COUNT(*) FROM users;" {
		t.Fatalf("SQL = %q, want first phase statement kept", result.SQL)
	}
	if result.Answer != "Counting." {
		t.Fatalf("answer = %q, want first phase answer kept", result.Answer)
	}
	if result.Model != "gpt-4o-mini-2024-07-18" {
		t.Fatalf("model = %q, want first phase model kept", result.Model)
	}
	if result.LatencyMS != 800 {
		t.Fatalf("latency = %d, want first call only", result.LatencyMS)
	}
	wantUsage := TokenUsage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120}
	if result.TokenUsage == nil || *result.TokenUsage != wantUsage {
		t.Fatalf("token usage = %+v, want %+v", result.TokenUsage, wantUsage)
	}
	if got := len(controller.Transcript()); got != 4 {
		t.Fatalf("transcript length = %d, want 4", got)
	}
}

func TestSubmitTurnPropagatesMalformedFirstReply(t *testing.T) {
	h := newTurnHarness(800 * time.Millisecond)
	h.client.replies = []completion.Result{
		reply("the database has five users", "gpt-4o-mini-2024-07-18", 10, 5, 15),
	}
	controller := h.build(t)

	result, err := controller.SubmitTurn(context.Background(), "How many users are there?")
	if !errors.Is(err, ErrMalformedReply) {
		t.Fatalf("SubmitTurn() error = %v, want ErrMalformedReply", err)
	}
	if !reflect.DeepEqual(result, TurnResult{}) {
		t.Fatalf("result = %+v, want zero value", result)
	}
	if got := len(controller.Transcript()); got != 3 {
		t.Fatalf("transcript length = %d, want 3", got)
	}
}

func TestSubmitTurnPropagatesMalformedFollowUpReply(t *testing.T) {
	h := newTurnHarness(800*time.Millisecond, 0, 1200*time.Millisecond)
	h.client.replies = []completion.Result{
		reply(`{"SQL": "SELECT 1;"}`, "gpt-4o-mini-2024-07-18", 10, 5, 15),
		reply("```json\nnot a json object\n```", "gpt-4o-mini-2024-07-18", 20, 5, 25),
	}
	controller := h.build(t)

	_, err := controller.SubmitTurn(context.Background(), "ping")
	if !errors.Is(err, ErrMalformedReply) {
		t.Fatalf("SubmitTurn() error = %v, want ErrMalformedReply", err)
	}
	if got := len(controller.Transcript()); got != 5 {
		t.Fatalf("transcript length = %d, want 5", got)
	}
}

func TestSubmitTurnSurvivesPersistFailures(t *testing.T) {
	h := newTurnHarness(800 * time.Millisecond)
	h.client.replies = []completion.Result{
		reply(`{"Answer": "Hi."}`, "gpt-4o-mini-2024-07-18", 10, 5, 15),
	}
	controller := h.build(t)
	h.store.updateErr = errors.New("disk full")

	result, err := controller.SubmitTurn(context.Background(), "Hi")
	if err != nil {
		t.Fatalf("SubmitTurn() error = %v", err)
	}
	if result.Status != StatusOK {
		t.Fatalf("status = %q, want %q", result.Status, StatusOK)
	}
	if got := len(controller.Transcript()); got != 3 {
		t.Fatalf("transcript length = %d, want 3", got)
	}
}

func TestReconfigureOpensFreshSession(t *testing.T) {
	h := newTurnHarness(800 * time.Millisecond)
	h.client.replies = []completion.Result{
		reply(`{"Answer": "Hi."}`, "gpt-4o-mini-2024-07-18", 10, 5, 15),
	}
	controller := h.build(t)
	if _, err := controller.SubmitTurn(context.Background(), "Hi"); err != nil {
		t.Fatalf("SubmitTurn() error = %v", err)
	}
	previousID := controller.SessionID()

	h.executor.schema = "CREATE TABLE orders (id INTEGER, total REAL)"
	target := query.Target{Driver: query.DriverSQLite, DSN: "orders.sqlite"}
	if err := controller.Reconfigure(context.Background(), target); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}

	if controller.SessionID() == previousID {
		t.Fatal("session id unchanged after reconfigure")
	}
	if got := controller.Target(); got != target {
		t.Fatalf("target = %+v, want %+v", got, target)
	}
	messages := controller.Transcript()
	if len(messages) != 1 {
		t.Fatalf("transcript length = %d, want 1", len(messages))
	}
	if !strings.Contains(messages[0].Content, "CREATE TABLE orders") {
		t.Fatalf("system prompt = %q, want new schema", messages[0].Content)
	}
	if len(h.store.created) != 2 {
		t.Fatalf("created sessions = %v, want two", h.store.created)
	}
}

func TestReconfigureKeepsSessionOnFailure(t *testing.T) {
	h := newTurnHarness(800 * time.Millisecond)
	h.client.replies = []completion.Result{
		reply(`{"Answer": "Hi."}`, "gpt-4o-mini-2024-07-18", 10, 5, 15),
	}
	controller := h.build(t)
	if _, err := controller.SubmitTurn(context.Background(), "Hi"); err != nil {
		t.Fatalf("SubmitTurn() error = %v", err)
	}
	previousID := controller.SessionID()
	previousTarget := controller.Target()

	h.executor.schemaErr = errors.New("database contains no tables")
	err := controller.Reconfigure(context.Background(), query.Target{Driver: query.DriverSQLite, DSN: "empty.sqlite"})
	if err == nil {
		t.Fatal("Reconfigure() error = nil, want schema failure")
	}

	if controller.SessionID() != previousID {
		t.Fatal("session id changed after failed reconfigure")
	}
	if controller.Target() != previousTarget {
		t.Fatalf("target = %+v, want %+v", controller.Target(), previousTarget)
	}
	if got := len(controller.Transcript()); got != 3 {
		t.Fatalf("transcript length = %d, want 3", got)
	}
}

func TestTurnResultJSONRoundTrip(t *testing.T) {
	usage := TokenUsage{PromptTokens: 250, CompletionTokens: 50, TotalTokens: 300}
	result := TurnResult{
		SessionID:  "session_abc",
		Provider:   "openai",
		Status:     StatusOK,
		Model:      "gpt-4o-mini-2024-07-18",
		LatencyMS:  4500,
		TokenUsage: &usage,
		SQL:        "SELECT COUNT(*) FROM users;",
		Answer:     "There are 5 users.",
	}

	raw, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var keys map[string]any
	if err := json.Unmarshal(raw, &keys); err != nil {
		t.Fatalf("unmarshal keys: %v", err)
	}
	for _, key := range []string{"session_id", "provider", "status", "model", "latency_ms", "token_usage", "SQL", "Answer"} {
		if _, present := keys[key]; !present {
			t.Fatalf("marshaled result missing %q: %s", key, raw)
		}
	}
	if len(keys) != 8 {
		t.Fatalf("marshaled result has %d keys, want 8: %s", len(keys), raw)
	}

	var decoded TurnResult
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !reflect.DeepEqual(decoded, result) {
		t.Fatalf("round trip = %+v, want %+v", decoded, result)
	}
}
