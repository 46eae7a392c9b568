package orchestrator

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"contract-hooks/internal/classify"
	"contract-hooks/internal/logger"
	"contract-hooks/internal/parser"
	"contract-hooks/internal/session"
	"contract-hooks/internal/testdata"
	"contract-hooks/internal/types"
)

// InvalidToken is injected for transactions that expect an unauthorized response
const InvalidToken = "invalid-token"

var (
	trailingID    = regexp.MustCompile(`/(\d+|\{[^/{}]+\})$`)
	actionSegment = regexp.MustCompile(`/[^/]+$`)
)

// Stage is a step a transaction has passed through
type Stage int

const (
	StagePending Stage = iota
	StageSkipped
	StageAuthInjected
	StagePayloadSynthesized
	StageTargetRewritten
	StageDispatched
	StageResponseCaptured
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageSkipped:
		return "skipped"
	case StageAuthInjected:
		return "auth_injected"
	case StagePayloadSynthesized:
		return "payload_synthesized"
	case StageTargetRewritten:
		return "target_rewritten"
	case StageDispatched:
		return "dispatched"
	case StageResponseCaptured:
		return "response_captured"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// Config holds the orchestrator settings
type Config struct {
	AuthHeader      string
	TokenPrefix     string
	LoginEndpoint   string
	SkipAll         bool
	SkipPatterns    []string
	DynamicData     bool
	ErrorSimulation bool
	SimulateParam   string
	NotFoundID      string
	FallbackID      string
}

// Preparation records what Prepare did to a transaction
type Preparation struct {
	Outcome types.OutcomeClass
	Status  int
	Stages  []Stage
}

// Has reports whether the preparation passed through stage
func (p Preparation) Has(stage Stage) bool {
	for _, s := range p.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// Completion records what Complete captured from a response
type Completion struct {
	Capture session.Capture
	Stages  []Stage
	Err     error
}

// Orchestrator prepares transactions before dispatch and threads response state forward
type Orchestrator struct {
	config   Config
	registry *parser.Registry
	session  *session.Store
	synth    *testdata.Synthesizer
	outcomes *classify.OutcomeClassifier
	log      *zap.Logger
}

// New creates a new orchestrator
func New(config Config, registry *parser.Registry, store *session.Store, synth *testdata.Synthesizer, outcomes *classify.OutcomeClassifier, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if config.SimulateParam == "" {
		config.SimulateParam = "simulate"
	}
	return &Orchestrator{
		config:   config,
		registry: registry,
		session:  store,
		synth:    synth,
		outcomes: outcomes,
		log:      log,
	}
}

// Session returns the session state the orchestrator threads between transactions
func (o *Orchestrator) Session() *session.Store {
	return o.session
}

// Prepare runs skip, auth, payload and target steps on tx in place
func (o *Orchestrator) Prepare(tx *types.Transaction) Preparation {
	outcome, status := o.outcomes.Match(tx.Name)
	prep := Preparation{Outcome: outcome, Status: status, Stages: []Stage{StagePending}}
	fields := logger.TransactionFields(tx, outcome)

	if o.shouldSkip(tx.Name) {
		tx.Skip = true
		prep.Stages = append(prep.Stages, StageSkipped)
		o.log.Debug("skipping transaction", fields...)
		return prep
	}

	if tx.Request.Headers == nil {
		tx.Request.Headers = make(map[string]string)
	}
	method := strings.ToUpper(tx.Request.Method)
	uri := parser.StripQuery(tx.Request.URI)
	endpoint, found := o.registry.Lookup(method, uri)

	if found && endpoint.RequiresAuth && o.injectAuth(tx, outcome, fields) {
		prep.Stages = append(prep.Stages, StageAuthInjected)
	}

	synthesized := false
	if o.config.DynamicData && found {
		synthesized = o.synthesizePayload(tx, endpoint, outcome, fields)
	}
	if method == "POST" && o.isLogin(uri) {
		if body, err := testdata.LoginCredentials(outcome, o.session); err == nil {
			synthesized = setBody(tx, body) || synthesized
			o.log.Debug("using login credentials", fields...)
		}
	}
	if synthesized {
		prep.Stages = append(prep.Stages, StagePayloadSynthesized)
	}

	if o.config.ErrorSimulation && o.rewriteTarget(tx, method, uri, outcome, synthesized) {
		prep.Stages = append(prep.Stages, StageTargetRewritten)
		o.log.Debug("rewrote request target", append(fields, zap.String("target", tx.Request.URI))...)
	}

	prep.Stages = append(prep.Stages, StageDispatched)
	return prep
}

// Complete captures session state from the real response. It never fails; capture
// misses are reported in the returned Completion.
func (o *Orchestrator) Complete(tx *types.Transaction) Completion {
	done := Completion{Stages: []Stage{StageDispatched}}
	if tx.Real == nil {
		done.Err = session.ErrNothingCaptured
		done.Stages = append(done.Stages, StageDone)
		return done
	}

	uri := parser.StripQuery(tx.Request.URI)
	capture, err := o.session.Capture(tx.Request.Method, tx.Real.StatusCode, tx.Request.Body, tx.Real.Body, uri)
	done.Capture = capture
	done.Err = err

	switch {
	case err == nil:
		done.Stages = append(done.Stages, StageResponseCaptured)
		fields := []zap.Field{zap.String("transaction", tx.Name), zap.String("uri", uri)}
		if capture.Token {
			token, _ := o.session.AuthToken()
			fields = append(fields, zap.String("token", logger.Preview(token, 20)))
		}
		if capture.ResourceID != "" {
			fields = append(fields, zap.String("resource", capture.ResourceType), zap.String("id", capture.ResourceID))
		}
		if capture.Credentials {
			creds, _ := o.session.Credentials()
			fields = append(fields, zap.String("registered", creds.Email))
		}
		o.log.Info("captured session state", fields...)
	case errors.Is(err, session.ErrNotJSON), errors.Is(err, session.ErrNothingCaptured):
		o.log.Debug("no session state captured", zap.String("transaction", tx.Name), zap.Error(err))
	}

	done.Stages = append(done.Stages, StageDone)
	return done
}

func (o *Orchestrator) shouldSkip(name string) bool {
	if o.config.SkipAll {
		return true
	}
	for _, pattern := range o.config.SkipPatterns {
		if pattern != "" && strings.Contains(name, pattern) {
			return true
		}
	}
	return false
}

// injectAuth sets the auth header. Without a captured token the request goes out
// unauthenticated and a 401 from the system under test is acceptable.
func (o *Orchestrator) injectAuth(tx *types.Transaction, outcome types.OutcomeClass, fields []zap.Field) bool {
	if outcome == types.OutcomeUnauthorized {
		tx.Request.Headers[o.config.AuthHeader] = o.config.TokenPrefix + InvalidToken
		o.log.Debug("using invalid token", fields...)
		return true
	}
	token, ok := o.session.AuthToken()
	if !ok {
		o.log.Warn("no auth token available", fields...)
		return false
	}
	tx.Request.Headers[o.config.AuthHeader] = o.config.TokenPrefix + token
	o.log.Debug("adding auth token", fields...)
	return true
}

func (o *Orchestrator) synthesizePayload(tx *types.Transaction, endpoint *parser.Endpoint, outcome types.OutcomeClass, fields []zap.Field) bool {
	body, err := o.synth.Synthesize(endpoint.RequestSchema, outcome, o.session)
	if err != nil {
		o.log.Debug("no payload synthesized", append(fields, zap.Error(err))...)
		return false
	}
	if !setBody(tx, body) {
		return false
	}
	o.log.Debug("generated test data", append(fields, zap.String("body", tx.Request.Body))...)
	return true
}

func (o *Orchestrator) isLogin(uri string) bool {
	login := o.config.LoginEndpoint
	return login != "" && (uri == login || strings.HasSuffix(uri, login))
}

// rewriteTarget points negative-outcome transactions at targets that provoke the
// expected status. The simulate parameter is a convention the system under test
// must implement.
func (o *Orchestrator) rewriteTarget(tx *types.Transaction, method, uri string, outcome types.OutcomeClass, synthesized bool) bool {
	hasID := trailingID.MatchString(uri)
	query := queryOf(tx.Request.URI)

	if base, action, ok := keyedTarget(method, uri); ok {
		resourceType := session.ResourceType(base)
		switch outcome {
		case types.OutcomeNotFound:
			return o.setTarget(tx, base+"/"+o.config.NotFoundID+action, query)
		case types.OutcomeUnauthorized:
			return o.setTarget(tx, base+"/"+o.config.FallbackID+action, query)
		case types.OutcomeBadRequest:
			id := o.session.ResourceIDOr(resourceType, o.config.FallbackID)
			return o.setTarget(tx, base+"/"+id+action, o.withSimulate(query, "400"))
		case types.OutcomeSuccess:
			id := o.session.ResourceIDOr(resourceType, o.config.FallbackID)
			return o.setTarget(tx, base+"/"+id+action, query)
		default:
			o.log.Debug("no target rule for delete-style transaction", zap.String("transaction", tx.Name))
			return false
		}
	}

	switch outcome {
	case types.OutcomeNotFound:
		if hasID {
			return o.setTarget(tx, trailingID.ReplaceAllString(uri, "/"+o.config.NotFoundID), query)
		}
		return o.setTarget(tx, uri, o.withSimulate(query, "404"))
	case types.OutcomeServerError:
		return o.setTarget(tx, uri, o.withSimulate(query, "500"))
	case types.OutcomeBadRequest:
		if hasID && !synthesized {
			return o.setTarget(tx, uri, o.withSimulate(query, "400"))
		}
	}
	return false
}

func (o *Orchestrator) setTarget(tx *types.Transaction, path, query string) bool {
	target := path
	if query != "" {
		target += "?" + query
	}
	if target == tx.Request.URI {
		return false
	}
	tx.Request.URI = target
	tx.FullPath = target
	return true
}

func (o *Orchestrator) withSimulate(query, code string) string {
	param := o.config.SimulateParam + "=" + code
	if query == "" {
		return param
	}
	return query + "&" + param
}

func setBody(tx *types.Transaction, body map[string]interface{}) bool {
	data, err := json.Marshal(body)
	if err != nil {
		return false
	}
	tx.Request.Body = string(data)
	return true
}

func queryOf(uri string) string {
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		return uri[i+1:]
	}
	return ""
}

func isDeleteStyle(method, uri string) bool {
	return method == "DELETE" || strings.Contains(strings.ToLower(uri), "cancel")
}

// keyedTarget splits a delete or cancel path into the collection before the resource
// id and the action after it, e.g. "/api/orders" and "/cancel" for /api/orders/7/cancel.
func keyedTarget(method, uri string) (base, action string, ok bool) {
	if !isDeleteStyle(method, uri) {
		return "", "", false
	}
	if trailingID.MatchString(uri) {
		return trailingID.ReplaceAllString(uri, ""), "", true
	}
	loc := actionSegment.FindStringIndex(uri)
	if loc == nil {
		return "", "", false
	}
	prefix, action := uri[:loc[0]], uri[loc[0]:]
	if !strings.Contains(strings.ToLower(action), "cancel") || !trailingID.MatchString(prefix) {
		return "", "", false
	}
	return trailingID.ReplaceAllString(prefix, ""), action, true
}
