package orchestrator

import (
	"go.uber.org/zap"

	"contract-hooks/internal/classify"
	"contract-hooks/internal/config"
	"contract-hooks/internal/parser"
	"contract-hooks/internal/session"
	"contract-hooks/internal/testdata"
)

// FromConfig wires a fresh session, classifiers and synthesizer for one run
func FromConfig(cfg *config.Config, registry *parser.Registry, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	login, register := AuthEndpoints(cfg, registry)

	fields := classify.NewFieldClassifier(classify.Patterns{
		Email:      cfg.Fields.Email,
		Password:   cfg.Fields.Password,
		Identifier: cfg.Fields.Identifier,
		Token:      cfg.Fields.Token,
	}, cfg.AutoDetectIDFields())

	store := session.NewStore(session.CaptureConfig{
		LoginEndpoint:    login,
		RegisterEndpoint: register,
		SuccessCodes:     cfg.Status.Success,
		TokenPatterns:    cfg.Fields.Token,
		TokenField:       cfg.Auth.TokenField,
		AutoDetectTokens: cfg.AutoDetectTokenFields(),
	}, fields)

	money := make([]testdata.MoneyRange, 0, len(cfg.Fields.Money))
	for _, m := range cfg.Fields.Money {
		money = append(money, testdata.MoneyRange{Pattern: m.Pattern, Min: m.Min, Max: m.Max})
	}
	synth := testdata.NewSynthesizer(fields, registry, testdata.Options{
		EmailSuffix: cfg.Fields.EmailSuffix,
		Money:       money,
	})

	outcomes := classify.NewOutcomeClassifier(cfg.Status.Success, cfg.Status.Error)

	log.Debug("orchestrator configured",
		zap.String("login", login),
		zap.String("register", register),
		zap.Bool("dynamic_data", cfg.DynamicData()),
		zap.Bool("error_simulation", cfg.ErrorSimulation()))

	return New(Config{
		AuthHeader:      cfg.Auth.HeaderName,
		TokenPrefix:     cfg.TokenPrefix(),
		LoginEndpoint:   login,
		SkipAll:         cfg.Features.SkipAll,
		SkipPatterns:    cfg.Features.SkipPatterns,
		DynamicData:     cfg.DynamicData(),
		ErrorSimulation: cfg.ErrorSimulation(),
		SimulateParam:   cfg.Simulation.Param,
		NotFoundID:      cfg.Simulation.NotFoundID,
		FallbackID:      cfg.Simulation.FallbackID,
	}, registry, store, synth, outcomes, log)
}

// AuthEndpoints returns the login and register paths. Auto-discovered paths only
// replace values still at their defaults.
func AuthEndpoints(cfg *config.Config, registry *parser.Registry) (login, register string) {
	login, register = cfg.Auth.LoginEndpoint, cfg.Auth.RegisterEndpoint
	if !cfg.Features.AutoDiscovery || registry == nil {
		return login, register
	}
	found := registry.Discovered()
	if login == config.DefaultLoginEndpoint && found.Login != "" {
		login = found.Login
	}
	if register == config.DefaultRegisterEndpoint && found.Register != "" {
		register = found.Register
	}
	return login, register
}
