package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"worldbuilder-agent/internal/config"
	"worldbuilder-agent/internal/integrations/gemini"
	"worldbuilder-agent/internal/integrations/openai"
	"worldbuilder-agent/internal/integrations/paramstore"
	"worldbuilder-agent/internal/memory"
	"worldbuilder-agent/internal/metrics"
	"worldbuilder-agent/internal/registry"
	"worldbuilder-agent/internal/repository"
	"worldbuilder-agent/internal/routing"
	"worldbuilder-agent/internal/usecase"
)

var loadAWSConfig = func(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx)
}

// App holds the wired router and the components the entry points expose.
type App struct {
	Config   *config.Config
	Registry *registry.Registry
	Memory   *memory.Store
	Service  *usecase.RouteService
	Metrics  *metrics.Recorder
	// Audit is nil unless audit.table is configured.
	Audit *repository.Client
}

// Build wires the router from cfg. AWS clients are created only when the
// parameter store or the audit table is configured.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		awsCfg aws.Config
		store  paramstore.Getter
		audit  *repository.Client
	)
	if cfg.UsesParamStore() || cfg.Audit.Table != "" {
		var err error
		awsCfg, err = loadAWSConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: load AWS config: %w", err)
		}
	}
	if cfg.UsesParamStore() {
		ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg), cfg.Params.Prefix)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		if err := cfg.ApplyParams(ctx, ps); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		store = ps
	}
	if cfg.Audit.Table != "" {
		var err error
		audit, err = repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.Audit.Table)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	llm, err := newLLM(cfg, cfg.TokenGetter(store))
	if err != nil {
		return nil, err
	}

	rec := metrics.New()
	reg := registry.Builtin()
	mem := memory.New()

	adapter, err := routing.NewOracleAdapter(
		rec.InstrumentLLM(llm, metrics.StageSelection),
		cfg.Oracle.SelectorModel,
		routing.WithAdapterLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	selector, err := routing.NewSelector(adapter, reg, logger)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	opts := []usecase.Option{
		usecase.WithMaxInputLength(cfg.Service.MaxInputLength),
		usecase.WithTemperature(cfg.Oracle.Temperature),
		usecase.WithTimeout(cfg.Oracle.Timeout),
		usecase.WithObserver(rec),
		usecase.WithLogger(logger),
	}
	if audit != nil {
		opts = append(opts, usecase.WithTurnRecorder(audit))
	}
	svc, err := usecase.NewRouteService(reg, selector, rec.InstrumentLLM(llm, metrics.StageHandler), mem, cfg.Oracle.HandlerModel, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	logger.Info("router ready",
		zap.String("provider", cfg.Oracle.Provider),
		zap.String("selector_model", cfg.Oracle.SelectorModel),
		zap.String("handler_model", cfg.Oracle.HandlerModel),
		zap.Strings("capabilities", reg.Names()),
		zap.Bool("audit", audit != nil),
	)

	return &App{
		Config:   cfg,
		Registry: reg,
		Memory:   mem,
		Service:  svc,
		Metrics:  rec,
		Audit:    audit,
	}, nil
}

func newLLM(cfg *config.Config, tokens paramstore.Getter) (usecase.LLMClient, error) {
	switch cfg.Oracle.Provider {
	case config.ProviderGemini:
		var opts []gemini.Option
		if cfg.Oracle.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.Oracle.BaseURL))
		}
		c, err := gemini.NewClient(tokens, config.TokenParam, opts...)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return c, nil
	case config.ProviderOpenAI:
		var opts []openai.Option
		if cfg.Oracle.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Oracle.BaseURL))
		}
		c, err := openai.NewClient(tokens, config.TokenParam, opts...)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("app: unknown oracle provider %q", cfg.Oracle.Provider)
	}
}

// OpenAudit connects to the configured audit table without building the
// router, so the log can be read without oracle credentials.
func OpenAudit(ctx context.Context, cfg *config.Config) (*repository.Client, error) {
	if cfg == nil || cfg.Audit.Table == "" {
		return nil, errors.New("app: audit.table is not configured")
	}
	awsCfg, err := loadAWSConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load AWS config: %w", err)
	}
	audit, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.Audit.Table)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return audit, nil
}
