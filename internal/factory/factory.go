// Package factory turns named, YAML-configured modules into live plugin
// instances. It is the only place in the module that imports both
// internal/config and the concrete plugins/* packages — internal/session
// only ever sees the resulting interfaces, so swapping in a different TTS
// vendor never touches the dialog pipeline.
package factory

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"xiaozhi-go/internal/config"
	"xiaozhi-go/internal/session"
	"xiaozhi-go/plugins/openai"
	"xiaozhi-go/services/asr"
	"xiaozhi-go/services/intent"
	"xiaozhi-go/services/llm"
	"xiaozhi-go/services/memory"
	"xiaozhi-go/services/tools"
	"xiaozhi-go/services/tts"
	"xiaozhi-go/services/vad"
)

// Factory builds session.Collaborators from config, holding onto the
// shared, process-wide clients (Redis, NATS, the local tool registry)
// that every session's collaborators are built on top of.
type Factory struct {
	redisClient *redis.Client
	natsConn    *nats.Conn
	localTools  *tools.ToolRegistry
}

// New creates a factory. redisClient and natsConn may be nil when a
// deployment's config never names a module that needs them.
func New(redisClient *redis.Client, natsConn *nats.Conn, localTools *tools.ToolRegistry) *Factory {
	return &Factory{redisClient: redisClient, natsConn: natsConn, localTools: localTools}
}

// selection names which configured module to use for each concern.
type selection struct {
	VAD, ASR, LLM, TTS, Intent, Memory string
}

// Build resolves selection against modules and constructs one
// Collaborators set plus the system prompt carried in the LLM module's
// config (the one piece of module config the dialog engine itself needs
// rather than the plugin).
func (f *Factory) Build(sel selection, modules map[string]config.ModuleConfig) (session.Collaborators, string, error) {
	var collab session.Collaborators
	var systemPrompt string
	var err error

	if collab.LLM, systemPrompt, err = f.buildLLM(sel.LLM, modules); err != nil {
		return collab, "", err
	}
	if collab.VAD, err = f.buildVAD(sel.VAD, modules); err != nil {
		return collab, "", err
	}
	if collab.ASR, err = f.buildASR(sel.ASR, modules); err != nil {
		return collab, "", err
	}
	if collab.TTS, err = f.buildTTS(sel.TTS, modules); err != nil {
		return collab, "", err
	}
	if collab.Memory, err = f.buildMemory(sel.Memory, modules); err != nil {
		return collab, "", err
	}
	if collab.Intent, err = f.buildIntent(sel.Intent, modules, collab.LLM); err != nil {
		return collab, "", err
	}
	collab.Tools = f.localTools
	if f.natsConn != nil {
		collab.Remote = tools.NewRemoteManager(f.natsConn, 0)
	}

	return collab, systemPrompt, nil
}

// BuildDefault builds the server-wide default Collaborators from a
// loaded Config's selected_module block, before any device-specific
// override is known.
func (f *Factory) BuildDefault(cfg *config.Config) (session.Collaborators, string, error) {
	return f.Build(selection{
		VAD:    cfg.SelectedModule.VAD,
		ASR:    cfg.SelectedModule.ASR,
		LLM:    cfg.SelectedModule.LLM,
		TTS:    cfg.SelectedModule.TTS,
		Intent: cfg.SelectedModule.Intent,
		Memory: cfg.SelectedModule.Memory,
	}, cfg.Modules)
}

// Rebuild adapts Build to session.RebuildFunc, merging a device's private
// config on top of the server-wide module table: a private module
// definition with the same name shadows the server default, and any
// selected_module entry the device overlay leaves blank keeps the server
// default's choice.
func (f *Factory) Rebuild(base *config.Config) session.RebuildFunc {
	return func(_ context.Context, private *config.PrivateConfig) (session.Collaborators, string, error) {
		modules := make(map[string]config.ModuleConfig, len(base.Modules)+len(private.Modules))
		for name, mod := range base.Modules {
			modules[name] = mod
		}
		for name, mod := range private.Modules {
			modules[name] = mod
		}

		sel := selection{
			VAD:    coalesce(private.SelectedModule["VAD"], base.SelectedModule.VAD),
			ASR:    coalesce(private.SelectedModule["ASR"], base.SelectedModule.ASR),
			LLM:    coalesce(private.SelectedModule["LLM"], base.SelectedModule.LLM),
			TTS:    coalesce(private.SelectedModule["TTS"], base.SelectedModule.TTS),
			Intent: coalesce(private.SelectedModule["Intent"], base.SelectedModule.Intent),
			Memory: coalesce(private.SelectedModule["Memory"], base.SelectedModule.Memory),
		}
		return f.Build(sel, modules)
	}
}

func coalesce(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

func lookup(name string, modules map[string]config.ModuleConfig) (config.ModuleConfig, error) {
	mod, ok := modules[name]
	if !ok {
		return config.ModuleConfig{}, fmt.Errorf("factory: module %q not configured", name)
	}
	return mod, nil
}

func stringOption(mod config.ModuleConfig, key, fallback string) string {
	if v, ok := mod.Options[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func float64Option(mod config.ModuleConfig, key string, fallback float64) float64 {
	if v, ok := mod.Options[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return fallback
}

func (f *Factory) buildLLM(name string, modules map[string]config.ModuleConfig) (llm.LLM, string, error) {
	if name == "" {
		return nil, "", nil
	}
	mod, err := lookup(name, modules)
	if err != nil {
		return nil, "", err
	}
	switch mod.Type {
	case "openai":
		apiKey := stringOption(mod, "api_key", "")
		model := stringOption(mod, "model", "gpt-4o-mini")
		prompt := stringOption(mod, "prompt", "")
		return openai.NewGPTLLM(apiKey, model), prompt, nil
	default:
		return nil, "", fmt.Errorf("factory: unknown LLM module type %q", mod.Type)
	}
}

func (f *Factory) buildASR(name string, modules map[string]config.ModuleConfig) (asr.Recognizer, error) {
	if name == "" {
		return nil, nil
	}
	mod, err := lookup(name, modules)
	if err != nil {
		return nil, err
	}
	switch mod.Type {
	case "openai":
		apiKey := stringOption(mod, "api_key", "")
		return openai.NewWhisperASR(apiKey), nil
	default:
		return nil, fmt.Errorf("factory: unknown ASR module type %q", mod.Type)
	}
}

func (f *Factory) buildTTS(name string, modules map[string]config.ModuleConfig) (tts.Engine, error) {
	if name == "" {
		return nil, nil
	}
	mod, err := lookup(name, modules)
	if err != nil {
		return nil, err
	}
	switch mod.Type {
	case "openai":
		apiKey := stringOption(mod, "api_key", "")
		return openai.NewEngine(apiKey), nil
	default:
		return nil, fmt.Errorf("factory: unknown TTS module type %q", mod.Type)
	}
}

func (f *Factory) buildVAD(name string, modules map[string]config.ModuleConfig) (vad.Detector, error) {
	if name == "" {
		return vad.NewEnergyDetector(2.0), nil
	}
	mod, err := lookup(name, modules)
	if err != nil {
		return nil, err
	}
	switch mod.Type {
	case "energy":
		threshold := float64Option(mod, "threshold", 2.0)
		return vad.NewEnergyDetector(threshold), nil
	default:
		return nil, fmt.Errorf("factory: unknown VAD module type %q", mod.Type)
	}
}

func (f *Factory) buildMemory(name string, modules map[string]config.ModuleConfig) (memory.Store, error) {
	if name == "" || f.redisClient == nil {
		return nil, nil
	}
	mod, err := lookup(name, modules)
	if err != nil {
		return nil, err
	}
	switch mod.Type {
	case "redis":
		return memory.NewRedisStore(f.redisClient), nil
	default:
		return nil, fmt.Errorf("factory: unknown memory module type %q", mod.Type)
	}
}

func (f *Factory) buildIntent(name string, modules map[string]config.ModuleConfig, model llm.LLM) (intent.Classifier, error) {
	if name == "" {
		return intent.NoIntentClassifier{}, nil
	}
	mod, err := lookup(name, modules)
	if err != nil {
		return nil, err
	}
	switch mod.Type {
	case "nointent":
		return intent.NoIntentClassifier{}, nil
	case "intent_llm":
		intents := stringSliceOption(mod, "intents")
		classifier := intent.NewLLMClassifier(model, intents)
		if llmName := stringOption(mod, "llm", ""); llmName != "" {
			intentModel, _, err := f.buildLLM(llmName, modules)
			if err != nil {
				return nil, err
			}
			classifier.SetLLM(intentModel)
		}
		return classifier, nil
	case "function_call":
		return intent.NewFunctionCallClassifier(model), nil
	default:
		return nil, fmt.Errorf("factory: unknown intent module type %q", mod.Type)
	}
}

func stringSliceOption(mod config.ModuleConfig, key string) []string {
	v, ok := mod.Options[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
