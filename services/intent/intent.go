// Package intent selects which Dialog Engine entry point a session uses.
// nointent skips classification entirely (every utterance goes straight to
// chat); intent_llm runs a cheap secondary LLM call to classify before
// deciding; function_call treats classification as a regular tool call
// handled by the same LLM as the main chat.
package intent

import (
	"context"

	"xiaozhi-go/services/llm"
)

// Mode selects the classification strategy.
type Mode string

const (
	ModeNoIntent     Mode = "nointent"
	ModeIntentLLM    Mode = "intent_llm"
	ModeFunctionCall Mode = "function_call"
)

// Classification is the decision handed back to the session controller.
type Classification struct {
	// Intent is empty when no specialized handling is required and the
	// utterance should go to ordinary chat.
	Intent string
	Args   map[string]interface{}
}

// Classifier is the intent-classification interface the session
// controller needs.
type Classifier interface {
	SetLLM(llm llm.LLM)
	Mode() Mode
	Classify(ctx context.Context, utterance string) (Classification, error)
}

// NoIntentClassifier always defers to ordinary chat. It is the default
// when a device's config does not name an intent module.
type NoIntentClassifier struct{}

func (NoIntentClassifier) SetLLM(llm.LLM) {}
func (NoIntentClassifier) Mode() Mode     { return ModeNoIntent }
func (NoIntentClassifier) Classify(ctx context.Context, utterance string) (Classification, error) {
	return Classification{}, nil
}

// LLMClassifier runs a secondary, intent-specific LLM to decide whether an
// utterance names a known intent before any chat call is made.
type LLMClassifier struct {
	model      llm.LLM
	intentLLM  llm.LLM
	intentList []string
}

// NewLLMClassifier creates a classifier that falls back to model if no
// dedicated intentLLM is configured.
func NewLLMClassifier(model llm.LLM, intentList []string) *LLMClassifier {
	return &LLMClassifier{model: model, intentLLM: model, intentList: intentList}
}

func (c *LLMClassifier) SetLLM(l llm.LLM) { c.intentLLM = l }
func (c *LLMClassifier) Mode() Mode       { return ModeIntentLLM }

func (c *LLMClassifier) Classify(ctx context.Context, utterance string) (Classification, error) {
	if len(c.intentList) == 0 {
		return Classification{}, nil
	}

	prompt := buildClassificationPrompt(utterance, c.intentList)
	resp, err := c.intentLLM.Chat(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	}, llm.DefaultChatOptions())
	if err != nil {
		return Classification{}, err
	}

	intent := parseIntentReply(resp.Message.Content, c.intentList)
	return Classification{Intent: intent}, nil
}

func buildClassificationPrompt(utterance string, intents []string) string {
	prompt := "Classify the user's utterance into exactly one of these intents, or reply \"none\": "
	for i, name := range intents {
		if i > 0 {
			prompt += ", "
		}
		prompt += name
	}
	prompt += ".\nUtterance: " + utterance
	return prompt
}

func parseIntentReply(reply string, intents []string) string {
	for _, name := range intents {
		if reply == name {
			return name
		}
	}
	return ""
}

// FunctionCallClassifier treats intent selection as an ordinary tool call
// on the main chat LLM — no secondary call at all. Mode() reports
// function_call so the session controller knows not to pre-empt the
// dialog engine; classification happens inline as part of chat.
type FunctionCallClassifier struct {
	model llm.LLM
}

// NewFunctionCallClassifier creates a classifier delegating to the main
// chat LLM's own tool-calling.
func NewFunctionCallClassifier(model llm.LLM) *FunctionCallClassifier {
	return &FunctionCallClassifier{model: model}
}

func (c *FunctionCallClassifier) SetLLM(l llm.LLM) { c.model = l }
func (c *FunctionCallClassifier) Mode() Mode        { return ModeFunctionCall }
func (c *FunctionCallClassifier) Classify(ctx context.Context, utterance string) (Classification, error) {
	return Classification{}, nil
}
