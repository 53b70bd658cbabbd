// Package providers wires the provider-neutral model.ChatModel interface to
// the concrete Anthropic/OpenAI/Google adapters, keyed by the model id
// strings the registry's tier chains name.
package providers

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/dshills/flowgraph/workflow/model"
	"github.com/dshills/flowgraph/workflow/model/anthropic"
	"github.com/dshills/flowgraph/workflow/model/google"
	"github.com/dshills/flowgraph/workflow/model/openai"
)

// Factory lazily builds and caches a model.ChatModel per model id, reading
// provider credentials from the environment once at construction time.
type Factory struct {
	anthropicKey string
	openaiKey    string
	googleKey    string

	mu    sync.Mutex
	cache map[string]model.ChatModel
}

// NewFactory reads ANTHROPIC_API_KEY, OPENAI_API_KEY and GOOGLE_API_KEY from
// the environment. A factory with empty keys still builds adapters (useful
// for the validation-only compile path); calls simply fail at request time.
func NewFactory() *Factory {
	return &Factory{
		anthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
		openaiKey:    os.Getenv("OPENAI_API_KEY"),
		googleKey:    os.Getenv("GOOGLE_API_KEY"),
		cache:        make(map[string]model.ChatModel),
	}
}

// Chat returns the ChatModel backing modelID, constructing and caching it
// on first use. modelID is a registry candidate string of the form
// "<provider>:<model>" (e.g. "anthropic:claude-3-5-haiku-20241022"); the
// prefix selects the adapter and the suffix is passed through as the
// provider's own model name.
func (f *Factory) Chat(modelID string) (model.ChatModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cm, ok := f.cache[modelID]; ok {
		return cm, nil
	}

	provider, name, ok := strings.Cut(modelID, ":")
	if !ok {
		return nil, fmt.Errorf("providers: model id %q is not in \"provider:model\" form", modelID)
	}

	var cm model.ChatModel
	switch provider {
	case "google":
		cm = google.NewChatModel(f.googleKey, name)
	case "anthropic":
		cm = anthropic.NewChatModel(f.anthropicKey, name)
	case "openai":
		cm = openai.NewChatModel(f.openaiKey, name)
	default:
		return nil, fmt.Errorf("providers: no adapter known for provider %q", provider)
	}

	f.cache[modelID] = cm
	return cm, nil
}
