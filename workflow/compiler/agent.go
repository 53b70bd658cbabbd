package compiler

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/flowgraph/workflow/model"
	"github.com/dshills/flowgraph/workflow/tool"
)

// PromptSource resolves a role name (the "_role" suffix of a tierN_role
// agent identifier) to its system prompt template text.
type PromptSource interface {
	Load(role string) (string, error)
}

// ModelFactory builds the provider-neutral chat model backing a given
// model id string, e.g. the workflow/providers.Factory implementation.
type ModelFactory interface {
	Chat(modelID string) (model.ChatModel, error)
}

// agent binds one candidate model to a fixed tool subset and system
// prompt. Step compilation builds one agent per (model, role) pair and
// reuses it across retries within the same run and across runs, since
// neither the tool subset nor the prompt text changes for a given step.
type agent struct {
	chatModel model.ChatModel
	tools     []model.ToolSpec
	system    string
}

func (a *agent) invoke(ctx context.Context, userMessage string) (model.ChatOut, error) {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: a.system},
		{Role: model.RoleUser, Content: userMessage},
	}
	return a.chatModel.Chat(ctx, messages, a.tools)
}

// agentCache builds and reuses agents keyed by (model id, role), so that a
// step retrying across candidates or across iterations of a self-loop
// doesn't reconstruct the chat model or re-resolve its tool subset each
// time.
type agentCache struct {
	factory  ModelFactory
	prompts  PromptSource
	toolReg  *tool.Registry

	mu      sync.Mutex
	entries map[string]*agent
}

func newAgentCache(factory ModelFactory, prompts PromptSource, toolReg *tool.Registry) *agentCache {
	return &agentCache{
		factory: factory,
		prompts: prompts,
		toolReg: toolReg,
		entries: make(map[string]*agent),
	}
}

// get returns the cached agent for (modelID, role), building it
// (resolving the tool subset — the step's named tools when it lists any,
// otherwise every tool available at tier — and the role's system prompt)
// on first use. tier and toolNames are not part
// of the cache key: the first call for a (modelID, role) pair decides the
// agent's tool subset.
func (c *agentCache) get(modelID, role string, tier int, toolNames []string) (*agent, error) {
	key := modelID + "|" + role
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.entries[key]; ok {
		return a, nil
	}

	chatModel, err := c.factory.Chat(modelID)
	if err != nil {
		return nil, fmt.Errorf("compiler: building chat model %q: %w", modelID, err)
	}

	system, err := c.prompts.Load(role)
	if err != nil {
		return nil, fmt.Errorf("compiler: loading prompt for role %q: %w", role, err)
	}

	var toolSpecs []model.ToolSpec
	if c.toolReg != nil {
		if len(toolNames) > 0 {
			tools, err := c.toolReg.Restrict(toolNames)
			if err != nil {
				return nil, fmt.Errorf("compiler: restricting tools: %w", err)
			}
			for _, t := range tools {
				toolSpecs = append(toolSpecs, toolSpecForName(c.toolReg, t.Name()))
			}
		} else {
			toolSpecs = c.toolReg.SchemasForTier(tier)
		}
	}

	a := &agent{chatModel: chatModel, tools: toolSpecs, system: system}
	c.entries[key] = a
	return a, nil
}

func toolSpecForName(reg *tool.Registry, name string) model.ToolSpec {
	for _, spec := range reg.SchemasForTier(5) {
		if spec.Name == name {
			return spec
		}
	}
	return model.ToolSpec{Name: name}
}
