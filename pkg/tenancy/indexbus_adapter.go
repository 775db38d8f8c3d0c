package tenancy

import (
	"context"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
)

// EmbedPolicy adapts Manager to pkg/indexbus.EmbedPolicy: a node's string
// property triggers auto-embed when its label/property matches one of the
// tenant's AutoEmbedConfig.Policies entries.
type EmbedPolicy struct {
	Manager *Manager
}

// Resolve implements indexbus.EmbedPolicy.
func (p EmbedPolicy) Resolve(tenant string, labels []graph.Label, property string) (model, targetProperty string, ok bool) {
	t, err := p.Manager.GetTenant(tenant)
	if err != nil || t.EmbedConfig == nil {
		return "", "", false
	}
	for _, l := range labels {
		props, ok := t.EmbedConfig.Policies[string(l)]
		if !ok {
			continue
		}
		for _, p := range props {
			if p == property {
				return t.EmbedConfig.EmbeddingModel, property, true
			}
		}
	}
	return "", "", false
}

// AgentTrigger fires an agent's trigger prompt for a label; implemented
// outside this package (e.g. by an LLM-backed agent runner). A nil
// AgentTrigger means dispatch is a no-op.
type AgentTrigger interface {
	Trigger(ctx context.Context, cfg AgentConfig, prompt string, tenant string, node graph.NodeID) error
}

// AgentDispatcher adapts Manager + an AgentTrigger to
// pkg/indexbus.AgentDispatcher: when a node's label matches one of the
// tenant's AgentConfig.Policies entries, the configured trigger prompt is
// fired best-effort.
type AgentDispatcher struct {
	Manager *Manager
	Trigger AgentTrigger
}

// Dispatch implements indexbus.AgentDispatcher. Errors are swallowed by the
// caller's best-effort contract (spec §4.D / §7) — pkg/indexbus never rolls
// back a write because an agent trigger failed.
func (d AgentDispatcher) Dispatch(ctx context.Context, tenant string, node graph.NodeID, labels []graph.Label) {
	if d.Trigger == nil {
		return
	}
	t, err := d.Manager.GetTenant(tenant)
	if err != nil || t.AgentConfig == nil || !t.AgentConfig.Enabled {
		return
	}
	for _, l := range labels {
		prompt, ok := t.AgentConfig.Policies[string(l)]
		if !ok {
			continue
		}
		_ = d.Trigger.Trigger(ctx, *t.AgentConfig, prompt, tenant, node)
	}
}
