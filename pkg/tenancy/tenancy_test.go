package tenancy

import (
	"testing"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/auth"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/encryption"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
)

func TestNewManagerSeedsDefaultTenant(t *testing.T) {
	m := NewManager()
	if !m.IsEnabled(DefaultTenantID) {
		t.Fatal("expected default tenant to be enabled")
	}
}

func TestCreateTenant(t *testing.T) {
	m := NewManager()
	if err := m.CreateTenant("tenant1", "Tenant 1", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	tn, err := m.GetTenant("tenant1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if tn.ID != "tenant1" || tn.Name != "Tenant 1" || !tn.Enabled {
		t.Fatalf("unexpected tenant: %+v", tn)
	}
}

func TestCreateTenantDuplicate(t *testing.T) {
	m := NewManager()
	_ = m.CreateTenant("tenant1", "Tenant 1", nil)
	if err := m.CreateTenant("tenant1", "Dup", nil); err != ErrTenantAlreadyExists {
		t.Fatalf("expected ErrTenantAlreadyExists, got %v", err)
	}
}

func TestDeleteTenant(t *testing.T) {
	m := NewManager()
	_ = m.CreateTenant("tenant1", "Tenant 1", nil)
	if err := m.DeleteTenant("tenant1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.GetTenant("tenant1"); err != ErrTenantNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestCannotDeleteDefaultTenant(t *testing.T) {
	m := NewManager()
	if err := m.DeleteTenant(DefaultTenantID); err != ErrPermissionDenied {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestQuotaEnforcement(t *testing.T) {
	m := NewManager()
	max := int64(10)
	quotas := DefaultQuotas()
	quotas.MaxNodes = &max
	if err := m.CreateTenant("tenant1", "Tenant 1", &quotas); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := m.CheckQuota("tenant1", ResourceNodes); err != nil {
			t.Fatalf("check quota %d: %v", i, err)
		}
		if err := m.IncrementUsage("tenant1", ResourceNodes, 1); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	err := m.CheckQuota("tenant1", ResourceNodes)
	if err == nil {
		t.Fatal("expected 11th node to exceed quota")
	}
	if _, ok := err.(*QuotaExceededError); !ok {
		t.Fatalf("expected QuotaExceededError, got %T: %v", err, err)
	}
}

func TestUsageTrackingSaturatesAtZero(t *testing.T) {
	m := NewManager()
	_ = m.CreateTenant("tenant1", "Tenant 1", nil)
	_ = m.IncrementUsage("tenant1", ResourceNodes, 5)
	_ = m.IncrementUsage("tenant1", ResourceEdges, 10)

	usage, err := m.GetUsage("tenant1")
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if usage.NodeCount != 5 || usage.EdgeCount != 10 {
		t.Fatalf("unexpected usage: %+v", usage)
	}

	_ = m.DecrementUsage("tenant1", ResourceNodes, 100)
	usage, _ = m.GetUsage("tenant1")
	if usage.NodeCount != 0 {
		t.Fatalf("expected saturating decrement to zero, got %d", usage.NodeCount)
	}
}

func TestListTenantsIncludesDefault(t *testing.T) {
	m := NewManager()
	_ = m.CreateTenant("tenant1", "Tenant 1", nil)
	_ = m.CreateTenant("tenant2", "Tenant 2", nil)
	if got := len(m.ListTenants()); got != 3 {
		t.Fatalf("expected 3 tenants (default + 2), got %d", got)
	}
}

func TestDisableTenant(t *testing.T) {
	m := NewManager()
	_ = m.CreateTenant("tenant1", "Tenant 1", nil)
	if err := m.SetEnabled("tenant1", false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if m.IsEnabled("tenant1") {
		t.Fatal("expected tenant1 disabled")
	}
	if err := m.CheckQuota("tenant1", ResourceNodes); err != ErrPermissionDenied {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestCannotDisableDefaultTenant(t *testing.T) {
	m := NewManager()
	if err := m.SetEnabled(DefaultTenantID, false); err != ErrPermissionDenied {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestUpdateEmbedConfig(t *testing.T) {
	m := NewManager()
	_ = m.CreateTenant("tenant1", "Tenant 1", nil)

	cfg := &AutoEmbedConfig{
		Provider:       OpenAI,
		EmbeddingModel: "text-embedding-3-small",
		ChunkSize:      512,
		ChunkOverlap:   64,
		VectorDim:      1536,
		Policies:       map[string][]string{"Document": {"content"}},
	}
	if err := m.UpdateEmbedConfig("tenant1", cfg); err != nil {
		t.Fatalf("update: %v", err)
	}
	tn, _ := m.GetTenant("tenant1")
	if tn.EmbedConfig == nil || tn.EmbedConfig.Provider != OpenAI || tn.EmbedConfig.EmbeddingModel != "text-embedding-3-small" {
		t.Fatalf("unexpected embed config: %+v", tn.EmbedConfig)
	}
}

func TestEmbedPolicyResolve(t *testing.T) {
	m := NewManager()
	_ = m.CreateTenant("t1", "T1", nil)
	_ = m.UpdateEmbedConfig("t1", &AutoEmbedConfig{
		EmbeddingModel: "m1",
		Policies:       map[string][]string{"Document": {"content"}},
	})
	policy := EmbedPolicy{Manager: m}

	model, target, ok := policy.Resolve("t1", []graph.Label{"Document"}, "content")
	if !ok || model != "m1" || target != "content" {
		t.Fatalf("expected resolve match, got model=%q target=%q ok=%v", model, target, ok)
	}

	if _, _, ok := policy.Resolve("t1", []graph.Label{"Document"}, "title"); ok {
		t.Fatal("expected no match for unconfigured property")
	}
}

func TestAPIKeySealedWhenEncryptorInstalled(t *testing.T) {
	m := NewManager()
	_ = m.CreateTenant("t1", "T1", nil)

	key, err := encryption.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	km := encryption.NewKeyManager(encryption.DefaultConfig())
	if err := km.AddKey(&encryption.Key{ID: 1, Material: key, Active: true}); err != nil {
		t.Fatalf("add key: %v", err)
	}
	m.SetEncryptor(encryption.NewEncryptor(km, true))

	if err := m.UpdateNLQConfig("t1", &NLQConfig{Provider: OpenAI, APIKey: "sk-secret-value"}); err != nil {
		t.Fatalf("update nlq config: %v", err)
	}

	tn, err := m.GetTenant("t1")
	if err != nil {
		t.Fatalf("get tenant: %v", err)
	}
	if tn.NLQConfig.APIKey == "sk-secret-value" {
		t.Fatal("expected API key to be sealed at rest, found plaintext")
	}

	plain, err := m.UnsealAPIKey(tn.NLQConfig.APIKey)
	if err != nil {
		t.Fatalf("unseal: %v", err)
	}
	if plain != "sk-secret-value" {
		t.Fatalf("expected unsealed key to round-trip, got %q", plain)
	}
}

func TestAPIKeyPassthroughWithoutEncryptor(t *testing.T) {
	m := NewManager()
	_ = m.CreateTenant("t1", "T1", nil)
	if err := m.UpdateNLQConfig("t1", &NLQConfig{APIKey: "plain-key"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	tn, _ := m.GetTenant("t1")
	if tn.NLQConfig.APIKey != "plain-key" {
		t.Fatalf("expected passthrough without encryptor, got %q", tn.NLQConfig.APIKey)
	}
}

func TestProcedureTokenIssueAndCheck(t *testing.T) {
	m := NewManager()
	_ = m.CreateTenant("t1", "T1", nil)

	cfg := auth.DefaultAuthConfig()
	cfg.JWTSecret = []byte("test-secret-at-least-32-bytes-long!")
	a, err := auth.NewAuthenticator(cfg)
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}
	m.SetAuthenticator(a)

	token, err := m.IssueProcedureToken("t1", auth.RoleEditor)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	claims, err := m.CheckProcedureToken(token)
	if err != nil {
		t.Fatalf("check token: %v", err)
	}
	if claims.Sub != "cluster-t1" {
		t.Fatalf("expected subject cluster-t1, got %q", claims.Sub)
	}
}

func TestIssueProcedureTokenUnknownTenant(t *testing.T) {
	m := NewManager()
	cfg := auth.DefaultAuthConfig()
	cfg.JWTSecret = []byte("test-secret-at-least-32-bytes-long!")
	a, err := auth.NewAuthenticator(cfg)
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}
	m.SetAuthenticator(a)

	if _, err := m.IssueProcedureToken("no-such-tenant", auth.RoleViewer); err != ErrTenantNotFound {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}
