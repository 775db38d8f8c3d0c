// Package tenancy implements spec §5's multi-tenancy and quota layer: named
// tenants, resource quotas, usage accounting, and per-tenant LLM-provider
// configuration for the auto-embed/NLQ/agent side-tasks dispatched by
// pkg/indexbus.
//
// The Go teacher (straga-Mimir_lite) carries no tenancy code at all, so this
// package is grounded directly on
// _examples/original_source/src/persistence/tenant.rs's TenantManager,
// translated into the teacher's own idiom: exported sentinel errors instead
// of an error enum, a plain sync.RWMutex-guarded map instead of
// Arc<RwLock<HashMap>> (the same posture the teacher uses throughout
// pkg/storage), and no serde — config types are plain structs serialized by
// encoding/json where pkg/persistence needs to persist them.
//
// Stored LLM-provider API keys are sealed at rest with the teacher's actual
// pkg/encryption.Encryptor (AES-256-GCM), and tenant tokens are issued and
// verified by the teacher's actual pkg/auth.Authenticator (JWT-backed
// cluster tokens) — both optional, wired in via SetEncryptor/
// SetAuthenticator so a Manager built for tests can stay plaintext/open.
// pkg/procedure's Registry.Call does not check these tokens.
package tenancy

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/auth"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/encryption"
)

// Sentinel errors, in the teacher's errors.New style (see pkg/store/errors.go).
var (
	ErrTenantAlreadyExists = errors.New("tenancy: tenant already exists")
	ErrTenantNotFound      = errors.New("tenancy: tenant not found")
	ErrPermissionDenied    = errors.New("tenancy: permission denied")
)

// QuotaExceededError reports which resource on which tenant tripped its
// quota, preserving the original's {tenant, resource} error detail.
type QuotaExceededError struct {
	Tenant   string
	Resource string
	Current  int64
	Max      int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("tenancy: quota exceeded for tenant %s: %s (%d/%d)", e.Tenant, e.Resource, e.Current, e.Max)
}

// Resource names understood by CheckQuota/IncrementUsage/DecrementUsage.
const (
	ResourceNodes       = "nodes"
	ResourceEdges       = "edges"
	ResourceMemory      = "memory"
	ResourceStorage     = "storage"
	ResourceConnections = "connections"
)

// ResourceQuotas bounds one tenant's resource consumption. A nil pointer
// field means unbounded, mirroring the original's Option<usize> (spec §5).
type ResourceQuotas struct {
	MaxNodes        *int64
	MaxEdges        *int64
	MaxMemoryBytes  *int64
	MaxStorageBytes *int64
	MaxConnections  *int64
	MaxQueryTimeMs  *int64
}

func ptr(v int64) *int64 { return &v }

// DefaultQuotas returns the original's bounded defaults (1M nodes, 10M
// edges, 1GB memory, 10GB storage, 100 connections, 60s query time).
func DefaultQuotas() ResourceQuotas {
	return ResourceQuotas{
		MaxNodes:        ptr(1_000_000),
		MaxEdges:        ptr(10_000_000),
		MaxMemoryBytes:  ptr(1_073_741_824),
		MaxStorageBytes: ptr(10_737_418_240),
		MaxConnections:  ptr(100),
		MaxQueryTimeMs:  ptr(60_000),
	}
}

// UnlimitedQuotas returns quotas with every bound removed.
func UnlimitedQuotas() ResourceQuotas { return ResourceQuotas{} }

// ResourceUsage tracks current consumption against a tenant's quotas.
// Decrements saturate at zero (spec §5: "monotonic except decrement
// saturates at zero").
type ResourceUsage struct {
	NodeCount         int64
	EdgeCount         int64
	MemoryBytes       int64
	StorageBytes      int64
	ActiveConnections int64
}

func (u *ResourceUsage) checkQuota(q ResourceQuotas, resource string) error {
	var current int64
	var max *int64
	switch resource {
	case ResourceNodes:
		current, max = u.NodeCount, q.MaxNodes
	case ResourceEdges:
		current, max = u.EdgeCount, q.MaxEdges
	case ResourceMemory:
		current, max = u.MemoryBytes, q.MaxMemoryBytes
	case ResourceStorage:
		current, max = u.StorageBytes, q.MaxStorageBytes
	case ResourceConnections:
		current, max = u.ActiveConnections, q.MaxConnections
	default:
		return nil
	}
	if max != nil && current >= *max {
		return &QuotaExceededError{Resource: resource, Current: current, Max: *max}
	}
	return nil
}

func (u *ResourceUsage) increment(resource string, amount int64) {
	switch resource {
	case ResourceNodes:
		u.NodeCount += amount
	case ResourceEdges:
		u.EdgeCount += amount
	case ResourceMemory:
		u.MemoryBytes += amount
	case ResourceStorage:
		u.StorageBytes += amount
	case ResourceConnections:
		u.ActiveConnections += amount
	}
}

func (u *ResourceUsage) decrement(resource string, amount int64) {
	switch resource {
	case ResourceNodes:
		u.NodeCount = saturatingSub(u.NodeCount, amount)
	case ResourceEdges:
		u.EdgeCount = saturatingSub(u.EdgeCount, amount)
	case ResourceMemory:
		u.MemoryBytes = saturatingSub(u.MemoryBytes, amount)
	case ResourceStorage:
		u.StorageBytes = saturatingSub(u.StorageBytes, amount)
	case ResourceConnections:
		u.ActiveConnections = saturatingSub(u.ActiveConnections, amount)
	}
}

func saturatingSub(a, b int64) int64 {
	if b >= a {
		return 0
	}
	return a - b
}

// LLMProvider names an external model provider used by auto-embed, NLQ, and
// agent configs (spec §5).
type LLMProvider int

const (
	OpenAI LLMProvider = iota
	Ollama
	Gemini
	AzureOpenAI
	Anthropic
)

func (p LLMProvider) String() string {
	switch p {
	case OpenAI:
		return "OpenAI"
	case Ollama:
		return "Ollama"
	case Gemini:
		return "Gemini"
	case AzureOpenAI:
		return "AzureOpenAI"
	case Anthropic:
		return "Anthropic"
	default:
		return "?"
	}
}

// ToolConfig describes one tool an agent may call.
type ToolConfig struct {
	Name        string
	Description string
	Parameters  map[string]any
	Enabled     bool
}

// AgentConfig configures the agentic side-task dispatched by pkg/indexbus
// when a node matching one of Policies' labels changes.
type AgentConfig struct {
	Enabled      bool
	Provider     LLMProvider
	Model        string
	APIKey       string
	APIBaseURL   string
	SystemPrompt string
	Tools        []ToolConfig
	// Policies maps Label -> trigger prompt (spec §5 "auto-trigger
	// policies e.g. on node creation").
	Policies map[string]string
}

// NLQConfig configures natural-language-query translation for a tenant.
type NLQConfig struct {
	Enabled      bool
	Provider     LLMProvider
	Model        string
	APIKey       string
	APIBaseURL   string
	SystemPrompt string
}

// AutoEmbedConfig configures the auto-embed side-task of pkg/indexbus:
// which (Label, property) pairs get embedded, with what model, at what
// chunking/dimension.
type AutoEmbedConfig struct {
	Provider       LLMProvider
	EmbeddingModel string
	APIKey         string
	APIBaseURL     string
	ChunkSize      int
	ChunkOverlap   int
	VectorDim      int
	// Policies maps Label -> property keys to embed.
	Policies map[string][]string
}

// Tenant is one tenant's identity, quotas, and optional LLM-feature config
// (spec §5).
type Tenant struct {
	ID          string
	Name        string
	CreatedAt   time.Time
	Quotas      ResourceQuotas
	Enabled     bool
	EmbedConfig *AutoEmbedConfig
	NLQConfig   *NLQConfig
	AgentConfig *AgentConfig
}

// DefaultTenantID is the tenant that always exists and can never be deleted
// or disabled (spec §5).
const DefaultTenantID = "default"

// Manager owns every tenant and its resource usage. Internally synchronized,
// matching the original's Arc<RwLock<HashMap<..>>> posture.
type Manager struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant
	usage   map[string]*ResourceUsage

	encryptor     *encryption.Encryptor
	authenticator *auth.Authenticator
}

// NewManager returns a manager pre-seeded with the always-present default
// tenant.
func NewManager() *Manager {
	m := &Manager{
		tenants: make(map[string]*Tenant),
		usage:   make(map[string]*ResourceUsage),
	}
	m.tenants[DefaultTenantID] = &Tenant{
		ID: DefaultTenantID, Name: "Default Tenant",
		CreatedAt: time.Now(), Quotas: DefaultQuotas(), Enabled: true,
	}
	m.usage[DefaultTenantID] = &ResourceUsage{}
	return m
}

// SetEncryptor installs the encryptor used to seal LLM-provider API keys
// passed to UpdateEmbedConfig/UpdateNLQConfig/UpdateAgentConfig. Without
// one, API keys are stored as given (matching Encryptor's own disabled-mode
// passthrough, so callers never need a nil check).
func (m *Manager) SetEncryptor(enc *encryption.Encryptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.encryptor = enc
}

// SetAuthenticator installs the authenticator used to issue and verify
// procedure-access tokens (IssueProcedureToken/CheckProcedureToken).
func (m *Manager) SetAuthenticator(a *auth.Authenticator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authenticator = a
}

func (m *Manager) sealAPIKey(key string) string {
	if key == "" || m.encryptor == nil {
		return key
	}
	sealed, err := m.encryptor.EncryptField(key)
	if err != nil {
		return key
	}
	return sealed
}

// UnsealAPIKey reverses sealAPIKey, returning key unchanged if no encryptor
// is installed or key was never sealed.
func (m *Manager) UnsealAPIKey(key string) (string, error) {
	m.mu.RLock()
	enc := m.encryptor
	m.mu.RUnlock()
	if enc == nil {
		return key, nil
	}
	return enc.DecryptField(key)
}

// IssueProcedureToken mints a tenant-scoped JWT for CALL...YIELD procedure
// access (spec §6's procedure ABI), via the teacher's cluster-token path —
// a tenant is treated the same as a cluster node, identified by tenantID
// instead of a node name. Requires SetAuthenticator to have been called.
func (m *Manager) IssueProcedureToken(tenantID string, role auth.Role) (string, error) {
	m.mu.RLock()
	a := m.authenticator
	_, ok := m.tenants[tenantID]
	m.mu.RUnlock()
	if a == nil {
		return "", fmt.Errorf("tenancy: no authenticator installed")
	}
	if !ok {
		return "", ErrTenantNotFound
	}
	return a.GenerateClusterToken(tenantID, role)
}

// CheckProcedureToken verifies a procedure-access token minted by
// IssueProcedureToken and returns its claims, or an error if it is missing,
// malformed, or expired.
func (m *Manager) CheckProcedureToken(token string) (*auth.JWTClaims, error) {
	m.mu.RLock()
	a := m.authenticator
	m.mu.RUnlock()
	if a == nil {
		return nil, fmt.Errorf("tenancy: no authenticator installed")
	}
	return a.ValidateToken(token)
}

// CreateTenant registers a new tenant with optional custom quotas (nil uses
// DefaultQuotas).
func (m *Manager) CreateTenant(id, name string, quotas *ResourceQuotas) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[id]; ok {
		return ErrTenantAlreadyExists
	}
	q := DefaultQuotas()
	if quotas != nil {
		q = *quotas
	}
	m.tenants[id] = &Tenant{ID: id, Name: name, CreatedAt: time.Now(), Quotas: q, Enabled: true}
	m.usage[id] = &ResourceUsage{}
	return nil
}

// DeleteTenant removes a tenant and its usage record. The default tenant
// can never be deleted (spec §5).
func (m *Manager) DeleteTenant(id string) error {
	if id == DefaultTenantID {
		return ErrPermissionDenied
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[id]; !ok {
		return ErrTenantNotFound
	}
	delete(m.tenants, id)
	delete(m.usage, id)
	return nil
}

// GetTenant returns a copy of the tenant's metadata.
func (m *Manager) GetTenant(id string) (Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[id]
	if !ok {
		return Tenant{}, ErrTenantNotFound
	}
	return *t, nil
}

// ListTenants returns every tenant, including default.
func (m *Manager) ListTenants() []Tenant {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, *t)
	}
	return out
}

// IsEnabled reports whether id exists and is enabled.
func (m *Manager) IsEnabled(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[id]
	return ok && t.Enabled
}

// CheckQuota enforces the ordering of spec §7's write path: a disabled
// tenant is rejected outright; otherwise the named resource's current usage
// is checked against its quota. Callers are expected to call CheckQuota
// before performing the WAL append / in-memory mutation that would
// introduce the new unit of resource.
func (m *Manager) CheckQuota(tenantID, resource string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[tenantID]
	if !ok {
		return ErrTenantNotFound
	}
	if !t.Enabled {
		return ErrPermissionDenied
	}
	u, ok := m.usage[tenantID]
	if !ok {
		return ErrTenantNotFound
	}
	if err := u.checkQuota(t.Quotas, resource); err != nil {
		if qe, ok := err.(*QuotaExceededError); ok {
			qe.Tenant = tenantID
		}
		return err
	}
	return nil
}

// IncrementUsage adds amount to resource's running total for tenantID,
// called after a write has been durably applied (spec §7 step order).
func (m *Manager) IncrementUsage(tenantID, resource string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usage[tenantID]
	if !ok {
		return ErrTenantNotFound
	}
	u.increment(resource, amount)
	return nil
}

// DecrementUsage subtracts amount from resource's running total, saturating
// at zero.
func (m *Manager) DecrementUsage(tenantID, resource string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usage[tenantID]
	if !ok {
		return ErrTenantNotFound
	}
	u.decrement(resource, amount)
	return nil
}

// GetUsage returns a copy of the tenant's current resource usage.
func (m *Manager) GetUsage(tenantID string) (ResourceUsage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.usage[tenantID]
	if !ok {
		return ResourceUsage{}, ErrTenantNotFound
	}
	return *u, nil
}

// UpdateQuotas replaces a tenant's quotas.
func (m *Manager) UpdateQuotas(tenantID string, quotas ResourceQuotas) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[tenantID]
	if !ok {
		return ErrTenantNotFound
	}
	t.Quotas = quotas
	return nil
}

// UpdateEmbedConfig replaces a tenant's auto-embed config (nil disables it).
// cfg.APIKey is sealed with the installed encryptor, if any, before storage.
func (m *Manager) UpdateEmbedConfig(tenantID string, cfg *AutoEmbedConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[tenantID]
	if !ok {
		return ErrTenantNotFound
	}
	if cfg != nil {
		sealed := *cfg
		sealed.APIKey = m.sealAPIKey(cfg.APIKey)
		cfg = &sealed
	}
	t.EmbedConfig = cfg
	return nil
}

// UpdateNLQConfig replaces a tenant's NLQ config. cfg.APIKey is sealed with
// the installed encryptor, if any, before storage.
func (m *Manager) UpdateNLQConfig(tenantID string, cfg *NLQConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[tenantID]
	if !ok {
		return ErrTenantNotFound
	}
	if cfg != nil {
		sealed := *cfg
		sealed.APIKey = m.sealAPIKey(cfg.APIKey)
		cfg = &sealed
	}
	t.NLQConfig = cfg
	return nil
}

// UpdateAgentConfig replaces a tenant's agent config. cfg.APIKey is sealed
// with the installed encryptor, if any, before storage.
func (m *Manager) UpdateAgentConfig(tenantID string, cfg *AgentConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[tenantID]
	if !ok {
		return ErrTenantNotFound
	}
	if cfg != nil {
		sealed := *cfg
		sealed.APIKey = m.sealAPIKey(cfg.APIKey)
		cfg = &sealed
	}
	t.AgentConfig = cfg
	return nil
}

// SetEnabled toggles a tenant's enabled status. The default tenant can
// never be disabled (spec §5).
func (m *Manager) SetEnabled(tenantID string, enabled bool) error {
	if tenantID == DefaultTenantID {
		return ErrPermissionDenied
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[tenantID]
	if !ok {
		return ErrTenantNotFound
	}
	t.Enabled = enabled
	return nil
}
