package audit

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"mars-dashboards/internal/auth"
)

// Actions recorded by this service. Export actions carry the format so a
// reviewer can tell a CSV pull from a PDF pull.
const (
	ActionReconcileRun      = "reconcile.run"
	ActionReportDownload    = "reconcile.download"
	ActionActualsImport     = "actuals.import"
	ActionContractReconcile = "contracts.reconcile"
)

// ExportAction names a variance export of the given format.
func ExportAction(format string) string {
	return "reconcile.export." + format
}

// Entry is one audit record: who did what to which reconciliation resource.
type Entry struct {
	ID            string
	TenantID      string
	Actor         string
	Role          string
	Action        string
	ResourceType  string
	ResourceID    string
	ProjectID     string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// ForRequest builds an entry for an authenticated API request, pulling the
// actor and role from the auth context and the client details from the
// request itself.
func ForRequest(r *http.Request, tenantID, action, resourceType, resourceID string) Entry {
	return Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	}
}

// WithMetadata attaches a JSON payload to the entry. Marshal failures leave
// the metadata empty rather than blocking the audited operation.
func (e Entry) WithMetadata(payload any) Entry {
	data, err := json.Marshal(payload)
	if err != nil {
		return e
	}
	e.Metadata = data
	return e
}

// normalize fills the generated fields before persistence.
func (e Entry) normalize() Entry {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.PayloadDigest == "" {
		e.PayloadDigest = DigestJSON(e.Metadata)
	}
	return e
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// NewID generates a random audit id.
func NewID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return "audit-" + hex.EncodeToString(buf)
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
