package audit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mars-dashboards/internal/auth"
)

func TestForRequestPullsIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconcile/run", nil)
	ctx := auth.WithIdentity(req.Context(), auth.Identity{
		TenantID: "tenant-a",
		Role:     auth.RoleOperator,
		Subject:  "user-7",
	})
	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", "mars-cli/1.0")

	entry := ForRequest(req, "tenant-a", ActionReconcileRun, "reconcile_report", "report-1")

	if entry.Actor != "user-7" || entry.Role != "operator" {
		t.Fatalf("actor/role = %s/%s", entry.Actor, entry.Role)
	}
	if entry.Action != "reconcile.run" || entry.ResourceID != "report-1" {
		t.Fatalf("action/resource = %s/%s", entry.Action, entry.ResourceID)
	}
	if entry.UserAgent != "mars-cli/1.0" || entry.IP == "" {
		t.Fatalf("client details = %q / %q", entry.UserAgent, entry.IP)
	}
}

func TestWithMetadataAndNormalize(t *testing.T) {
	entry := Entry{TenantID: "tenant-a", Action: ActionActualsImport}
	entry = entry.WithMetadata(map[string]int{"rows": 12})
	if !strings.Contains(string(entry.Metadata), `"rows":12`) {
		t.Fatalf("metadata = %s", entry.Metadata)
	}

	normalized := entry.normalize()
	if normalized.ID == "" || !strings.HasPrefix(normalized.ID, "audit-") {
		t.Fatalf("id = %q", normalized.ID)
	}
	if normalized.CreatedAt.IsZero() {
		t.Fatal("created_at not stamped")
	}
	if normalized.PayloadDigest == "" || normalized.PayloadDigest != DigestJSON(entry.Metadata) {
		t.Fatalf("digest = %q", normalized.PayloadDigest)
	}
}

func TestExportActionCarriesFormat(t *testing.T) {
	if got := ExportAction("csv"); got != "reconcile.export.csv" {
		t.Fatalf("action = %q", got)
	}
}
