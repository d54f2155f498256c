package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/lineupstore/internal/api/middleware"
	"github.com/bigkaa/lineupstore/internal/domain/model"
	"github.com/bigkaa/lineupstore/internal/domain/rbac"
	"github.com/bigkaa/lineupstore/internal/service"
	"github.com/bigkaa/lineupstore/internal/storage/provider"
)

// --- Моки сервисов ---

type mockSubmissions struct {
	intakePackageFn     func(ctx context.Context, submitterID string, data []byte, maxBytes int64) (*model.Submission, error)
	intakeFromLineupFn  func(ctx context.Context, submitterID, lineupID string) (*model.Submission, error)
	listMineFn          func(ctx context.Context, ownerID string) ([]*model.Submission, error)
	withdrawFn          func(ctx context.Context, submissionID, ownerID string) (*model.Submission, error)
	deleteTerminalFn    func(ctx context.Context, submissionID, ownerID string) error
	deleteByStatusFn    func(ctx context.Context, ownerID *string, scope service.DeleteScope) (int, error)
	listForModerationFn func(ctx context.Context, status *model.SubmissionStatus, limit, offset int) ([]*model.ModerationView, error)
	approveFn           func(ctx context.Context, submissionID, moderatorID string) (*service.ApproveResult, error)
	rejectFn            func(ctx context.Context, submissionID, moderatorID, reason string) (*model.Submission, error)
}

func (m *mockSubmissions) IntakePackage(ctx context.Context, submitterID string, data []byte, maxBytes int64) (*model.Submission, error) {
	if m.intakePackageFn != nil {
		return m.intakePackageFn(ctx, submitterID, data, maxBytes)
	}
	return &model.Submission{ID: "sub-1", SubmitterID: submitterID, Status: model.SubmissionPending}, nil
}

func (m *mockSubmissions) IntakeFromLineup(ctx context.Context, submitterID, lineupID string) (*model.Submission, error) {
	if m.intakeFromLineupFn != nil {
		return m.intakeFromLineupFn(ctx, submitterID, lineupID)
	}
	return &model.Submission{ID: "sub-1", SubmitterID: submitterID, Status: model.SubmissionPending}, nil
}

func (m *mockSubmissions) ListMine(ctx context.Context, ownerID string) ([]*model.Submission, error) {
	if m.listMineFn != nil {
		return m.listMineFn(ctx, ownerID)
	}
	return nil, nil
}

func (m *mockSubmissions) Withdraw(ctx context.Context, submissionID, ownerID string) (*model.Submission, error) {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, submissionID, ownerID)
	}
	return &model.Submission{ID: submissionID, Status: model.SubmissionRejected}, nil
}

func (m *mockSubmissions) DeleteTerminal(ctx context.Context, submissionID, ownerID string) error {
	if m.deleteTerminalFn != nil {
		return m.deleteTerminalFn(ctx, submissionID, ownerID)
	}
	return nil
}

func (m *mockSubmissions) DeleteByStatus(ctx context.Context, ownerID *string, scope service.DeleteScope) (int, error) {
	if m.deleteByStatusFn != nil {
		return m.deleteByStatusFn(ctx, ownerID, scope)
	}
	return 0, nil
}

func (m *mockSubmissions) ListForModeration(ctx context.Context, status *model.SubmissionStatus, limit, offset int) ([]*model.ModerationView, error) {
	if m.listForModerationFn != nil {
		return m.listForModerationFn(ctx, status, limit, offset)
	}
	return nil, nil
}

func (m *mockSubmissions) Approve(ctx context.Context, submissionID, moderatorID string) (*service.ApproveResult, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, submissionID, moderatorID)
	}
	return &service.ApproveResult{PublicID: "public-1"}, nil
}

func (m *mockSubmissions) Reject(ctx context.Context, submissionID, moderatorID, reason string) (*model.Submission, error) {
	if m.rejectFn != nil {
		return m.rejectFn(ctx, submissionID, moderatorID, reason)
	}
	return &model.Submission{ID: submissionID, Status: model.SubmissionRejected, RejectReason: &reason}, nil
}

type mockSync struct {
	syncFn   func(ctx context.Context, userID string, scope model.SyncScope, filter model.SyncFilter) (*model.SyncResult, error)
	statusFn func(ctx context.Context, userID string, scope model.SyncScope, filter model.SyncFilter) (*model.SyncStatus, error)
}

func (m *mockSync) SyncScope(ctx context.Context, userID string, scope model.SyncScope, filter model.SyncFilter) (*model.SyncResult, error) {
	if m.syncFn != nil {
		return m.syncFn(ctx, userID, scope, filter)
	}
	return &model.SyncResult{}, nil
}

func (m *mockSync) Status(ctx context.Context, userID string, scope model.SyncScope, filter model.SyncFilter) (*model.SyncStatus, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, userID, scope, filter)
	}
	return &model.SyncStatus{}, nil
}

type mockReconcile struct {
	sweepFn func(ctx context.Context) (*model.ReconcileResult, error)
}

func (m *mockReconcile) Sweep(ctx context.Context) (*model.ReconcileResult, error) {
	if m.sweepFn != nil {
		return m.sweepFn(ctx)
	}
	return &model.ReconcileResult{}, nil
}

type mockLineups struct {
	exportFn        func(ctx context.Context, userID, lineupID string) (*service.PackageExport, error)
	migrateImagesFn func(ctx context.Context, userID, lineupID string, target provider.Config) (*service.MigrationResult, error)
	deletePublicFn  func(ctx context.Context, publicID, moderatorID string) error
	deleteManyFn    func(ctx context.Context, ids []string, moderatorID string) (*model.BulkDeleteResult, error)
	listLogsFn      func(ctx context.Context, limit, offset int) ([]*model.DownloadLog, error)
}

func (m *mockLineups) Export(ctx context.Context, userID, lineupID string) (*service.PackageExport, error) {
	if m.exportFn != nil {
		return m.exportFn(ctx, userID, lineupID)
	}
	return &service.PackageExport{FileName: "x.zip"}, nil
}

func (m *mockLineups) MigrateImages(ctx context.Context, userID, lineupID string, target provider.Config) (*service.MigrationResult, error) {
	if m.migrateImagesFn != nil {
		return m.migrateImagesFn(ctx, userID, lineupID, target)
	}
	return &service.MigrationResult{}, nil
}

func (m *mockLineups) DeletePublic(ctx context.Context, publicID, moderatorID string) error {
	if m.deletePublicFn != nil {
		return m.deletePublicFn(ctx, publicID, moderatorID)
	}
	return nil
}

func (m *mockLineups) DeletePublicMany(ctx context.Context, ids []string, moderatorID string) (*model.BulkDeleteResult, error) {
	if m.deleteManyFn != nil {
		return m.deleteManyFn(ctx, ids, moderatorID)
	}
	return &model.BulkDeleteResult{Deleted: ids}, nil
}

func (m *mockLineups) ListDownloadLogs(ctx context.Context, limit, offset int) ([]*model.DownloadLog, error) {
	if m.listLogsFn != nil {
		return m.listLogsFn(ctx, limit, offset)
	}
	return nil, nil
}

type mockQuota struct {
	checkLimitFn func(ctx context.Context, userID string, action model.QuotaAction, n int) (*model.QuotaStatus, error)
}

func (m *mockQuota) CheckLimit(ctx context.Context, userID string, action model.QuotaAction, n int) (*model.QuotaStatus, error) {
	if m.checkLimitFn != nil {
		return m.checkLimitFn(ctx, userID, action, n)
	}
	return &model.QuotaStatus{Action: action, Allowed: true}, nil
}

// --- Тестовое окружение ---

type testEnv struct {
	subs      *mockSubmissions
	sync      *mockSync
	reconcile *mockReconcile
	lineups   *mockLineups
	quota     *mockQuota
	router    http.Handler
}

// claimsFromHeader — подмена JWT middleware: субъект и роль из заголовков X-Test-*.
func claimsFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sub := r.Header.Get("X-Test-Sub"); sub != "" {
			role := r.Header.Get("X-Test-Role")
			if role == "" {
				role = rbac.RoleUser
			}
			r = r.WithContext(middleware.WithClaims(r.Context(), &middleware.AuthClaims{Subject: sub, Role: role}))
		}
		next.ServeHTTP(w, r)
	})
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		subs:      &mockSubmissions{},
		sync:      &mockSync{},
		reconcile: &mockReconcile{},
		lineups:   &mockLineups{},
		quota:     &mockQuota{},
	}
	h := NewAPIHandler(Deps{
		Submissions:     env.subs,
		Sync:            env.sync,
		Reconcile:       env.reconcile,
		Lineups:         env.lineups,
		Quota:           env.quota,
		PackageMaxBytes: 1 << 10,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	r.Use(claimsFromHeader)
	RegisterAPIRoutes(r, h)
	env.router = r
	return env
}

// do выполняет запрос от имени sub с ролью role (пустой sub — без аутентификации).
func (e *testEnv) do(req *http.Request, sub, role string) *httptest.ResponseRecorder {
	if sub != "" {
		req.Header.Set("X-Test-Sub", sub)
		req.Header.Set("X-Test-Role", role)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type errorResponse struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("тело ошибки не JSON: %v (%s)", err, rec.Body.String())
	}
	return resp
}
