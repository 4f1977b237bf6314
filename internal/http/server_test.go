package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pockets/internal/core"
	"pockets/internal/ledger"
	"pockets/internal/middleware/ratelimit"
	"pockets/internal/services"
	"pockets/internal/store"
	"pockets/internal/store/memory"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv    *Server
	mainID string
}

func newTestEnv(t *testing.T, log store.Log, dir store.Directory, rl ratelimit.Config) *testEnv {
	t.Helper()
	var mu sync.Mutex
	seq := 0
	newID := func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}
	now := func() time.Time { return fixedNow }

	l := ledger.New(log, ledger.Options{Now: now, NewID: newID})
	svc := services.NewPocketService(l, dir, services.Options{
		Entitlement: services.PocketLimit(3),
		NewID:       newID,
	})
	main, err := svc.EnsureMainPocket(context.Background())
	if err != nil {
		t.Fatalf("EnsureMainPocket: %v", err)
	}
	srv := NewServer(":0", svc, Options{Currency: "EUR", Now: now, RateLimit: rl})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, mainID: main.ID}
}

func newMemoryEnv(t *testing.T) *testEnv {
	st := memory.New()
	return newTestEnv(t, st, st, ratelimit.Config{RequestsPerMinute: 1000})
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)

	var out map[string]any
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: response is not JSON: %q", method, path, rr.Body.String())
		}
	}
	return rr, out
}

func (e *testEnv) mustDo(t *testing.T, method, path string, body any, want int) map[string]any {
	t.Helper()
	rr, out := e.do(t, method, path, body)
	if rr.Code != want {
		t.Fatalf("%s %s: status %d, want %d; body %s", method, path, rr.Code, want, rr.Body.String())
	}
	return out
}

func cents(t *testing.T, v any) int64 {
	t.Helper()
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected money object, got %#v", v)
	}
	return int64(m["cents"].(float64))
}

func (e *testEnv) pocketBalances(t *testing.T) map[string]int64 {
	t.Helper()
	out := e.mustDo(t, http.MethodGet, "/api/pockets", nil, http.StatusOK)
	balances := map[string]int64{}
	for _, p := range out["pockets"].([]any) {
		pm := p.(map[string]any)
		balances[pm["id"].(string)] = cents(t, pm["balance"])
	}
	return balances
}

func TestHealthAndReady(t *testing.T) {
	env := newMemoryEnv(t)

	rr, out := env.do(t, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK || out["status"] != "ok" {
		t.Fatalf("healthz: %d %v", rr.Code, out)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing security headers")
	}

	out = env.mustDo(t, http.MethodGet, "/readyz", nil, http.StatusOK)
	if out["status"] != "ready" {
		t.Fatalf("readyz: %v", out)
	}
}

type brokenLog struct{ store.Log }

func (brokenLog) All(context.Context) ([]core.Transaction, error) {
	return nil, errors.New("disk on fire")
}

func TestReadyReportsBrokenStorage(t *testing.T) {
	st := memory.New()
	env := newTestEnv(t, brokenLog{st}, st, ratelimit.Config{})

	out := env.mustDo(t, http.MethodGet, "/readyz", nil, http.StatusServiceUnavailable)
	if out["status"] != "not_ready" {
		t.Fatalf("readyz: %v", out)
	}
	out = env.mustDo(t, http.MethodGet, "/api/pockets", nil, http.StatusServiceUnavailable)
	if out["code"] != "storage" || strings.Contains(out["error"].(string), "fire") {
		t.Fatalf("storage error must be mapped and hidden: %v", out)
	}
}

func TestTransferAndPocketDeletionFlow(t *testing.T) {
	env := newMemoryEnv(t)

	b := env.mustDo(t, http.MethodPost, "/api/pockets", map[string]string{"name": "Trips", "kind": "spending"}, http.StatusCreated)
	bID := b["id"].(string)

	env.mustDo(t, http.MethodPost, "/api/income", map[string]string{"pocket_id": env.mainID, "amount": "100.00", "description": "salary"}, http.StatusCreated)
	tr := env.mustDo(t, http.MethodPost, "/api/transfers", map[string]string{"from_pocket_id": env.mainID, "to_pocket_id": bID, "amount": "30"}, http.StatusCreated)
	if tr["shape"] != "pocket_transfer" {
		t.Fatalf("unexpected transfer shape %v", tr["shape"])
	}

	out := env.mustDo(t, http.MethodPost, "/api/expenses", map[string]string{"pocket_id": bID, "amount": "50"}, http.StatusConflict)
	if out["code"] != "insufficient_balance" || cents(t, out["current"]) != 3000 || cents(t, out["requested"]) != 5000 {
		t.Fatalf("unexpected conflict body %v", out)
	}

	bal := env.pocketBalances(t)
	if bal[env.mainID] != 7000 || bal[bID] != 3000 {
		t.Fatalf("balances before delete: %v", bal)
	}

	del := env.mustDo(t, http.MethodDelete, "/api/pockets/"+bID, nil, http.StatusOK)
	if del["reconciled"] != true || len(del["deleted_transaction_ids"].([]any)) != 1 {
		t.Fatalf("unexpected delete result %v", del)
	}
	inserted := del["inserted_transactions"].([]any)
	if len(inserted) != 1 {
		t.Fatalf("expected one compensating record, got %v", inserted)
	}
	comp := inserted[0].(map[string]any)
	if comp["origin"] != string(core.OriginRevertedTransfer) || comp["pocket_id"] != env.mainID || comp["kind"] != "expense" {
		t.Fatalf("unexpected compensating record %v", comp)
	}

	bal = env.pocketBalances(t)
	if _, ok := bal[bID]; ok {
		t.Fatal("deleted pocket still listed")
	}
	if bal[env.mainID] != 7000 {
		t.Fatalf("main balance after delete = %d, want 7000", bal[env.mainID])
	}

	out = env.mustDo(t, http.MethodDelete, "/api/pockets/"+env.mainID, nil, http.StatusUnprocessableEntity)
	if out["code"] != "validation" {
		t.Fatalf("deleting main: %v", out)
	}
}

func TestGoalAllocationAndWithdrawal(t *testing.T) {
	env := newMemoryEnv(t)
	env.mustDo(t, http.MethodPost, "/api/income", map[string]string{"pocket_id": env.mainID, "amount": "500"}, http.StatusCreated)

	g := env.mustDo(t, http.MethodPost, "/api/goals", map[string]any{
		"name": "Bike", "target_amount": "1000", "duration_months": 10, "kind": "saving",
	}, http.StatusCreated)
	gID := g["id"].(string)

	env.mustDo(t, http.MethodPost, "/api/allocations", map[string]string{"pocket_id": env.mainID, "goal_id": gID, "amount": "200"}, http.StatusCreated)

	out := env.mustDo(t, http.MethodPost, "/api/withdrawals", map[string]string{"goal_id": gID, "pocket_id": env.mainID, "amount": "250"}, http.StatusConflict)
	if out["code"] != "exceeds_goal_balance" {
		t.Fatalf("unexpected withdrawal error %v", out)
	}
	env.mustDo(t, http.MethodPost, "/api/withdrawals", map[string]string{"goal_id": gID, "pocket_id": env.mainID, "amount": "50"}, http.StatusCreated)

	goals := env.mustDo(t, http.MethodGet, "/api/goals", nil, http.StatusOK)["goals"].([]any)
	if len(goals) != 1 {
		t.Fatalf("goals: %v", goals)
	}
	gv := goals[0].(map[string]any)
	if cents(t, gv["balance"]) != 15000 || cents(t, gv["funded"]) != 0 {
		t.Fatalf("goal view %v", gv)
	}
	if cents(t, gv["monthly_contribution"]) != 8500 {
		t.Fatalf("monthly contribution = %d, want 8500", cents(t, gv["monthly_contribution"]))
	}

	out = env.mustDo(t, http.MethodDelete, "/api/goals/"+gID, nil, http.StatusUnprocessableEntity)
	if out["field"] != "goal_id" {
		t.Fatalf("goal deletion with balance: %v", out)
	}

	bal := env.pocketBalances(t)
	if bal[env.mainID] != 35000 {
		t.Fatalf("main balance = %d, want 35000", bal[env.mainID])
	}
}

func TestRequestErrors(t *testing.T) {
	env := newMemoryEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"negative amount", http.MethodPost, "/api/income", map[string]string{"pocket_id": env.mainID, "amount": "-5"}, http.StatusUnprocessableEntity, "validation"},
		{"bad date", http.MethodPost, "/api/income", map[string]string{"pocket_id": env.mainID, "amount": "5", "date": "15/06/2025"}, http.StatusUnprocessableEntity, "validation"},
		{"unknown field", http.MethodPost, "/api/income", `{"pocket":"x","amount":"5"}`, http.StatusBadRequest, "bad_request"},
		{"trailing data", http.MethodPost, "/api/income", `{"amount":"5"}{}`, http.StatusBadRequest, "bad_request"},
		{"unknown pocket", http.MethodPost, "/api/expenses", map[string]string{"pocket_id": "nope", "amount": "5"}, http.StatusNotFound, "not_found"},
		{"unknown goal", http.MethodPost, "/api/allocations", map[string]string{"pocket_id": env.mainID, "goal_id": "nope", "amount": "5"}, http.StatusNotFound, "not_found"},
		{"self transfer", http.MethodPost, "/api/transfers", map[string]string{"from_pocket_id": env.mainID, "to_pocket_id": env.mainID, "amount": "5"}, http.StatusUnprocessableEntity, "validation"},
		{"main pocket by hand", http.MethodPost, "/api/pockets", map[string]string{"name": "Other", "kind": "main"}, http.StatusUnprocessableEntity, "validation"},
		{"unknown transaction", http.MethodDelete, "/api/transactions/nope", nil, http.StatusNotFound, "not_found"},
		{"bad month", http.MethodGet, "/api/summary?month=13", nil, http.StatusUnprocessableEntity, "validation"},
		{"non-numeric year", http.MethodGet, "/api/summary?year=abc", nil, http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := env.mustDo(t, tt.method, tt.path, tt.body, tt.status)
			if out["code"] != tt.code {
				t.Fatalf("code = %v, want %s (%v)", out["code"], tt.code, out)
			}
			if out["request_id"] == "" || out["request_id"] == nil {
				t.Fatal("error body should carry the request id")
			}
		})
	}
}

func TestPocketLimit(t *testing.T) {
	env := newMemoryEnv(t)
	env.mustDo(t, http.MethodPost, "/api/pockets", map[string]string{"name": "A", "kind": "saving"}, http.StatusCreated)
	env.mustDo(t, http.MethodPost, "/api/pockets", map[string]string{"name": "B", "kind": "investment"}, http.StatusCreated)
	out := env.mustDo(t, http.MethodPost, "/api/pockets", map[string]string{"name": "C", "kind": "spending"}, http.StatusForbidden)
	if out["code"] != "pocket_limit" {
		t.Fatalf("unexpected body %v", out)
	}
}

func TestUpdateRemoveAndListTransactions(t *testing.T) {
	env := newMemoryEnv(t)
	inc := env.mustDo(t, http.MethodPost, "/api/income", map[string]string{"pocket_id": env.mainID, "amount": "40", "date": "2025-06-01"}, http.StatusCreated)
	exp := env.mustDo(t, http.MethodPost, "/api/expenses", map[string]string{"pocket_id": env.mainID, "amount": "10", "category": "Food", "date": "2030-01-01"}, http.StatusCreated)
	if exp["date"] != "2025-06-15" {
		t.Fatalf("future date should clamp to today, got %v", exp["date"])
	}

	expID := exp["id"].(string)
	out := env.mustDo(t, http.MethodPatch, "/api/transactions/"+expID, map[string]string{"amount": "45"}, http.StatusConflict)
	if out["code"] != "insufficient_balance" {
		t.Fatalf("raising an expense past the balance: %v", out)
	}
	upd := env.mustDo(t, http.MethodPatch, "/api/transactions/"+expID, map[string]string{"amount": "12.5", "description": "lunch"}, http.StatusOK)
	if cents(t, upd["amount"]) != 1250 || upd["description"] != "lunch" || upd["id"] != expID {
		t.Fatalf("unexpected update %v", upd)
	}

	list := env.mustDo(t, http.MethodGet, "/api/transactions?pocket_id="+env.mainID, nil, http.StatusOK)["transactions"].([]any)
	if len(list) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(list))
	}

	rr, _ := env.do(t, http.MethodDelete, "/api/transactions/"+inc["id"].(string), nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status %d", rr.Code)
	}
	if bal := env.pocketBalances(t); bal[env.mainID] != -1250 {
		t.Fatalf("balance after removing income = %d, want -1250", bal[env.mainID])
	}
}

func TestSummary(t *testing.T) {
	env := newMemoryEnv(t)
	env.mustDo(t, http.MethodPost, "/api/income", map[string]string{"pocket_id": env.mainID, "amount": "100", "date": "2025-06-01"}, http.StatusCreated)
	env.mustDo(t, http.MethodPost, "/api/expenses", map[string]string{"pocket_id": env.mainID, "amount": "20", "category": "Food", "date": "2025-06-02"}, http.StatusCreated)
	env.mustDo(t, http.MethodPost, "/api/expenses", map[string]string{"pocket_id": env.mainID, "amount": "5", "date": "2025-05-30"}, http.StatusCreated)

	out := env.mustDo(t, http.MethodGet, "/api/summary", nil, http.StatusOK)
	if out["month"].(float64) != 6 || cents(t, out["income"]) != 10000 || cents(t, out["expense"]) != 2000 || cents(t, out["net"]) != 8000 {
		t.Fatalf("unexpected June summary %v", out)
	}
	cats := out["by_category"].([]any)
	if len(cats) != 1 || cats[0].(map[string]any)["name"] != "Food" {
		t.Fatalf("unexpected categories %v", cats)
	}

	may := env.mustDo(t, http.MethodGet, "/api/summary?year=2025&month=5", nil, http.StatusOK)
	if cents(t, may["expense"]) != 500 {
		t.Fatalf("unexpected May summary %v", may)
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	st := memory.New()
	env := newTestEnv(t, st, st, ratelimit.Config{RequestsPerMinute: 1})

	env.mustDo(t, http.MethodPost, "/api/income", map[string]string{"pocket_id": env.mainID, "amount": "1"}, http.StatusCreated)
	out := env.mustDo(t, http.MethodPost, "/api/income", map[string]string{"pocket_id": env.mainID, "amount": "1"}, http.StatusTooManyRequests)
	if out["code"] != "rate_limited" {
		t.Fatalf("unexpected body %v", out)
	}
	env.mustDo(t, http.MethodGet, "/api/pockets", nil, http.StatusOK)
}
