package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"obralink/internal/config"
	"obralink/internal/db"
	"obralink/internal/domain"
	"obralink/internal/engine"
	"obralink/internal/grant"
	"obralink/internal/metrics"
	"obralink/internal/migrate"
	"obralink/internal/token"
)

const projectID = "obra-1"

type testServer struct {
	URL    string
	Tokens token.Issuer
	Sent   *outbox
	client *http.Client
}

// outbox keeps the notifications the engine dispatched.
type outbox struct {
	mu    sync.Mutex
	notes []domain.Notification
}

func (o *outbox) Notify(_ context.Context, n domain.Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notes = append(o.notes, n)
	return nil
}

func (o *outbox) accessRef(itemID int64) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, n := range o.notes {
		if n.Kind == domain.KindPayment && n.ItemID == itemID && n.AccessRef != "" {
			return n.AccessRef
		}
	}
	return ""
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Payments.RequiredDocuments = []string{"f30"}
	e := engine.New(conn, cfg)
	m := metrics.New()
	e.Metrics = m
	sent := &outbox{}
	e.Notifier = sent
	if _, err := e.CreateProject(ctx, engine.CreateProjectOptions{
		ID: projectID, Name: "Edificio Los Olmos", ContractorOrgID: "constructora", MandanteOrgID: "inmobiliaria", ActorID: "admin",
	}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	for _, m := range []struct {
		role    domain.Role
		account string
	}{
		{domain.RoleContractor, "ana"},
		{domain.RoleMandante, "mauro"},
		{domain.RoleContractor, "dual"},
		{domain.RoleMandante, "dual"},
	} {
		if err := e.AddMember(ctx, projectID, m.role, m.account, "admin"); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}
	tokens := token.Issuer{Secret: "test-secret", TTL: time.Hour}
	handler, err := New(Config{Engine: e, Tokens: tokens, LinkTTL: time.Hour, DevLogin: true, Metrics: m})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{URL: srv.URL, Tokens: tokens, Sent: sent, client: srv.Client()}
}

func (s *testServer) session(t *testing.T, account string, role domain.Role) string {
	t.Helper()
	raw, err := s.Tokens.SignSession(account, role)
	if err != nil {
		t.Fatalf("sign session: %v", err)
	}
	return raw
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return out
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode error %s: %v", data, err)
	}
	return env.Error.Code
}

func rfiPath(suffix string) string {
	return "/v1/projects/" + projectID + "/rfis" + suffix
}

func TestMissingTokenNeedsVerification(t *testing.T) {
	srv := newTestServer(t)

	res, data := srv.do(t, http.MethodGet, rfiPath(""), "", nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, data)
	}
	if code := errorCode(t, data); code != "verification_required" {
		t.Fatalf("expected verification_required, got %s", code)
	}

	res, _ = srv.do(t, http.MethodGet, rfiPath(""), "not-a-jwt", nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", res.StatusCode)
	}

	res, _ = srv.do(t, http.MethodGet, "/v1/health", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should be public, got %d", res.StatusCode)
	}
}

func TestDualMemberMustPickRole(t *testing.T) {
	srv := newTestServer(t)

	res, data := srv.do(t, http.MethodGet, "/v1/projects/"+projectID+"/grant", srv.session(t, "dual", ""), nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, data)
	}
	if code := errorCode(t, data); code != "role_selection_required" {
		t.Fatalf("expected role_selection_required, got %s", code)
	}

	res, data = srv.do(t, http.MethodGet, "/v1/projects/"+projectID+"/grant", srv.session(t, "dual", domain.RoleMandante), nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("grant: %d %s", res.StatusCode, data)
	}
	got := decode[GrantResponse](t, data)
	if got.Grant.ActorRole != domain.RoleMandante || got.Grant.Scope != grant.ScopeGeneral {
		t.Fatalf("unexpected grant %+v", got.Grant)
	}
}

func TestRFIRespondOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	contractor := srv.session(t, "ana", "")
	mandante := srv.session(t, "mauro", "")

	res, data := srv.do(t, http.MethodPost, rfiPath(""), contractor, map[string]any{
		"title":   "Detalle de losa nivel 3",
		"urgency": "urgente",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create rfi: %d %s", res.StatusCode, data)
	}
	created := decode[domain.RFI](t, data)

	res, data = srv.do(t, http.MethodPost, rfiPath(fmt.Sprintf("/%d/respond", created.ID)), contractor, map[string]any{"response": "yo mismo"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("contractor respond: expected 403, got %d %s", res.StatusCode, data)
	}

	res, data = srv.do(t, http.MethodPost, rfiPath(fmt.Sprintf("/%d/respond", created.ID)), mandante, map[string]any{"response": "Usar malla C-188"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("respond: %d %s", res.StatusCode, data)
	}
	answered := decode[domain.RFI](t, data)
	if answered.Status != domain.RFIRespondido || answered.Response != "Usar malla C-188" {
		t.Fatalf("unexpected rfi %+v", answered)
	}

	res, data = srv.do(t, http.MethodPost, rfiPath(fmt.Sprintf("/%d/respond", created.ID)), mandante, map[string]any{"response": "otra vez"})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("second respond: expected 409, got %d %s", res.StatusCode, data)
	}
	if code := errorCode(t, data); code != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %s", code)
	}

	res, data = srv.do(t, http.MethodPost, rfiPath(""), contractor, map[string]any{"title": ""})
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("empty title: expected 422, got %d %s", res.StatusCode, data)
	}

	res, data = srv.do(t, http.MethodGet, "/v1/projects/"+projectID+"/events?type=rfi.responded", contractor, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events: %d %s", res.StatusCode, data)
	}
	if evts := decode[EventListResponse](t, data); len(evts.Items) != 1 {
		t.Fatalf("expected one rfi.responded event, got %+v", evts.Items)
	}
}

func TestScopedLinkTokenOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	contractor := srv.session(t, "ana", "")

	var ids []int64
	for _, title := range []string{"Escalera", "Fachada"} {
		res, data := srv.do(t, http.MethodPost, rfiPath(""), contractor, map[string]any{"title": title})
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("create rfi: %d %s", res.StatusCode, data)
		}
		ids = append(ids, decode[domain.RFI](t, data).ID)
	}
	link, err := srv.Tokens.SignLink(grant.Grant{
		ProjectID:              projectID,
		ActorRole:              domain.RoleSpecialist,
		Scope:                  grant.ScopeRFIOnly,
		AuthorizedRFIIDs:       []int64{ids[1]},
		AuthorizedAdicionalIDs: []int64{},
		Subject:                "ing.estructural@example.com",
		Via:                    grant.SourceLink,
	})
	if err != nil {
		t.Fatalf("sign link: %v", err)
	}

	res, data := srv.do(t, http.MethodGet, rfiPath(fmt.Sprintf("?rfiId=%d", ids[1])), link, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", res.StatusCode, data)
	}
	listed := decode[RFIListResponse](t, data)
	if len(listed.Items) != 1 || listed.Items[0].ID != ids[1] {
		t.Fatalf("expected only rfi %d, got %+v", ids[1], listed.Items)
	}
	if listed.AutoOpen == nil || listed.AutoOpen.ID != ids[1] {
		t.Fatalf("expected auto-open of %d, got %+v", ids[1], listed.AutoOpen)
	}
	if loc := res.Header.Get("Content-Location"); strings.Contains(loc, "rfiId") || !strings.HasSuffix(loc, rfiPath("")) {
		t.Fatalf("expected deep link stripped from location, got %q", loc)
	}

	res, data = srv.do(t, http.MethodGet, rfiPath(fmt.Sprintf("?rfiId=%d", ids[0])), link, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", res.StatusCode, data)
	}
	if listed = decode[RFIListResponse](t, data); listed.AutoOpen != nil {
		t.Fatalf("deep link outside allow-list must not open, got %+v", listed.AutoOpen)
	}

	res, _ = srv.do(t, http.MethodGet, rfiPath(fmt.Sprintf("/%d", ids[0])), link, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("hidden rfi: expected 404, got %d", res.StatusCode)
	}

	res, data = srv.do(t, http.MethodPost, rfiPath(""), link, map[string]any{"title": "Nueva"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("link create: expected 403, got %d %s", res.StatusCode, data)
	}

	res, _ = srv.do(t, http.MethodGet, "/v1/projects/"+projectID+"/adicionales", link, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("adicionales list: %d", res.StatusCode)
	}
}

func (s *testServer) submittedPago(t *testing.T, bearer string, body map[string]any) (PagoResponse, string) {
	t.Helper()
	base := "/v1/projects/" + projectID + "/pagos"
	res, data := s.do(t, http.MethodPost, base, bearer, body)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create pago: %d %s", res.StatusCode, data)
	}
	pago := decode[PagoResponse](t, data)
	res, data = s.do(t, http.MethodPost, fmt.Sprintf("%s/%d/submit", base, pago.ID), bearer, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit: %d %s", res.StatusCode, data)
	}
	return decode[PagoResponse](t, data), string(data)
}

func TestPagoSubmitRedeemApprove(t *testing.T) {
	srv := newTestServer(t)
	contractor := srv.session(t, "ana", "")
	base := "/v1/projects/" + projectID + "/pagos"

	res, data := srv.do(t, http.MethodPost, base, contractor, map[string]any{"period": "2026-02", "total_amount": 42000000})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create pago: %d %s", res.StatusCode, data)
	}
	pago := decode[PagoResponse](t, data)
	item := fmt.Sprintf("%s/%d", base, pago.ID)

	res, data = srv.do(t, http.MethodPost, item+"/submit", contractor, nil)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("submit without docs: expected 422, got %d %s", res.StatusCode, data)
	}

	res, data = srv.do(t, http.MethodPut, item+"/documents/f30", contractor, map[string]any{"present": true})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set document: %d %s", res.StatusCode, data)
	}
	if got := decode[PagoResponse](t, data); !got.Documents["f30"] {
		t.Fatalf("document not recorded: %+v", got.Documents)
	}
	res, data = srv.do(t, http.MethodPost, item+"/submit", contractor, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit: %d %s", res.StatusCode, data)
	}
	if pago = decode[PagoResponse](t, data); pago.StatusLabel != "Enviado" {
		t.Fatalf("unexpected submitted pago %+v", pago)
	}
	ref := srv.Sent.accessRef(pago.ID)
	if ref == "" {
		t.Fatal("submission notification carries no access reference")
	}

	mandante := srv.session(t, "mauro", "")
	res, data = srv.do(t, http.MethodPost, "/v1/access/"+ref+"/redeem", mandante, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("redeem: %d %s", res.StatusCode, data)
	}
	minted := decode[TokenResponse](t, data)
	g := minted.Grant
	if g.ActorRole != domain.RoleMandante || g.Via != grant.SourceLink || g.Scope != grant.ScopePagoOnly || g.Subject != "mauro" {
		t.Fatalf("unexpected grant %+v", g)
	}

	res, data = srv.do(t, http.MethodPost, "/v1/access/"+ref+"/redeem", mandante, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("second redeem: expected 401, got %d %s", res.StatusCode, data)
	}

	res, data = srv.do(t, http.MethodGet, item, minted.Token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get as mandante: %d %s", res.StatusCode, data)
	}
	if got := decode[PagoResponse](t, data); got.StatusLabel != "Recibido" {
		t.Fatalf("mandante should see Recibido, got %s", got.StatusLabel)
	}

	res, data = srv.do(t, http.MethodPost, item+"/approve", minted.Token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve: %d %s", res.StatusCode, data)
	}
	if got := decode[PagoResponse](t, data); got.Status != domain.PaymentAprobado {
		t.Fatalf("expected Aprobado, got %s", got.Status)
	}

	res, data = srv.do(t, http.MethodGet, "/metrics", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("metrics: %d", res.StatusCode)
	}
	if !strings.Contains(string(data), "obralink_transitions_total") {
		t.Fatalf("metrics missing transitions counter")
	}
}

func TestContractorCannotRedeemOwnReference(t *testing.T) {
	srv := newTestServer(t)
	contractor := srv.session(t, "ana", "")
	pago, raw := srv.submittedPago(t, contractor, map[string]any{"period": "2026-03", "total_amount": 1000, "required_documents": []string{}})
	ref := srv.Sent.accessRef(pago.ID)
	if ref == "" {
		t.Fatal("missing access reference")
	}
	if strings.Contains(raw, ref) || strings.Contains(raw, "access_ref") {
		t.Fatalf("submit response exposes the access reference: %s", raw)
	}

	_, data := srv.do(t, http.MethodGet, fmt.Sprintf("/v1/projects/%s/pagos/%d", projectID, pago.ID), contractor, nil)
	if strings.Contains(string(data), ref) {
		t.Fatalf("pago detail exposes the access reference: %s", data)
	}
	_, data = srv.do(t, http.MethodGet, "/v1/projects/"+projectID+"/events", contractor, nil)
	if strings.Contains(string(data), ref) {
		t.Fatalf("audit log exposes the access reference: %s", data)
	}

	res, data := srv.do(t, http.MethodPost, "/v1/access/"+ref+"/redeem", "", nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous redeem: expected 401, got %d %s", res.StatusCode, data)
	}
	res, data = srv.do(t, http.MethodPost, "/v1/access/"+ref+"/redeem", contractor, nil)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("contractor redeem: expected 403, got %d %s", res.StatusCode, data)
	}

	// the reference is still good for the mandante
	res, data = srv.do(t, http.MethodPost, "/v1/access/"+ref+"/redeem", srv.session(t, "mauro", ""), nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("mandante redeem: %d %s", res.StatusCode, data)
	}
	link := decode[TokenResponse](t, data).Token
	res, data = srv.do(t, http.MethodPost, rfiPath(""), contractor, map[string]any{"title": "Escalera"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create rfi: %d %s", res.StatusCode, data)
	}
	rfi := decode[domain.RFI](t, data)
	res, data = srv.do(t, http.MethodPost, rfiPath(fmt.Sprintf("/%d/respond", rfi.ID)), link, map[string]any{"response": "ok"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("payment link answering an rfi: expected 403, got %d %s", res.StatusCode, data)
	}
}

func TestPagoRejectOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	contractor := srv.session(t, "ana", "")
	mandante := srv.session(t, "mauro", "")
	noDocs := map[string]any{"period": "2026-04", "total_amount": 5000, "required_documents": []string{}}

	first, _ := srv.submittedPago(t, contractor, noDocs)
	item := fmt.Sprintf("/v1/projects/%s/pagos/%d", projectID, first.ID)

	res, data := srv.do(t, http.MethodPost, item+"/reject", contractor, map[string]any{"notes": "retiro"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("contractor reject: expected 403, got %d %s", res.StatusCode, data)
	}
	res, data = srv.do(t, http.MethodPost, item+"/reject", mandante, map[string]any{"notes": "falta F30 de subcontrato"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reject: %d %s", res.StatusCode, data)
	}
	got := decode[PagoResponse](t, data)
	if got.Status != domain.PaymentRechazado || got.RejectionNotes != "falta F30 de subcontrato" {
		t.Fatalf("unexpected pago %+v", got)
	}
	res, data = srv.do(t, http.MethodPost, item+"/reject", mandante, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("second reject: expected 409, got %d %s", res.StatusCode, data)
	}

	second, _ := srv.submittedPago(t, contractor, noDocs)
	res, data = srv.do(t, http.MethodPost, fmt.Sprintf("/v1/projects/%s/pagos/%d/reject", projectID, second.ID), mandante, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reject without notes: %d %s", res.StatusCode, data)
	}
	if got := decode[PagoResponse](t, data); got.Status != domain.PaymentRechazado {
		t.Fatalf("expected Rechazado, got %s", got.Status)
	}
}

func TestAdicionalDeepLinkOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	contractor := srv.session(t, "ana", "")
	mandante := srv.session(t, "mauro", "")
	base := "/v1/projects/" + projectID + "/adicionales"

	var ids []int64
	for _, title := range []string{"Refuerzo muro", "Cambio de ventanas"} {
		res, data := srv.do(t, http.MethodPost, base, contractor, map[string]any{"title": title, "presented_amount": 250000})
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("create adicional: %d %s", res.StatusCode, data)
		}
		ids = append(ids, decode[domain.Adicional](t, data).ID)
	}

	res, data := srv.do(t, http.MethodGet, fmt.Sprintf("%s?adicionalId=%d", base, ids[1]), mandante, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", res.StatusCode, data)
	}
	listed := decode[AdicionalListResponse](t, data)
	if len(listed.Items) != 2 {
		t.Fatalf("expected both adicionales, got %+v", listed.Items)
	}
	if listed.AutoOpen == nil || listed.AutoOpen.ID != ids[1] {
		t.Fatalf("expected auto-open of %d, got %+v", ids[1], listed.AutoOpen)
	}
	if loc := res.Header.Get("Content-Location"); strings.Contains(loc, "adicionalId") || !strings.HasSuffix(loc, base) {
		t.Fatalf("expected deep link stripped from location, got %q", loc)
	}

	res, data = srv.do(t, http.MethodPost, fmt.Sprintf("%s/%d/approve", base, ids[1]), mandante, map[string]any{})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve: %d %s", res.StatusCode, data)
	}
	// resolved items drop out of the mandante's list, so the link no longer opens
	res, data = srv.do(t, http.MethodGet, fmt.Sprintf("%s?adicionalId=%d", base, ids[1]), mandante, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", res.StatusCode, data)
	}
	if listed = decode[AdicionalListResponse](t, data); listed.AutoOpen != nil || len(listed.Items) != 1 {
		t.Fatalf("resolved adicional must not open: %+v", listed)
	}
}

func TestAdicionalRejectNeedsNotesOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	contractor := srv.session(t, "ana", "")
	mandante := srv.session(t, "mauro", "")
	base := "/v1/projects/" + projectID + "/adicionales"

	res, data := srv.do(t, http.MethodPost, base, contractor, map[string]any{"title": "Refuerzo muro", "presented_amount": 1500000})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create adicional: %d %s", res.StatusCode, data)
	}
	ad := decode[domain.Adicional](t, data)
	item := fmt.Sprintf("%s/%d", base, ad.ID)

	res, data = srv.do(t, http.MethodPost, item+"/reject", mandante, map[string]any{"notes": ""})
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("reject without notes: expected 422, got %d %s", res.StatusCode, data)
	}

	res, data = srv.do(t, http.MethodPost, item+"/reject", mandante, map[string]any{"notes": "budget exceeded"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reject: %d %s", res.StatusCode, data)
	}
	if got := decode[domain.Adicional](t, data); got.Status != domain.AdicionalRechazado || got.RejectionNotes != "budget exceeded" {
		t.Fatalf("unexpected adicional %+v", got)
	}
}

func TestDevSessionLogin(t *testing.T) {
	srv := newTestServer(t)
	res, data := srv.do(t, http.MethodPost, "/v1/auth/dev/session", "", map[string]any{"account_id": "ana"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev session: %d %s", res.StatusCode, data)
	}
	tok := decode[SessionTokenResponse](t, data).Token
	res, data = srv.do(t, http.MethodGet, rfiPath(""), tok, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list with dev token: %d %s", res.StatusCode, data)
	}
}

func TestOpenAPIConcurrentFirstRequests(t *testing.T) {
	srv := newTestServer(t)
	var wg sync.WaitGroup
	bodies := make([][]byte, 8)
	for i := range bodies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := srv.client.Get(srv.URL + "/v1/openapi.json")
			if err != nil {
				return
			}
			defer res.Body.Close()
			bodies[i], _ = io.ReadAll(res.Body)
		}(i)
	}
	wg.Wait()
	for i, b := range bodies {
		if !bytes.Equal(b, bodies[0]) || !strings.Contains(string(b), "list-pagos") {
			t.Fatalf("response %d differs or lacks operations: %.80s", i, b)
		}
	}
}
