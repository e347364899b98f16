// Package obralinksdk is a small client for the obralink HTTP API.
//
// The client never retries. A failed request surfaces as *TransportError
// when nothing came back, or as *APIError carrying the server's error code.
package obralinksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal obralink HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	ProjectID   string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, projectID, bearer string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BasePath:    "/v1",
		ProjectID:   projectID,
		BearerToken: bearer,
		Timeout:     10 * time.Second,
	}
}

// Grant is the caller's access on the project.
type Grant struct {
	ProjectID              string  `json:"projectId"`
	ActorRole              string  `json:"actorRole"`
	Scope                  string  `json:"scope"`
	AuthorizedRFIIDs       []int64 `json:"authorizedRfiIds"`
	AuthorizedAdicionalIDs []int64 `json:"authorizedAdicionalIds"`
	AuthorizedPagoIDs      []int64 `json:"authorizedPagoIds,omitempty"`
	Subject                string  `json:"subject,omitempty"`
	Via                    string  `json:"via,omitempty"`
}

// RFI represents the API RFI model (partial).
type RFI struct {
	ID        int64  `json:"id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Urgency   string `json:"urgency"`
	Response  string `json:"response,omitempty"`
	Version   int64  `json:"version"`
}

type RFIList struct {
	Items    []RFI `json:"items"`
	AutoOpen *RFI  `json:"auto_open,omitempty"`
}

type Adicional struct {
	ID              int64  `json:"id"`
	ProjectID       string `json:"project_id"`
	Title           string `json:"title"`
	Status          string `json:"status"`
	PresentedAmount int64  `json:"presented_amount"`
	ApprovedAmount  *int64 `json:"approved_amount,omitempty"`
	RejectionNotes  string `json:"rejection_notes,omitempty"`
}

type AdicionalList struct {
	Items    []Adicional `json:"items"`
	AutoOpen *Adicional  `json:"auto_open,omitempty"`
}

// Pago is a payment submission with its role-dependent label.
type Pago struct {
	ID                int64           `json:"id"`
	Period            string          `json:"period"`
	TotalAmount       int64           `json:"total_amount"`
	Status            string          `json:"status"`
	StatusLabel       string          `json:"status_label"`
	ApprovalProgress  int             `json:"approval_progress"`
	ApprovalsRequired int             `json:"approvals_required"`
	Documents         map[string]bool `json:"documents"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id"`
	EntityID   string `json:"entity_id"`
	EntityKind string `json:"entity_kind"`
	ActorID    string `json:"actor_id"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// LinkToken is returned when an access reference is redeemed.
type LinkToken struct {
	Token string `json:"token"`
	Grant Grant  `json:"grant"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// TransportError means the request never produced a response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "transport error: " + e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// NeedsVerification reports whether err sends the caller back to sign in.
func NeedsVerification(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsStale reports whether err means the item changed underneath the caller.
func IsStale(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// Grant resolves the caller's grant on the project.
func (c *Client) Grant(ctx context.Context) (Grant, error) {
	var resp struct {
		Grant Grant `json:"grant"`
	}
	err := c.do(ctx, http.MethodGet, c.projectPath("grant"), nil, &resp)
	return resp.Grant, err
}

// ListRFIs lists visible RFIs. A non-zero openID is passed as the rfiId deep link.
func (c *Client) ListRFIs(ctx context.Context, openID int64) (RFIList, error) {
	var resp RFIList
	err := c.do(ctx, http.MethodGet, withDeepLink(c.projectPath("rfis"), "rfiId", openID), nil, &resp)
	return resp, err
}

func (c *Client) GetRFI(ctx context.Context, id int64) (RFI, error) {
	var resp RFI
	err := c.do(ctx, http.MethodGet, c.projectPath(fmt.Sprintf("rfis/%d", id)), nil, &resp)
	return resp, err
}

func (c *Client) CreateRFI(ctx context.Context, title, description, urgency string) (RFI, error) {
	body := map[string]any{"title": title}
	if description != "" {
		body["description"] = description
	}
	if urgency != "" {
		body["urgency"] = urgency
	}
	var resp RFI
	err := c.do(ctx, http.MethodPost, c.projectPath("rfis"), body, &resp)
	return resp, err
}

func (c *Client) RespondRFI(ctx context.Context, id int64, response string) (RFI, error) {
	var resp RFI
	err := c.do(ctx, http.MethodPost, c.projectPath(fmt.Sprintf("rfis/%d/respond", id)), map[string]any{"response": response}, &resp)
	return resp, err
}

func (c *Client) ForwardRFI(ctx context.Context, id int64, recipients []string) (RFI, error) {
	var resp RFI
	err := c.do(ctx, http.MethodPost, c.projectPath(fmt.Sprintf("rfis/%d/forward", id)), map[string]any{"recipients": recipients}, &resp)
	return resp, err
}

// ListAdicionales lists visible adicionales. A non-zero openID is passed as
// the adicionalId deep link.
func (c *Client) ListAdicionales(ctx context.Context, openID int64) (AdicionalList, error) {
	var resp AdicionalList
	err := c.do(ctx, http.MethodGet, withDeepLink(c.projectPath("adicionales"), "adicionalId", openID), nil, &resp)
	return resp, err
}

func (c *Client) CreateAdicional(ctx context.Context, title string, amount int64) (Adicional, error) {
	var resp Adicional
	err := c.do(ctx, http.MethodPost, c.projectPath("adicionales"), map[string]any{"title": title, "presented_amount": amount}, &resp)
	return resp, err
}

// ApproveAdicional approves id. A nil amount approves the presented amount.
func (c *Client) ApproveAdicional(ctx context.Context, id int64, amount *int64) (Adicional, error) {
	body := map[string]any{}
	if amount != nil {
		body["approved_amount"] = *amount
	}
	var resp Adicional
	err := c.do(ctx, http.MethodPost, c.projectPath(fmt.Sprintf("adicionales/%d/approve", id)), body, &resp)
	return resp, err
}

func (c *Client) RejectAdicional(ctx context.Context, id int64, notes string) (Adicional, error) {
	var resp Adicional
	err := c.do(ctx, http.MethodPost, c.projectPath(fmt.Sprintf("adicionales/%d/reject", id)), map[string]any{"notes": notes}, &resp)
	return resp, err
}

func (c *Client) ListPagos(ctx context.Context) ([]Pago, error) {
	var resp struct {
		Items []Pago `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, c.projectPath("pagos"), nil, &resp)
	return resp.Items, err
}

func (c *Client) GetPago(ctx context.Context, id int64) (Pago, error) {
	var resp Pago
	err := c.do(ctx, http.MethodGet, c.projectPath(fmt.Sprintf("pagos/%d", id)), nil, &resp)
	return resp, err
}

func (c *Client) ApprovePago(ctx context.Context, id int64) (Pago, error) {
	var resp Pago
	err := c.do(ctx, http.MethodPost, c.projectPath(fmt.Sprintf("pagos/%d/approve", id)), nil, &resp)
	return resp, err
}

func (c *Client) RejectPago(ctx context.Context, id int64, notes string) (Pago, error) {
	var resp Pago
	err := c.do(ctx, http.MethodPost, c.projectPath(fmt.Sprintf("pagos/%d/reject", id)), map[string]any{"notes": notes}, &resp)
	return resp, err
}

// Redeem exchanges a payment access reference for a link token scoped to
// that payment. The client must carry a mandante session token; the
// returned token is not installed on the client.
func (c *Client) Redeem(ctx context.Context, ref string) (LinkToken, error) {
	var resp LinkToken
	endpoint := c.path(fmt.Sprintf("access/%s/redeem", url.PathEscape(ref)))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := c.projectPath("events")
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + endpoint, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) path(p string) string {
	base := strings.Trim(c.BasePath, "/")
	if base == "" {
		return strings.TrimLeft(p, "/")
	}
	return base + "/" + strings.TrimLeft(p, "/")
}

func (c *Client) projectPath(p string) string {
	return c.path(fmt.Sprintf("projects/%s/%s", url.PathEscape(c.ProjectID), strings.TrimLeft(p, "/")))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func withDeepLink(endpoint, param string, id int64) string {
	if id <= 0 {
		return endpoint
	}
	return endpoint + "?" + param + "=" + strconv.FormatInt(id, 10)
}
