package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hisname/photuris/internal/models"
)

// RESTClient is the concrete Client. One instance is bound to a single base
// URL and access token; switching accounts means discarding it and building a
// new one against the new session.
type RESTClient struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// Options configure a RESTClient beyond base URL and token.
type Options struct {
	// CAFile is an optional PEM bundle trusted in addition to nothing else:
	// when set, it becomes the only root pool, matching a self-hosted server
	// with a private CA.
	CAFile string

	// Timeout bounds every request. Zero means 30s.
	Timeout time.Duration
}

// NewRESTClient builds a Client for the given server.
func NewRESTClient(baseURL, accessToken string, opts Options) (*RESTClient, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.CAFile != "" {
		pem, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("ca file %s contains no certificates", opts.CAFile)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	}

	return &RESTClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Transport: transport, Timeout: opts.Timeout},
	}, nil
}

func (c *RESTClient) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, &Error{Kind: KindUnreachable, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	return resp, nil
}

// getJSON issues a GET and decodes a 2xx body into out. Non-2xx responses are
// converted to *Error: the server's own message when the error payload
// decodes, a generic message otherwise.
func (c *RESTClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindBadPayload, StatusCode: resp.StatusCode, Message: genericLoadError}
	}
	return nil
}

func errorFromResponse(resp *http.Response) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body wireErrorBody
	if err := json.Unmarshal(raw, &body); err != nil || body.Message == "" {
		return &Error{Kind: KindBadPayload, StatusCode: resp.StatusCode, Message: genericLoadError}
	}
	return &Error{Kind: KindServer, StatusCode: resp.StatusCode, Message: body.Message}
}

func pageQuery(page int) url.Values {
	return url.Values{"page": []string{strconv.Itoa(page)}}
}

// ListBudgets fetches one page of budget limits.
func (c *RESTClient) ListBudgets(ctx context.Context, page int) (Page[models.Budget], error) {
	var envelope listEnvelope[budgetEnvelope]
	if err := c.getJSON(ctx, "/api/v1/available-budgets", pageQuery(page), &envelope); err != nil {
		return Page[models.Budget]{}, err
	}
	return pageFromEnvelope(envelope, budgetEnvelope.record), nil
}

// ListBills fetches one page of bills.
func (c *RESTClient) ListBills(ctx context.Context, page int) (Page[models.Bill], error) {
	var envelope listEnvelope[billEnvelope]
	if err := c.getJSON(ctx, "/api/v1/bills", pageQuery(page), &envelope); err != nil {
		return Page[models.Bill]{}, err
	}
	return pageFromEnvelope(envelope, billEnvelope.record), nil
}

// GetBill fetches a single bill.
func (c *RESTClient) GetBill(ctx context.Context, id int64) (models.Bill, error) {
	var envelope itemEnvelope[billEnvelope]
	if err := c.getJSON(ctx, fmt.Sprintf("/api/v1/bills/%d", id), nil, &envelope); err != nil {
		return models.Bill{}, err
	}
	return envelope.Data.record(), nil
}

// DeleteBill issues the server-side delete and maps the response onto a
// DeleteStatus. Transport failures report DeleteFailed.
func (c *RESTClient) DeleteBill(ctx context.Context, id int64) (DeleteStatus, error) {
	resp, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/bills/%d", id), nil, nil)
	if err != nil {
		return DeleteFailed, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return DeleteSucceeded, nil
	case http.StatusUnauthorized:
		return DeleteUnauthorised, errorFromResponse(resp)
	default:
		return DeleteFailed, errorFromResponse(resp)
	}
}

// ListAttachments fetches attachment metadata for a bill.
func (c *RESTClient) ListAttachments(ctx context.Context, billID int64) ([]models.Attachment, error) {
	var envelope listEnvelope[attachmentEnvelope]
	if err := c.getJSON(ctx, fmt.Sprintf("/api/v1/bills/%d/attachments", billID), nil, &envelope); err != nil {
		return nil, err
	}
	records := make([]models.Attachment, 0, len(envelope.Data))
	for _, e := range envelope.Data {
		records = append(records, e.record())
	}
	return records, nil
}

// Download streams uri into dst. The destination is written atomically: a
// partial download never leaves a truncated file behind.
func (c *RESTClient) Download(ctx context.Context, uri string, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return &Error{Kind: KindUnreachable, Message: err.Error()}
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errorFromResponse(resp)
	}

	tmp := dst + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return classifyTransport(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	return os.Rename(tmp, dst)
}

// CurrentUser probes the authenticated-user endpoint and returns the email.
func (c *RESTClient) CurrentUser(ctx context.Context) (string, error) {
	var envelope userEnvelope
	if err := c.getJSON(ctx, "/api/v1/about/user", nil, &envelope); err != nil {
		return "", err
	}
	return envelope.Data.Attributes.Email, nil
}

// Close releases idle connections held by the transport.
func (c *RESTClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func pageFromEnvelope[E, R any](envelope listEnvelope[E], record func(E) R) Page[R] {
	records := make([]R, 0, len(envelope.Data))
	for _, e := range envelope.Data {
		records = append(records, record(e))
	}
	return Page[R]{
		Records:     records,
		CurrentPage: envelope.Meta.Pagination.CurrentPage,
		TotalPages:  envelope.Meta.Pagination.TotalPages,
	}
}
