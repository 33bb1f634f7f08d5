// Package docstore предоставляет шлюз хранения чеков в облачной документной базе через REST API Firestore v1.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/mmeshcher/pos-billing/internal/model"
)

// DefaultBaseURL указывает на публичный REST API Firestore.
const DefaultBaseURL = "https://firestore.googleapis.com/v1"

var (
	// ErrNotConfigured возвращается, если не задан идентификатор проекта.
	ErrNotConfigured = errors.New("document store not configured")
	// ErrUnexpectedStatus возвращается при ответе с кодом вне диапазона 2xx.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// Config содержит параметры подключения к документной базе.
type Config struct {
	BaseURL    string
	ProjectID  string
	APIKey     string
	Collection string
}

// Client инкапсулирует HTTP-взаимодействие с документной базой.
type Client struct {
	baseURL    string
	projectID  string
	apiKey     string
	collection string
	httpClient *http.Client
}

// NewClient создаёт клиент документной базы.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ProjectID == "" {
		return nil, ErrNotConfigured
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "receipts"
	}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = 10 * time.Second

	return &Client{
		baseURL:    base,
		projectID:  cfg.ProjectID,
		apiKey:     cfg.APIKey,
		collection: collection,
		httpClient: httpClient,
	}, nil
}

// Close освобождает простаивающие соединения.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) documentsURL(suffix string) string {
	u := fmt.Sprintf("%s/projects/%s/databases/(default)/documents%s", c.baseURL, url.PathEscape(c.projectID), suffix)
	if c.apiKey != "" {
		u += "?key=" + url.QueryEscape(c.apiKey)
	}
	return u
}

// AppendReceipt создаёт документ чека и возвращает назначенный базой идентификатор.
func (c *Client) AppendReceipt(ctx context.Context, rc model.Receipt) (string, error) {
	body, err := json.Marshal(document{Fields: encodeReceipt(rc)})
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	var created document
	if err := c.do(ctx, c.documentsURL("/"+url.PathEscape(c.collection)), body, &created); err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}

	id := documentID(created.Name)
	if id == "" {
		return "", fmt.Errorf("create document: empty document name")
	}
	return id, nil
}

// ListReceipts возвращает все документы коллекции, упорядоченные по receiptDate по убыванию.
func (c *Client) ListReceipts(ctx context.Context) ([]model.Receipt, error) {
	q := runQueryRequest{
		StructuredQuery: structuredQuery{
			From: []collectionSelector{{CollectionID: c.collection}},
			OrderBy: []order{{
				Field:     fieldReference{FieldPath: fieldReceiptDate},
				Direction: "DESCENDING",
			}},
		},
	}

	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	var results []runQueryResponse
	if err := c.do(ctx, c.documentsURL(":runQuery"), body, &results); err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}

	res := make([]model.Receipt, 0, len(results))
	for _, r := range results {
		if r.Document == nil {
			continue
		}
		rc, err := decodeReceipt(r.Document.Fields)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.Document.Name, err)
		}
		rc.ID = documentID(r.Document.Name)
		res = append(res, rc)
	}

	return res, nil
}

func (c *Client) do(ctx context.Context, u string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func documentID(name string) string {
	i := strings.LastIndex(name, "/")
	return name[i+1:]
}
