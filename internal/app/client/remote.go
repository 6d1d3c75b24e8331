package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/exp/slog"

	"bloodsheltie/internal/app/client/config"
	"bloodsheltie/internal/domain/sync"
)

// pushBatch максимум записей в одном запросе SaveRecords
const pushBatch = 1000

// ErrServer ответ сервера с кодом ошибки
var ErrServer = errors.New("server error")

// StatusError ошибка HTTP-ответа сервера
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("ошибка сервера: статус %d", e.Status)
	}
	return fmt.Sprintf("ошибка сервера: статус %d: %s", e.Status, e.Detail)
}

func (e *StatusError) Unwrap() error {
	return ErrServer
}

// RemoteStore хранит метки, записи и журнал сессий на сервере
type RemoteStore struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	apiKey    string
	userAgent string
}

var (
	_ sync.Persistence = (*RemoteStore)(nil)
	_ sync.RunRecorder = (*RemoteStore)(nil)
)

func NewRemoteStore(cfg *config.Config, log *slog.Logger) (*RemoteStore, error) {
	if !cfg.HasServer() {
		return nil, errors.New("адрес сервера не задан (SERVER_ADDRESS)")
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 10,
	}
	if cfg.CACertPath != "" {
		pem, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения CA сертификата: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("в %s нет сертификатов", cfg.CACertPath)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}

	// Определяем протокол
	scheme := "http://"
	if cfg.EnableTLS {
		scheme = "https://"
	}

	return &RemoteStore{
		client:    &http.Client{Timeout: 30 * time.Second, Transport: transport},
		log:       log.With("component", "remote_store"),
		baseURL:   scheme + cfg.ServerAddress,
		apiKey:    cfg.APIKey,
		userAgent: "Sheltie-Client/1.0",
	}, nil
}

// HealthCheck проверяет доступность сервера
func (r *RemoteStore) HealthCheck(ctx context.Context) error {
	resp, err := r.doRequest(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return fmt.Errorf("сервер недоступен: %w", err)
	}

	var health struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	if err := r.parseResponse(resp, &health); err != nil {
		return err
	}
	if health.Status != "OK" {
		return fmt.Errorf("сервер в состоянии %s: %s", health.Status, health.Database)
	}
	return nil
}

func (r *RemoteStore) LoadSyncTag(ctx context.Context, serial string) (*sync.SyncTag, error) {
	resp, err := r.doRequest(ctx, http.MethodGet, tagPath(serial), nil)
	if err != nil {
		return nil, err
	}

	var tag sync.SyncTag
	if err := r.parseResponse(resp, &tag); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return nil, sync.ErrSyncTagNotFound
		}
		return nil, err
	}
	return &tag, nil
}

func (r *RemoteStore) SaveSyncTag(ctx context.Context, tag sync.SyncTag) error {
	resp, err := r.doRequest(ctx, http.MethodPut, tagPath(tag.SerialNumber), tag)
	if err != nil {
		return err
	}
	return r.parseResponse(resp, nil)
}

func (r *RemoteStore) DeleteSyncTag(ctx context.Context, serial string) error {
	resp, err := r.doRequest(ctx, http.MethodDelete, tagPath(serial), nil)
	if err != nil {
		return err
	}
	return r.parseResponse(resp, nil)
}

// SaveRecords отправляет записи пакетами; записи разных приёмников
// уходят отдельными запросами
func (r *RemoteStore) SaveRecords(ctx context.Context, records []*sync.StoredRecord) error {
	bySerial := make(map[string][]*sync.StoredRecord)
	var order []string
	for _, rec := range records {
		if _, ok := bySerial[rec.SerialNumber]; !ok {
			order = append(order, rec.SerialNumber)
		}
		bySerial[rec.SerialNumber] = append(bySerial[rec.SerialNumber], rec)
	}

	for _, serial := range order {
		batch := bySerial[serial]
		for start := 0; start < len(batch); start += pushBatch {
			end := min(start+pushBatch, len(batch))
			body := struct {
				Records []*sync.StoredRecord `json:"records"`
			}{Records: batch[start:end]}

			resp, err := r.doRequest(ctx, http.MethodPost, devicePath(serial, "records"), body)
			if err != nil {
				return err
			}
			if err := r.parseResponse(resp, nil); err != nil {
				return fmt.Errorf("ошибка отправки записей %s: %w", serial, err)
			}
		}
	}
	return nil
}

func (r *RemoteStore) RecordSyncRun(ctx context.Context, run *sync.SyncRun) error {
	resp, err := r.doRequest(ctx, http.MethodPost, devicePath(run.SerialNumber, "sync-runs"), run)
	if err != nil {
		return err
	}
	return r.parseResponse(resp, nil)
}

func (r *RemoteStore) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("User-Agent", r.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	r.log.Debug("Отправка запроса", "method", method, "url", req.URL.String())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	return resp, nil
}

func (r *RemoteStore) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	r.log.Debug("Получен ответ", "status", resp.StatusCode, "size", len(body))

	if resp.StatusCode >= 400 {
		// huma отвечает application/problem+json, auth middleware - {"error": ...}
		var errResp struct {
			Detail string `json:"detail"`
			Error  string `json:"error"`
		}
		se := &StatusError{Status: resp.StatusCode}
		if err := json.Unmarshal(body, &errResp); err == nil {
			se.Detail = errResp.Detail
			if se.Detail == "" {
				se.Detail = errResp.Error
			}
		}
		return se
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("ошибка парсинга ответа: %w", err)
		}
	}
	return nil
}

func tagPath(serial string) string {
	return devicePath(serial, "sync-tag")
}

func devicePath(serial, resource string) string {
	return "/api/devices/" + url.PathEscape(serial) + "/" + resource
}
