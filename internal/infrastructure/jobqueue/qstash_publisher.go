package jobqueue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
	"github.com/riskibarqy/korfbal-live/internal/platform/resilience"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	qstashDefaultTimeout = 10 * time.Second
	qstashLogBodyLimit   = 4096
	maskedSecret         = "Bearer ***"
)

var errQStashTransient = crerr.New("qstash transient failure")

type QStashPublisherConfig struct {
	BaseURL          string
	Token            string
	TargetBaseURL    string
	Retries          int
	InternalJobToken string
	Timeout          time.Duration
	CircuitBreaker   resilience.CircuitBreakerConfig
}

// QStashPublisher hands jobs to Upstash QStash, which calls back the
// internal job endpoints on this service.
type QStashPublisher struct {
	client           *http.Client
	publishPrefix    string
	targetBaseURL    string
	token            string
	retries          int
	internalJobToken string
	logger           *logging.Logger
	breaker          *resilience.CircuitBreaker
}

// NewQStashPublisher fails fast on malformed QStash or callback URLs.
func NewQStashPublisher(cfg QStashPublisherConfig, logger *logging.Logger) (*QStashPublisher, error) {
	baseURL, err := httpBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, crerr.Wrap(err, "invalid QSTASH_BASE_URL")
	}
	targetBaseURL, err := httpBaseURL(cfg.TargetBaseURL)
	if err != nil {
		return nil, crerr.Wrap(err, "invalid QSTASH_TARGET_BASE_URL")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = qstashDefaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	breakerCfg := cfg.CircuitBreaker
	if breakerCfg.Name == "" {
		breakerCfg.Name = "qstash"
	}

	return &QStashPublisher{
		client:           &http.Client{Timeout: timeout},
		publishPrefix:    baseURL + "/v2/publish/",
		targetBaseURL:    targetBaseURL,
		token:            strings.TrimSpace(cfg.Token),
		retries:          cfg.Retries,
		internalJobToken: strings.TrimSpace(cfg.InternalJobToken),
		logger:           logger.Named("jobqueue.qstash"),
		breaker:          resilience.NewOptionalCircuitBreaker(breakerCfg),
	}, nil
}

// qstashMessage is one publish call. Header order is stable so the curl
// preview matches what is sent.
type qstashMessage struct {
	path      string
	targetURL string
	body      []byte
	headers   [][2]string
}

func (p *QStashPublisher) message(path string, body []byte, delay time.Duration, dedupID string) qstashMessage {
	msg := qstashMessage{path: path, targetURL: p.targetBaseURL + path, body: body}
	add := func(k, v string) { msg.headers = append(msg.headers, [2]string{k, v}) }
	add("Authorization", "Bearer "+p.token)
	add("Content-Type", "application/json")
	add("Upstash-Method", http.MethodPost)
	if p.retries > 0 {
		add("Upstash-Retries", strconv.Itoa(p.retries))
	}
	if delay > 0 {
		add("Upstash-Delay", qstashDelay(delay))
	}
	if dedupID != "" {
		add("Upstash-Deduplication-Id", dedupID)
	}
	if p.internalJobToken != "" {
		add("Upstash-Forward-Authorization", "Bearer "+p.internalJobToken)
	}
	return msg
}

func (p *QStashPublisher) Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error {
	path = normalizePath(path)
	if path == "/" {
		return crerr.New("job path is required")
	}
	body, err := encodePayload(payload)
	if err != nil {
		return err
	}
	msg := p.message(path, body, delay, strings.TrimSpace(deduplicationID))

	preview := msg.curlPreview(p.publishPrefix)
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.String("qstash.target_url", msg.targetURL),
			attribute.String("qstash.path", path),
			attribute.String("qstash.deduplication_id", deduplicationID),
			attribute.String("qstash.request_curl_preview", preview),
		)
	}
	p.logger.DebugContext(ctx, "qstash publish request", "path", path, "target_url", msg.targetURL, "curl_preview", preview)

	err = p.breaker.Execute(func() error { return p.publish(ctx, msg) }, isQStashCircuitFailure)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		p.logger.WarnContext(ctx, "qstash circuit breaker rejected request", "state", p.breaker.State())
		return fmt.Errorf("qstash is temporarily unavailable: %w", err)
	}
	if err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "qstash job published", "path", path, "delay", qstashDelay(delay), "deduplication_id", deduplicationID)
	return nil
}

func (p *QStashPublisher) publish(ctx context.Context, msg qstashMessage) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.publishPrefix+msg.targetURL, bytes.NewReader(msg.body))
	if err != nil {
		return crerr.Wrap(err, "create qstash request")
	}
	for _, h := range msg.headers {
		req.Header.Set(h[0], h[1])
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: publish qstash job target_url=%s: %v", errQStashTransient, msg.targetURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, qstashLogBodyLimit))
	detail := strings.TrimSpace(string(raw))
	if isQStashRetryableStatus(resp.StatusCode) {
		return fmt.Errorf("%w: publish qstash job status=%d target_url=%s body=%s", errQStashTransient, resp.StatusCode, msg.targetURL, detail)
	}
	return crerr.Newf("publish qstash job status=%d target_url=%s body=%s", resp.StatusCode, msg.targetURL, detail)
}

// curlPreview renders the request for logs with credentials masked.
func (m qstashMessage) curlPreview(publishPrefix string) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString("curl -X POST ")
	_, _ = buf.WriteString(shellQuote(publishPrefix + m.targetURL))
	for _, h := range m.headers {
		value := h[1]
		if h[0] == "Authorization" || h[0] == "Upstash-Forward-Authorization" {
			value = maskedSecret
		}
		_, _ = buf.WriteString(" -H ")
		_, _ = buf.WriteString(shellQuote(h[0] + ": " + value))
	}
	body := string(m.body)
	if len(body) > qstashLogBodyLimit {
		body = body[:qstashLogBodyLimit] + "...(truncated)"
	}
	_, _ = buf.WriteString(" -d ")
	_, _ = buf.WriteString(shellQuote(body))
	_, _ = buf.WriteString(" # ")
	_, _ = buf.WriteString(shellQuote("path=" + m.path))
	return buf.String()
}

func qstashDelay(delay time.Duration) string {
	if delay <= 0 {
		return "0s"
	}
	return strconv.Itoa(int(delay.Round(time.Second).Seconds())) + "s"
}

func httpBaseURL(raw string) (string, error) {
	candidate := strings.TrimRight(strings.TrimSpace(raw), "/")
	if candidate == "" {
		return "", crerr.New("value is empty")
	}
	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", crerr.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", crerr.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", crerr.Newf("%q has empty host", candidate)
	}
	return candidate, nil
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

func isQStashCircuitFailure(err error) bool {
	return errors.Is(err, errQStashTransient)
}

func isQStashRetryableStatus(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
