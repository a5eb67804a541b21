package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/sony/gobreaker"

	"SignalBT/internal/domain/models"
	domainsvc "SignalBT/internal/domain/service"
	svcmetrics "SignalBT/internal/service/metrics"
	xhttp "SignalBT/pkg/http"
)

// ProviderConfig describes one OpenAI-compatible chat-completion endpoint.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// CompletionClient posts to {base_url}/chat/completions.
type CompletionClient struct {
	cfg    ProviderConfig
	client *xhttp.Client
}

var _ domainsvc.Completer = (*CompletionClient)(nil)

func NewCompletionClient(cfg ProviderConfig, opts ...xhttp.ClientOption) *CompletionClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Model
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout)}, opts...)
	return &CompletionClient{cfg: cfg, client: xhttp.NewClient(opts...)}
}

func (c *CompletionClient) Name() string  { return c.cfg.Name }
func (c *CompletionClient) Model() string { return c.cfg.Model }

func (c *CompletionClient) Complete(ctx context.Context, req domainsvc.CompletionRequest) (string, error) {
	started := time.Now()
	defer func() {
		svcmetrics.ResolverLatency.WithLabelValues(c.cfg.Name).Observe(time.Since(started).Seconds())
	}()

	headers := map[string]string{"Content-Type": "application/json"}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}
	var resp chatResponse
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     c.cfg.BaseURL + "/chat/completions",
		Headers: headers,
		Body: chatRequest{
			Model: c.cfg.Model,
			Messages: []chatMessage{
				{Role: "system", Content: req.System},
				{Role: "user", Content: req.User},
			},
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.cfg.Name, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// ErrNoProvider is returned when every provider is disabled or open.
var ErrNoProvider = errors.New("no completion provider available")

// Classify maps a transport error onto the failure taxonomy.
func Classify(err error) models.FailureReason {
	var (
		status *xhttp.StatusError
		netErr net.Error
		opErr  *net.OpError
		dnsErr *net.DNSError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoProvider),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return models.ReasonUnavailable
	case errors.As(err, &status):
		switch {
		case status.Code == http.StatusTooManyRequests:
			return models.ReasonRateLimited
		case status.Code == http.StatusRequestTimeout || status.Code == http.StatusGatewayTimeout:
			return models.ReasonTimeout
		}
		return models.ReasonUpstream
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return models.ReasonTimeout
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return models.ReasonConnection
	case errors.As(err, &dnsErr):
		return models.ReasonConnection
	case errors.As(err, &netErr) && netErr.Timeout():
		return models.ReasonTimeout
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return models.ReasonConnection
	}
	return models.ReasonUpstream
}
