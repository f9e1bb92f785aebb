package producer

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/keenai/agent-chat/internal/pkg/encoding/json"
	"github.com/keenai/agent-chat/internal/pkg/log"
	"github.com/keenai/agent-chat/internal/pkg/utils/errors"
)

const (
	openMaxElapsedTime = 15 * time.Second
	maxTokenSize       = 1 << 20
)

// GatewayConfig configures the connection to the model-serving gateway.
type GatewayConfig struct {
	URL         string  `configKey:"url" configUsage:"Model gateway URL." validate:"required"`
	Token       string  `configKey:"token" configUsage:"Model gateway API token." sensitive:"true"`
	Model       string  `configKey:"model" configUsage:"Model ID used for generation."`
	Temperature float64 `configKey:"temperature" configUsage:"Sampling temperature."`
}

func NewGatewayConfig() GatewayConfig {
	return GatewayConfig{
		URL:         "http://localhost:9000",
		Model:       "nova-lite-v1",
		Temperature: 0.3,
	}
}

func (c *GatewayConfig) Validate() error {
	errs := errors.NewMultiError()
	if c.URL == "" {
		errs.Append(errors.New("model gateway url is not set"))
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		errs.Append(errors.Errorf(`temperature must be in range 0..1, found %v`, c.Temperature))
	}
	return errs.ErrorOrNil()
}

// Gateway produces tokens by calling the model-serving gateway.
// The gateway streams newline-delimited JSON chunks,
// the request context aborts the generation mid-flight.
type Gateway struct {
	logger log.Logger
	client *resty.Client
	config GatewayConfig
}

type generateBody struct {
	ChatID      string  `json:"chatId"`
	Message     string  `json:"message"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

type chunk struct {
	Delta string `json:"delta"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

func NewGateway(logger log.Logger, config GatewayConfig) *Gateway {
	client := resty.New().
		SetBaseURL(config.URL).
		SetAuthToken(config.Token).
		SetDoNotParseResponse(true)
	return &Gateway{logger: logger.AddPrefix("[model-gateway]"), client: client, config: config}
}

func (g *Gateway) Open(ctx context.Context, req Request) (TokenStream, error) {
	body := generateBody{
		ChatID:      req.ChatID,
		Message:     req.Message,
		Model:       g.config.Model,
		Temperature: g.config.Temperature,
		Stream:      true,
	}

	// Retry transient connection failures with an exponential backoff.
	// Once the stream is open there is no retry, a failure mid-stream
	// is surfaced as a producer error.
	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = openMaxElapsedTime

	var resp *resty.Response
	err := backoff.Retry(func() error {
		var reqErr error
		resp, reqErr = g.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(json.MustEncode(body, false)).
			Post("/v1/generate")
		if reqErr != nil {
			g.logger.Warnf("cannot connect to model gateway: %s", reqErr)
			return reqErr
		}
		if resp.StatusCode() >= 500 {
			_ = resp.RawBody().Close()
			err := errors.Errorf("model gateway returned status %d", resp.StatusCode())
			g.logger.Warnf("%s", err)
			return err
		}
		return nil
	}, backoff.WithContext(retry, ctx))
	if err != nil {
		return nil, errors.PrefixError(err, "cannot open generation stream")
	}

	if resp.StatusCode() >= 400 {
		_ = resp.RawBody().Close()
		return nil, errors.Errorf("model gateway rejected the request, status %d", resp.StatusCode())
	}

	reader := bufio.NewScanner(resp.RawBody())
	reader.Buffer(make([]byte, 0, 4096), maxTokenSize)
	return &gatewayStream{body: resp.RawBody(), reader: reader}, nil
}

type gatewayStream struct {
	body   io.ReadCloser
	reader *bufio.Scanner
}

func (s *gatewayStream) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		// The body read is aborted by the request context, see Gateway.Open.
		if !s.reader.Scan() {
			if err := s.reader.Err(); err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				return "", errors.PrefixError(err, "cannot read generation stream")
			}
			return "", io.EOF
		}

		line := s.reader.Bytes()
		if len(line) == 0 {
			continue
		}

		var c chunk
		if err := json.Decode(line, &c); err != nil {
			return "", errors.PrefixError(err, "malformed generation chunk")
		}
		switch {
		case c.Error != "":
			return "", errors.Errorf("model gateway error: %s", c.Error)
		case c.Done:
			return "", io.EOF
		case c.Delta == "":
			continue
		default:
			return c.Delta, nil
		}
	}
}

func (s *gatewayStream) Close() error {
	return s.body.Close()
}
