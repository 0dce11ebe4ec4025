package adapter

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/h2hsecure/moodlews/internal/domain"
)

const (
	ServerTokenUrl = "%s/login/token.php"

	tokenFunction = "login/token.php"
	restFormat    = "json"
)

// MoodleAdapter talks to the Moodle REST web service. One adapter may be
// shared by any number of services and goroutines.
type MoodleAdapter struct {
	client  *resty.Client
	metrics *Metrics
}

type Option func(*MoodleAdapter)

func WithMetrics(m *Metrics) Option {
	return func(a *MoodleAdapter) {
		a.metrics = m
	}
}

// restyLogger implements resty.Logger.
type restyLogger struct {
	logger zerolog.Logger
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(format, v...)
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Msgf(format, v...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn().Msgf(format, v...)
}

func NewMoodleAdapter(config *domain.Config, opts ...Option) *MoodleAdapter {
	client := resty.New().
		SetTimeout(config.Moodle.Timeout).
		SetLogger(restyLogger{logger: log.With().Str("component", "resty").Logger()}).
		SetHeader("Accept", "application/json")

	if config.Moodle.InsecureSkipVerify {
		log.Warn().Str("server", config.Moodle.Server).Msg("tls certificate verification disabled")
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // explicit opt-out
	}

	a := &MoodleAdapter{client: client}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Call implements domain.Transport.
func (a *MoodleAdapter) Call(ctx context.Context, cred domain.Credential, call domain.RemoteFunctionCall) (domain.Value, error) {
	_, v, err := a.do(ctx, cred, call)
	return v, err
}

// CallRaw implements domain.Transport.
func (a *MoodleAdapter) CallRaw(ctx context.Context, cred domain.Credential, call domain.RemoteFunctionCall) ([]byte, error) {
	body, _, err := a.do(ctx, cred, call)
	return body, err
}

func (a *MoodleAdapter) do(ctx context.Context, cred domain.Credential, call domain.RemoteFunctionCall) ([]byte, domain.Value, error) {
	outcome := outcomeTransportError
	start := time.Now()

	defer func() {
		a.metrics.observe(call.Function, outcome, time.Since(start))
	}()

	form, err := EncodeForm(call.Params)
	if err != nil {
		return nil, domain.Value{}, fmt.Errorf("encode %s params: %w", call.Function, err)
	}

	form.Set("wstoken", cred.Token)
	form.Set("wsfunction", call.Function)
	form.Set("moodlewsrestformat", restFormat)

	requestID := uuid.NewString()
	logger := log.With().Str("function", call.Function).Str("request_id", requestID).Logger()

	res, err := a.client.R().
		SetContext(ctx).
		SetHeader("X-Request-Id", requestID).
		SetFormDataFromValues(form).
		Post(cred.Server)
	if err != nil {
		logger.Warn().Err(err).Msg("moodle request")
		return nil, domain.Value{}, &domain.TransportError{Function: call.Function, URL: cred.Server, Err: err}
	}

	logger.Debug().Int("status", res.StatusCode()).Dur("took", res.Time()).Msg("moodle request")

	if !res.IsSuccess() {
		return nil, domain.Value{}, &domain.TransportError{Function: call.Function, URL: cred.Server, StatusCode: res.StatusCode()}
	}

	body := res.Body()

	v, err := decodeBody(body)
	if err != nil {
		return nil, domain.Value{}, &domain.TransportError{Function: call.Function, URL: cred.Server, StatusCode: res.StatusCode(), Err: err}
	}

	if rerr := domain.RemoteErrorFrom(call.Function, v); rerr != nil {
		outcome = outcomeRemoteError
		logger.Warn().Str("exception", rerr.Exception).Str("errorcode", rerr.ErrorCode).Msg(rerr.Message)
		return nil, domain.Value{}, rerr
	}

	outcome = outcomeSuccess

	return body, v, nil
}

// FetchToken implements domain.TokenFetcher. The token endpoint lives next
// to the web service, at <scheme://host[:port]>/login/token.php.
func (a *MoodleAdapter) FetchToken(ctx context.Context, server, username, password, service string) (string, error) {
	outcome := outcomeTransportError
	start := time.Now()

	defer func() {
		a.metrics.observe(tokenFunction, outcome, time.Since(start))
	}()

	formData := map[string]string{
		"username": username,
		"password": password,
		"service":  service,
	}

	postUrl := fmt.Sprintf(ServerTokenUrl, domain.BaseURL(server))

	res, err := a.client.R().
		SetContext(ctx).
		SetFormData(formData).
		Post(postUrl)
	if err != nil {
		return "", &domain.TransportError{Function: tokenFunction, URL: postUrl, Err: err}
	}

	if !res.IsSuccess() {
		return "", &domain.TransportError{Function: tokenFunction, URL: postUrl, StatusCode: res.StatusCode()}
	}

	v, err := decodeBody(res.Body())
	if err != nil {
		return "", &domain.TransportError{Function: tokenFunction, URL: postUrl, StatusCode: res.StatusCode(), Err: err}
	}

	if token := v.Field("token").Text(); token != "" {
		outcome = outcomeSuccess
		log.Info().Str("user", username).Str("service", service).Msg("token issued")
		return token, nil
	}

	outcome = outcomeRemoteError

	if rerr := domain.RemoteErrorFrom(tokenFunction, v); rerr != nil {
		return "", rerr
	}

	return "", fmt.Errorf("auth request (%s): %w", postUrl, domain.ErrNoToken)
}

// decodeBody treats an empty body as null; some write functions answer
// with nothing at all.
func decodeBody(body []byte) (domain.Value, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.Null(), nil
	}
	return domain.Parse(body)
}
