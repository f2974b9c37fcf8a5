package turnkey

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = time.Second
	defaultMaxPolls     = 30
)

var errActivityPending = errors.New("activity not completed yet")

// Client is a minimal Turnkey API client covering key lookup and raw payload signing.
type Client struct {
	http           *resty.Client
	stamper        *APIKeyStamper
	organizationID string
	log            zerolog.Logger

	pollInterval time.Duration
	maxPolls     uint
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient makes the Client send requests through hc. The default timeout applies when hc
// has none.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		base := c.http.BaseURL
		c.http = resty.NewWithClient(hc).SetBaseURL(base).SetHeader("Content-Type", "application/json")
		if hc.Timeout == 0 {
			c.http.SetTimeout(defaultTimeout)
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// WithPolling sets how often and how many times a pending activity is polled. Zero values keep
// the defaults.
func WithPolling(interval time.Duration, maxPolls uint) ClientOption {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
		if maxPolls > 0 {
			c.maxPolls = maxPolls
		}
	}
}

// NewClient creates a Client authenticated with the API key pair of cfg.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	stamper, err := NewAPIKeyStamper(cfg.APIPublicKey, cfg.APIPrivateKey)
	if err != nil {
		return nil, err
	}

	c := &Client{
		http: resty.New().
			SetBaseURL(cfg.baseURL()).
			SetTimeout(defaultTimeout).
			SetHeader("Content-Type", "application/json"),
		stamper:        stamper,
		organizationID: cfg.OrganizationID,
		log:            log.With().Str("component", "turnkey").Logger(),
		pollInterval:   defaultPollInterval,
		maxPolls:       defaultMaxPolls,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// GetPrivateKey fetches the metadata of a private key.
func (c *Client) GetPrivateKey(ctx context.Context, privateKeyID string) (*PrivateKey, error) {
	var resp getPrivateKeyResponse
	err := c.post(ctx, pathGetPrivateKey, getPrivateKeyRequest{
		OrganizationID: c.organizationID,
		PrivateKeyID:   privateKeyID,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return &resp.PrivateKey, nil
}

// GetActivity fetches an activity by id.
func (c *Client) GetActivity(ctx context.Context, activityID string) (*Activity, error) {
	var resp activityResponse
	err := c.post(ctx, pathGetActivity, getActivityRequest{
		OrganizationID: c.organizationID,
		ActivityID:     activityID,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return &resp.Activity, nil
}

// SignRawPayload submits a sign_raw_payload activity and waits for its result.
func (c *Client) SignRawPayload(ctx context.Context, params SignRawPayloadParams) (*SignRawPayloadResult, error) {
	var resp activityResponse
	err := c.post(ctx, pathSignRawPayload, activityRequest{
		Type:           activityTypeSignRawPayload,
		OrganizationID: c.organizationID,
		TimestampMs:    strconv.FormatInt(time.Now().UnixMilli(), 10),
		Parameters:     params,
	}, &resp)
	if err != nil {
		return nil, err
	}

	activity, err := c.waitForActivity(ctx, &resp.Activity)
	if err != nil {
		return nil, err
	}
	if activity.Result == nil || activity.Result.SignRawPayloadResult == nil {
		return nil, errors.Errorf("activity %s completed without a signature", activity.ID)
	}

	return activity.Result.SignRawPayloadResult, nil
}

// waitForActivity polls activity until it leaves the created/pending/consensus states.
func (c *Client) waitForActivity(ctx context.Context, activity *Activity) (*Activity, error) {
	if done, err := activityDone(activity); done || err != nil {
		return activity, err
	}

	current := activity
	err := retry.Do(
		func() error {
			next, err := c.GetActivity(ctx, activity.ID)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			current = next

			done, err := activityDone(next)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if !done {
				return errActivityPending
			}

			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.maxPolls),
		retry.Delay(c.pollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errActivityPending)
		}),
		retry.OnRetry(func(n uint, _ error) {
			c.log.Debug().Str("activity", activity.ID).Uint("poll", n+1).
				Str("status", string(current.Status)).Msg("waiting for activity")
		}),
	)
	if errors.Is(err, errActivityPending) {
		return nil, errors.Errorf("activity %s still %s after %d polls", activity.ID, current.Status, c.maxPolls)
	}
	if err != nil {
		return nil, err
	}

	return current, nil
}

func activityDone(a *Activity) (bool, error) {
	switch a.Status {
	case ActivityStatusCompleted:
		return true, nil
	case ActivityStatusFailed, ActivityStatusRejected:
		return true, &ActivityError{ActivityID: a.ID, Status: a.Status, Failure: a.Failure}
	}

	return false, nil
}

// post stamps and sends a JSON request. The stamp covers the exact bytes put on the wire.
func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}

	stamp, err := c.stamper.Stamp(payload)
	if err != nil {
		return err
	}

	apiErr := &APIError{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(StampHeader, stamp).
		SetBody(payload).
		SetResult(out).
		SetError(apiErr).
		Post(path)
	if err != nil {
		return errors.Wrapf(err, "turnkey request %s failed", path)
	}
	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = resp.String()
		}
		return apiErr
	}

	c.log.Debug().Str("path", path).Int("status", resp.StatusCode()).Msg("turnkey request done")

	return nil
}
