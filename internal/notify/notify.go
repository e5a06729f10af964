// Package notify delivers best-effort push notifications.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"

	"github.com/oggyb/arena-signals/internal/config"
)

const (
	MatchTitle = "New match!"
	MatchBody  = "A mutual signal locked in. Open the arena."
)

// Dispatcher sends one notification to every address. No delivery guarantee.
type Dispatcher interface {
	Send(ctx context.Context, addresses []string, title, body string) error
}

// Noop logs and drops notifications. Used when push is disabled.
type Noop struct {
	Log *slog.Logger
}

func (n Noop) Send(_ context.Context, addresses []string, title, _ string) error {
	if n.Log != nil {
		n.Log.Debug("push disabled, dropping notification", "title", title, "recipients", len(addresses))
	}
	return nil
}

// Expo publishes through the Expo push service. One message is sent per
// token so every ticket can be checked on its own.
type Expo struct {
	client *expo.PushClient
	log    *slog.Logger
}

// NewExpo targets endpoint, the full push/send URL.
func NewExpo(endpoint string, timeout time.Duration, log *slog.Logger) *Expo {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	host, apiURL := splitEndpoint(endpoint)
	return &Expo{
		client: expo.NewPushClient(&expo.ClientConfig{
			Host:       host,
			APIURL:     apiURL,
			HTTPClient: &http.Client{Timeout: timeout},
		}),
		log: log,
	}
}

// splitEndpoint turns https://exp.host/--/api/v2/push/send into the
// host and API prefix the SDK joins back together.
func splitEndpoint(endpoint string) (string, string) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", ""
	}
	return u.Scheme + "://" + u.Host, strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/push/send")
}

// FromConfig returns an Expo dispatcher when push is enabled, Noop otherwise.
func FromConfig(cfg *config.Config, log *slog.Logger) Dispatcher {
	if !cfg.Notify.Enabled {
		return Noop{Log: log}
	}
	return NewExpo(cfg.Notify.Endpoint, cfg.Notify.Timeout, log)
}

// Send skips malformed tokens and reports transport failures and rejected
// tickets as one joined error.
func (e *Expo) Send(ctx context.Context, addresses []string, title, body string) error {
	msgs := make([]expo.PushMessage, 0, len(addresses))
	for _, a := range addresses {
		if a == "" {
			continue
		}
		token, err := expo.NewExponentPushToken(a)
		if err != nil {
			e.log.Warn("skipping malformed push token", "err", err)
			continue
		}
		msgs = append(msgs, expo.PushMessage{
			To:       []expo.ExponentPushToken{token},
			Title:    title,
			Body:     body,
			Sound:    "default",
			Priority: expo.HighPriority,
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	responses, err := e.client.PublishMultiple(msgs)
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}

	var errs []error
	for i := range responses {
		if err := responses[i].ValidateResponse(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
