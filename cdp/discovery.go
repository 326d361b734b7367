package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/agenttools/browserctl/log"

	"golang.org/x/net/context/ctxhttp"
)

// ErrNoEndpoint is returned when nothing answers as a CDP endpoint at the
// requested address.
var ErrNoEndpoint = errors.New("no CDP endpoint")

// maxVersionBody bounds how much of a /json/version reply is read.
const maxVersionBody = 1 << 16

// Version is the reply of the browser's /json/version endpoint.
type Version struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	V8Version            string `json:"V8-Version"`
	WebKitVersion        string `json:"WebKit-Version"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// DiscoverVersion asks the endpoint at baseURL (e.g. http://localhost:9222)
// for its browser version and websocket debugger URL.
func DiscoverVersion(ctx context.Context, client *http.Client, baseURL string) (*Version, error) {
	if client == nil {
		client = http.DefaultClient
	}
	u := strings.TrimSuffix(baseURL, "/") + "/json/version"

	resp, err := ctxhttp.Get(ctx, client, u)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrNoEndpoint, baseURL, err) //nolint:errorlint
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(ioutil.Discard, resp.Body)
		return nil, fmt.Errorf("%w at %s: GET %s: %s", ErrNoEndpoint, baseURL, u, resp.Status)
	}

	var v Version
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxVersionBody)).Decode(&v); err != nil {
		return nil, fmt.Errorf("%w at %s: decoding %s: %v", ErrNoEndpoint, baseURL, u, err) //nolint:errorlint
	}
	if v.WebSocketDebuggerURL == "" {
		return nil, fmt.Errorf("%w at %s: no webSocketDebuggerUrl in %s", ErrNoEndpoint, baseURL, u)
	}

	return &v, nil
}

// Probe checks that a CDP endpoint answers at baseURL: its websocket URL is
// discovered, then Browser.getVersion is run over a fresh connection that is
// closed again. The product it reports replaces the discovered one.
// timeout bounds the whole check; zero means ctx alone does.
func Probe(ctx context.Context, baseURL string, timeout time.Duration, logger *log.Logger) (*Version, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	v, err := DiscoverVersion(ctx, nil, baseURL)
	if err != nil {
		return nil, err
	}
	client, err := Connect(ctx, v.WebSocketDebuggerURL, logger)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrNoEndpoint, baseURL, err) //nolint:errorlint
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Debugf("cdp:probe", "closing probe connection to %q: %v", v.WebSocketDebuggerURL, err)
		}
	}()

	product, userAgent, err := client.Browser.GetVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrNoEndpoint, baseURL, err) //nolint:errorlint
	}
	if product != "" {
		v.Browser = product
	}
	if userAgent != "" {
		v.UserAgent = userAgent
	}

	return v, nil
}
