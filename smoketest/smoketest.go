package smoketest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	qhttp "github.com/aukilabs/quadmap/http"
	qwebsocket "github.com/aukilabs/quadmap/websocket"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	DefaultTimeout = time.Second * 10

	// The path where the change feed is served.
	ChangesPath = "/changes"
)

type Options struct {
	Endpoint   string
	UserAgent  string
	Transport  http.RoundTripper
	SendResult func(context.Context, Results) error
}

// Request is the body of a smoke test request.
type Request struct {
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout"`
}

// Results describes a smoke test run.
type Results struct {
	FromEndpoint    string  `json:"from_endpoint"`
	ToEndpoint      string  `json:"to_endpoint"`
	Checksum        string  `json:"checksum,omitempty"`
	LatencyMilliSec float64 `json:"latency_ms"`
	Error           string  `json:"error,omitempty"`
}

type testCtxKey string

var testCtxKeyValue testCtxKey = "test-context"

type testContext struct {
	context.Context
	Cancel func()
}

// HandleSmokeTest starts a smoke test against the requested endpoint, or
// against the server itself when no endpoint is given. The result is passed
// to opts.SendResult.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if r.ContentLength != 0 && !qhttp.DecodeJSON(w, r, &req) {
			return
		}
		if req.Endpoint == "" {
			req.Endpoint = opts.Endpoint
		}

		go func() {
			defer func() {
				// Signals tests that the run is over.
				if tctx := ctx.Value(testCtxKeyValue); tctx != nil {
					testCtx := tctx.(testContext)
					if testCtx.Cancel != nil {
						testCtx.Cancel()
					}
				}
			}()

			res, err := Run(ctx, RunOptions{
				FromEndpoint: opts.Endpoint,
				ToEndpoint:   req.Endpoint,
				UserAgent:    opts.UserAgent,
				Transport:    opts.Transport,
				Timeout:      req.Timeout,
			})
			if err != nil {
				logs.Warn(err)
			}

			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", req.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusAccepted)
	}
}

type RunOptions struct {
	FromEndpoint string
	ToEndpoint   string
	UserAgent    string
	Transport    http.RoundTripper
	Timeout      time.Duration
}

// Run connects to the change feed of a server, rewrites the height of its
// first corner with the same value and measures the time until the change is
// received.
func Run(ctx context.Context, opts RunOptions) (Results, error) {
	res := Results{
		FromEndpoint: opts.FromEndpoint,
		ToEndpoint:   opts.ToEndpoint,
	}

	err := run(ctx, opts, &res)
	if err != nil {
		err = errors.New("smoke test failed").
			WithTag("to_endpoint", opts.ToEndpoint).
			Wrap(err)
		res.Error = err.Error()
	}
	return res, err
}

func run(ctx context.Context, opts RunOptions, res *Results) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	deadline, _ := ctx.Deadline()

	c := client{
		endpoint:  strings.TrimSuffix(opts.ToEndpoint, "/"),
		userAgent: opts.UserAgent,
		http:      &http.Client{Transport: opts.Transport},
	}

	conn, err := c.dialChanges()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(deadline); err != nil {
		return errors.New("setting read deadline failed").Wrap(err)
	}

	receive := qwebsocket.NewReceiver(conn)

	hello, _, err := receive()
	if err != nil {
		return errors.New("receiving hello failed").Wrap(err)
	}
	if hello.Type != qwebsocket.MsgTypeHello || hello.Map == nil {
		return errors.New("unexpected first message").WithTag("msg_type", hello.Type)
	}
	res.Checksum = hello.Map.Checksum

	var height qhttp.HeightResponse
	if err := c.do(ctx, http.MethodGet, "/height?x=0&y=0", nil, &height); err != nil {
		return err
	}

	start := time.Now()
	if err := c.do(ctx, http.MethodPost, "/heights", qhttp.SetHeightsRequest{
		Heights: []float32{height.Z},
	}, nil); err != nil {
		return err
	}

	for {
		msg, _, err := receive()
		if err != nil {
			return errors.New("receiving change failed").Wrap(err)
		}

		if msg.Type == qwebsocket.MsgTypeChange && msg.Change != nil &&
			msg.Change.Rect.Left == 0 && msg.Change.Rect.Top == 0 {
			res.LatencyMilliSec = float64(time.Since(start)) / float64(time.Millisecond)
			return nil
		}
	}
}

type client struct {
	endpoint  string
	userAgent string
	http      *http.Client
}

func (c client) dialChanges() (*websocket.Conn, error) {
	u, err := url.Parse(c.endpoint + ChangesPath)
	if err != nil {
		return nil, errors.New("parsing endpoint failed").Wrap(err)
	}

	origin := *u
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	config, err := websocket.NewConfig(u.String(), origin.String())
	if err != nil {
		return nil, errors.New("creating websocket config failed").Wrap(err)
	}
	if c.userAgent != "" {
		config.Header.Set("User-Agent", c.userAgent)
	}

	conn, err := websocket.DialConfig(config)
	if err != nil {
		return nil, errors.New("dialing change feed failed").
			WithTag("url", u.String()).
			Wrap(err)
	}
	return conn, nil
}

func (c client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.New("encoding request failed").Wrap(err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return errors.New("creating request failed").Wrap(err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.New("request failed").
			WithTag("method", method).
			WithTag("path", path).
			Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e qhttp.ErrorResponse
		json.NewDecoder(resp.Body).Decode(&e)
		return errors.Newf("unexpected status: %s", resp.Status).
			WithType(e.Type).
			WithTag("method", method).
			WithTag("path", path).
			WithTag("message", e.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.New("decoding response failed").Wrap(err)
	}
	return nil
}
