package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/esdes/campus/core"
	"github.com/esdes/campus/core/entity"
)

const maxErrorBody = 1 << 20

// Client talks to the campus REST API.
// Collections live at <base>/<resource>/ and records at <base>/<resource>/<id>/.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Log     core.Logger
}

var _ entity.Gateway = (*Client)(nil)

func NewClient(conf *core.Config, log core.Logger) *Client {
	if log == nil {
		log = core.NopLogger{}
	}
	return &Client{
		BaseURL: strings.TrimSpace(conf.API.BaseURL),
		HTTP:    &http.Client{Timeout: conf.API.Timeout},
		Log:     log,
	}
}

// WithToken returns a copy of c authenticating with the access token.
func (c *Client) WithToken(token string) *Client {
	cc := *c
	cc.Token = token
	return &cc
}

func (c *Client) List(ctx context.Context, resource string) ([]entity.Record, error) {
	var recs []entity.Record
	if err := c.do(ctx, http.MethodGet, resource, "", nil, &recs); err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []entity.Record{}
	}
	return recs, nil
}

func (c *Client) Create(ctx context.Context, resource string, fields entity.Record) (entity.Record, error) {
	var rec entity.Record
	if err := c.do(ctx, http.MethodPost, resource, "", fields, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (c *Client) Update(ctx context.Context, resource, id string, fields entity.Record) (entity.Record, error) {
	var rec entity.Record
	if err := c.do(ctx, http.MethodPut, resource, id, fields, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (c *Client) Delete(ctx context.Context, resource, id string) error {
	return c.do(ctx, http.MethodDelete, resource, id, nil, nil)
}

// endpoint joins the base URL and path segments, keeping the trailing slash the API expects.
func (c *Client) endpoint(segments ...string) (string, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", errors.Wrap(err, "gateway: invalid base url")
	}
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s = strings.Trim(s, "/"); s != "" {
			parts = append(parts, url.PathEscape(s))
		}
	}
	base.Path = strings.TrimRight(base.Path, "/") + "/" + strings.Join(parts, "/") + "/"
	base.RawPath = ""
	return base.String(), nil
}

func (c *Client) do(ctx context.Context, method, resource, id string, in, out interface{}) error {
	endpoint, err := c.endpoint(resource, id)
	if err != nil {
		return err
	}
	return c.send(ctx, method, endpoint, in, out)
}

func (c *Client) send(ctx context.Context, method, endpoint string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "gateway: encode request")
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return errors.Wrap(err, "gateway: new request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.Log.Error("gateway: request failed", err, map[string]interface{}{"method": method, "url": endpoint})
		return errors.Wrapf(err, "%s %s", method, endpoint)
	}
	defer resp.Body.Close()
	c.Log.Debug("gateway: "+method+" "+endpoint, map[string]interface{}{"status": resp.StatusCode, "took": time.Since(start).String()})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(ioutil.Discard, resp.Body)
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return errors.Wrapf(err, "gateway: decode %s %s", method, endpoint)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// decodeError turns a non-2xx response into a *core.GatewayError.
// A JSON object body is read as a field-keyed error object; anything else gets a generic message.
func decodeError(resp *http.Response) error {
	data, _ := ioutil.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body map[string]interface{}
	if err := json.Unmarshal(data, &body); err != nil {
		body = nil
	}
	return core.NewGatewayError(resp.StatusCode, body)
}
