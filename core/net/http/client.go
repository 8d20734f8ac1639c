// Package http 是带缓冲池的 JSON HTTP 客户端。
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultBufferSize = 4096
	maxBufferSize     = 1024 * 1024
	maxErrorBody      = 64 * 1024
)

// Client 复用请求缓冲，所有请求携带公共请求头
type Client struct {
	client     *http.Client
	header     map[string]string
	bufferPool sync.Pool
}

type Option func(*Client)

func WithClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHeader 每个请求都会带上的请求头
func WithHeader(header map[string]string) Option {
	return func(c *Client) {
		maps.Copy(c.header, header)
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		client: &http.Client{Timeout: 30 * time.Second},
		header: map[string]string{},
		bufferPool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, defaultBufferSize))
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request 单次请求的参数
type Request struct {
	Method   string
	URL      string
	Query    url.Values
	Header   map[string]string
	Body     any
	Response any
}

type RequestOption func(*Request)

func Query(q url.Values) RequestOption {
	return func(r *Request) {
		r.Query = q
	}
}

func Header(k, v string) RequestOption {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = map[string]string{}
		}
		r.Header[k] = v
	}
}

// Bearer 设置 Authorization 请求头
func Bearer(token string) RequestOption {
	return Header("Authorization", "Bearer "+token)
}

// Into 将响应体解码到 dest
func Into(dest any) RequestOption {
	return func(r *Request) {
		r.Response = dest
	}
}

// Do 发送请求，非 2xx 返回 *StatusError；body 为 io.Reader 时原样发送
func (c *Client) Do(ctx context.Context, method, rawURL string, body any, opts ...RequestOption) (*http.Response, error) {
	r := &Request{Method: method, URL: rawURL, Body: body}
	for _, opt := range opts {
		opt(r)
	}

	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp, &StatusError{StatusCode: resp.StatusCode, Message: parseMessage(data), Body: data}
	}
	if r.Response == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(r.Response); err != nil && err != io.EOF {
		return resp, err
	}
	return resp, nil
}

func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*http.Response, error) {
	return c.Do(ctx, MethodGet, url, nil, opts...)
}

func (c *Client) Post(ctx context.Context, url string, body any, opts ...RequestOption) (*http.Response, error) {
	return c.Do(ctx, MethodPost, url, body, opts...)
}

func (c *Client) Patch(ctx context.Context, url string, body any, opts ...RequestOption) (*http.Response, error) {
	return c.Do(ctx, MethodPatch, url, body, opts...)
}

func (c *Client) Delete(ctx context.Context, url string, body any, opts ...RequestOption) (*http.Response, error) {
	return c.Do(ctx, MethodDelete, url, body, opts...)
}

func (c *Client) newRequest(ctx context.Context, r *Request) (*http.Request, error) {
	target := r.URL
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.Query.Encode()
	}

	var (
		reader      io.Reader
		contentType string
	)
	switch v := r.Body.(type) {
	case nil:
	case io.Reader:
		reader = v
	default:
		buf := c.getBuffer()
		defer c.putBuffer(buf)
		if err := json.NewEncoder(buf).Encode(v); err != nil {
			return nil, err
		}
		// 缓冲会被回收，必须复制
		reader = bytes.NewReader(bytes.Clone(buf.Bytes()))
		contentType = ContentTypeJSON
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", ContentTypeJSON)
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	for k, v := range r.Header {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (c *Client) getBuffer() *bytes.Buffer {
	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func (c *Client) putBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= maxBufferSize {
		c.bufferPool.Put(buf)
	}
}
