package rest

import (
	"context"
	"net/url"

	xhttp "github.com/kochabx/rentoso/core/net/http"
)

type Functions struct {
	c *Client
}

func (f *Functions) Invoke(ctx context.Context, name string, in, out any) error {
	opts := []xhttp.RequestOption{f.c.bearer()}
	if out != nil {
		opts = append(opts, xhttp.Into(out))
	}
	_, err := f.c.http.Post(ctx, f.c.endpoint("/functions/v1/"+url.PathEscape(name)), in, opts...)
	return mapError(err, "invoke "+name)
}
