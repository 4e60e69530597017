package delivery

import (
	"context"
	"net/http"
	"time"

	pkgerrors "github.com/pkg/errors"
)

// Prober checks whether the network path to the destination is up.
type Prober interface {
	Probe(ctx context.Context) error
}

// HTTPProber considers the network reachable when any HTTP response to a GET
// of URL arrives within Timeout. The status code is not checked.
type HTTPProber struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: p.Timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "build probe request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return pkgerrors.Wrapf(err, "probe %s", p.URL)
	}
	return resp.Body.Close()
}
