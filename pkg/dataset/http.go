package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/synaptica-ai/biomarkers/pkg/common/logger"
	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/gateway/httpclient"
)

const maxDocumentBytes = 32 << 20

type statusError struct {
	code int
}

func (e statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// HTTPSource fetches the dataset document over the network.
type HTTPSource struct {
	url       string
	client    *http.Client
	attempts  int
	baseDelay time.Duration
}

func NewHTTPSource(url string, timeout time.Duration, attempts int) *HTTPSource {
	return &HTTPSource{
		url:       url,
		client:    httpclient.New(timeout),
		attempts:  attempts,
		baseDelay: 200 * time.Millisecond,
	}
}

func (s *HTTPSource) Load(ctx context.Context) (*models.Document, error) {
	var body []byte
	err := httpclient.Retry(ctx, s.attempts, s.baseDelay, func() error {
		b, err := s.fetch(ctx)
		if err != nil {
			logger.Log.WithError(err).WithField("url", s.url).Warn("dataset fetch failed")
			if !httpclient.IsRetriable(err) {
				return httpclient.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching dataset: %w", err)
	}
	return Decode(body)
}

func (s *HTTPSource) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, httpclient.Temporary(statusError{code: resp.StatusCode})
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError{code: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
}
