package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPClassifier targets a remote inference endpoint, the real (non-mock)
// implementation. It never spends longer than the request's context allows.
type HTTPClassifier struct {
	endpoint string
	client   *http.Client
}

func NewHTTPClassifier(endpoint string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	VideoRef string `json:"video_ref"`
}

type classifyResponse struct {
	IsDeepfake         bool    `json:"is_deepfake"`
	Confidence         float64 `json:"confidence"`
	DiffusionArtifacts bool    `json:"diffusion_artifacts"`
	GANGhosting        bool    `json:"gan_ghosting"`
	ProcessingTimeMs   int     `json:"processing_time_ms"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, videoRef string) (Result, error) {
	body, err := json.Marshal(classifyRequest{VideoRef: videoRef})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/classify", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("classifier endpoint returned %d", resp.StatusCode)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, err
	}

	return Result{
		IsDeepfake:         out.IsDeepfake,
		Confidence:         out.Confidence,
		DiffusionArtifacts: out.DiffusionArtifacts,
		GANGhosting:        out.GANGhosting,
		ProcessingTimeMs:   out.ProcessingTimeMs,
	}, nil
}
