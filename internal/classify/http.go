package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/routewise/backend/internal/models"
)

type HTTPAdapter struct {
	BaseURL string
	Client  *http.Client
}

type requestBody struct {
	Content     string `json:"content"`
	Subject     string `json:"subject,omitempty"`
	RequestType string `json:"request_type,omitempty"`
}

type responseBody struct {
	Categories []string `json:"categories"`
	Urgency    string   `json:"urgency_level"`
	Confidence float64  `json:"confidence"`
}

func (h HTTPAdapter) Classify(ctx context.Context, r models.IncomingRequest) (models.CategorizationResult, int64, error) {
	if h.Client == nil {
		h.Client = &http.Client{Timeout: 5 * time.Second}
	}

	payload := requestBody{
		Content:     r.Content,
		Subject:     r.Subject,
		RequestType: r.RequestType,
	}
	b, _ := json.Marshal(payload)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/classify", bytes.NewBuffer(b))
	if err != nil {
		return models.CategorizationResult{}, 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	resp, err := h.Client.Do(req)
	if err != nil {
		return models.CategorizationResult{}, time.Since(start).Milliseconds(), err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.CategorizationResult{}, time.Since(start).Milliseconds(), errors.New("classifier service error")
	}

	var out responseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.CategorizationResult{}, time.Since(start).Milliseconds(), err
	}

	result := models.CategorizationResult{
		Categories: out.Categories,
		Urgency:    models.Urgency(out.Urgency),
		Confidence: out.Confidence,
		Source:     "classifier",
	}
	return result, time.Since(start).Milliseconds(), nil
}
