package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jmorenov/plazacore/internal/kafka"
)

// Forwarder pushes spot events consumed by the worker to an operator
// notification webhook. With no URL configured it degrades to stdout,
// which is enough for local runs.
type Forwarder struct {
	url    string
	client *http.Client
}

func NewForwarder(webhookURL string) *Forwarder {
	return &Forwarder{
		url:    webhookURL,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *Forwarder) Send(ctx context.Context, event kafka.SpotEvent) error {
	if f.url == "" {
		fmt.Printf("notify: %s facility %d spot %d plate %s\n", event.Type, event.FacilityID, event.SpotNumber, event.Plate)
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify webhook returned %s", resp.Status)
	}
	return nil
}
