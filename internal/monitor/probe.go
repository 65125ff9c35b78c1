package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prath-devops/sfdx-core/internal/polling"
)

// ProbeFactory builds the status probe for a poll-mode watch target.
type ProbeFactory func(target string) polling.Probe

// statusResponse is the JSON document a poll target must answer with.
type statusResponse struct {
	Completed bool            `json:"completed"`
	Payload   json.RawMessage `json:"payload"`
}

// HTTPProbeFactory returns a factory building probes that GET the target and
// decode a {"completed": bool, "payload": ...} document. A nil client uses
// http.DefaultClient.
func HTTPProbeFactory(client *http.Client) ProbeFactory {
	if client == nil {
		client = http.DefaultClient
	}
	return func(target string) polling.Probe {
		return func(ctx context.Context) (polling.StatusResult, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return polling.StatusResult{}, fmt.Errorf("build probe request: %w", err)
			}
			req.Header.Set("Accept", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				return polling.StatusResult{}, err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return polling.StatusResult{}, fmt.Errorf("status probe: unexpected status %d from %s", resp.StatusCode, target)
			}

			var body statusResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return polling.StatusResult{}, fmt.Errorf("decode probe response: %w", err)
			}
			return polling.StatusResult{Completed: body.Completed, Payload: body.Payload}, nil
		}
	}
}
