package watch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/toolfleet/toolfleet/internal/job"
)

// --- Message types ---

type jobsMsg struct {
	Items []*job.Job `json:"items"`
	Total int        `json:"total"`
}

type healthMsg struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type cancelledMsg struct {
	jobID string
}

type tickMsg time.Time

type errMsg error

// --- Commands ---

// fetchJobs queries GET /jobs for the most recently updated records.
func fetchJobs(apiURL, apiKey string, limit int) tea.Cmd {
	return func() tea.Msg {
		var out jobsMsg
		if err := getJSON(apiURL+fmt.Sprintf("/jobs?limit=%d", limit), apiKey, &out); err != nil {
			return errMsg(err)
		}
		return out
	}
}

// fetchHealth queries the /healthz endpoint.
func fetchHealth(apiURL, apiKey string) tea.Cmd {
	return func() tea.Msg {
		var h healthMsg
		if err := getJSON(apiURL+"/healthz", apiKey, &h); err != nil {
			return errMsg(err)
		}
		return h
	}
}

// cancelJob posts to /jobs/{id}/cancel.
func cancelJob(apiURL, apiKey, jobID string) tea.Cmd {
	return func() tea.Msg {
		client := &http.Client{Timeout: 5 * time.Second}
		req, err := http.NewRequest("POST", apiURL+"/jobs/"+jobID+"/cancel", nil)
		if err != nil {
			return errMsg(err)
		}
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}

		resp, err := client.Do(req)
		if err != nil {
			return errMsg(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return errMsg(fmt.Errorf("cancel %s: HTTP %d", jobID, resp.StatusCode))
		}
		return cancelledMsg{jobID: jobID}
	}
}

func getJSON(url, apiKey string, out any) error {
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
