package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/toolfleet/toolfleet/internal/job"
	"github.com/toolfleet/toolfleet/internal/tui/watch"
)

// apiFlags are the flags every job action shares.
type apiFlags struct {
	url *string
	key *string
}

func addAPIFlags(fs *flag.FlagSet) apiFlags {
	return apiFlags{
		url: fs.String("api-url", "http://localhost:8080", "Request server URL"),
		key: fs.String("api-key", os.Getenv("TOOLFLEET_API_KEY"), "API Bearer Token"),
	}
}

func runJobSubmit(args []string) int {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	apiF := addAPIFlags(fs)
	toolkitName := fs.String("toolkit", "", "Toolkit slug")
	module := fs.String("module", "", "Module name (defaults to toolkit)")
	operation := fs.String("operation", "", "Operation name")
	payload := fs.String("payload", "", "JSON payload")
	jsonOut := fs.Bool("json", false, "Output the created job record as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *toolkitName == "" || *operation == "" {
		fmt.Fprintln(os.Stderr, "Error: --toolkit and --operation are required")
		return 1
	}
	if *payload != "" && !json.Valid([]byte(*payload)) {
		fmt.Fprintln(os.Stderr, "Error: --payload is not valid JSON")
		return 1
	}

	body := map[string]any{
		"toolkit":   *toolkitName,
		"operation": *operation,
	}
	if *module != "" {
		body["module"] = *module
	}
	if *payload != "" {
		body["payload"] = json.RawMessage(*payload)
	}

	var created job.Job
	status, err := callAPI(*apiF.url, *apiF.key, http.MethodPost, "/jobs", body, &created)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Submit failed: %v\n", err)
		return 1
	}
	if status != http.StatusAccepted {
		fmt.Fprintf(os.Stderr, "Submit failed: HTTP %d\n", status)
		return 1
	}

	if *jsonOut {
		printJSON(created)
		return 0
	}
	fmt.Printf("Submitted %s as job %s\n", created.Type, created.ID)
	return 0
}

func runJobList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	apiF := addAPIFlags(fs)
	toolkitName := fs.String("toolkit", "", "Filter by toolkit")
	module := fs.String("module", "", "Filter by module")
	status := fs.String("status", "", "Filter by status")
	limit := fs.Int("limit", 20, "Page size (0 = all)")
	offset := fs.Int("offset", 0, "Page offset")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	path := fmt.Sprintf("/jobs?limit=%d&offset=%d", *limit, *offset)
	if *toolkitName != "" {
		path += "&toolkit=" + *toolkitName
	}
	if *module != "" {
		path += "&module=" + *module
	}
	if *status != "" {
		path += "&status=" + *status
	}

	var list struct {
		Items []*job.Job `json:"items"`
		Total int        `json:"total"`
	}
	httpStatus, err := callAPI(*apiF.url, *apiF.key, http.MethodGet, path, nil, &list)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		return 1
	}
	if httpStatus != http.StatusOK {
		fmt.Fprintf(os.Stderr, "List failed: HTTP %d\n", httpStatus)
		return 1
	}

	if *jsonOut {
		printJSON(list)
		return 0
	}

	fmt.Printf("%-36s  %-28s  %-10s  %-8s  %s\n", "ID", "TYPE", "STATUS", "PROGRESS", "UPDATED")
	for _, j := range list.Items {
		fmt.Printf("%-36s  %-28s  %-10s  %7d%%  %s\n",
			j.ID, j.Type, j.Status, j.Progress, j.UpdatedAt.Local().Format(time.RFC3339))
	}
	fmt.Printf("%d of %d jobs\n", len(list.Items), list.Total)
	return 0
}

func runJobGet(args []string) int {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	apiF := addAPIFlags(fs)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: toolfleet job get <job_id>")
		return 1
	}
	jobID := fs.Arg(0)

	var j job.Job
	status, err := callAPI(*apiF.url, *apiF.key, http.MethodGet, "/jobs/"+jobID, nil, &j)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Get failed: %v\n", err)
		return 1
	}
	if status == http.StatusNotFound {
		fmt.Fprintf(os.Stderr, "Job not found: %s\n", jobID)
		return 1
	}
	if status != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Get failed: HTTP %d\n", status)
		return 1
	}

	if *jsonOut {
		printJSON(j)
		return 0
	}

	fmt.Printf("Job:      %s\n", j.ID)
	fmt.Printf("Type:     %s\n", j.Type)
	fmt.Printf("Status:   %s\n", j.Status)
	fmt.Printf("Progress: %d%%\n", j.Progress)
	if j.Error != "" {
		fmt.Printf("Error:    %s\n", j.Error)
	}
	if len(j.Result) > 0 {
		fmt.Printf("Result:   %s\n", string(j.Result))
	}
	if len(j.Logs) > 0 {
		fmt.Println("Log:")
		for _, entry := range j.Logs {
			fmt.Printf("  %s  %s\n", entry.At.Local().Format(time.RFC3339), entry.Message)
		}
	}
	return 0
}

func runJobCancel(args []string) int {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	apiF := addAPIFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: toolfleet job cancel <job_id>")
		return 1
	}
	jobID := fs.Arg(0)

	var j job.Job
	status, err := callAPI(*apiF.url, *apiF.key, http.MethodPost, "/jobs/"+jobID+"/cancel", nil, &j)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cancel failed: %v\n", err)
		return 1
	}
	if status == http.StatusNotFound {
		fmt.Fprintf(os.Stderr, "Job not found: %s\n", jobID)
		return 1
	}
	if status != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Cancel failed: HTTP %d\n", status)
		return 1
	}

	fmt.Printf("Job %s is %s\n", j.ID, j.Status)
	return 0
}

func runJobWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiF := addAPIFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if err := watch.Run(*apiF.url, *apiF.key); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

// callAPI performs one JSON request against the request server and decodes
// the response into out when it is non-nil.
func callAPI(apiURL, apiKey, method, path string, body any, out any) (int, error) {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, apiURL+path, buf)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
