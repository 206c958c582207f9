package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

// jobStatus mirrors the status document served by the job server.
type jobStatus struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Config struct {
		Problem string `json:"problem"`
		Dim     int    `json:"dim"`
		Method  string `json:"method"`
		Iters   int    `json:"iters"`
		Seed    int64  `json:"seed"`
		PopSize int    `json:"popSize"`
	} `json:"config"`
	Point        []float64 `json:"point"`
	BestValue    float64   `json:"bestValue"`
	InitialValue float64   `json:"initialValue"`
	Iterations   int       `json:"iterations"`
	LearningRate float64   `json:"learningRate"`
	Stop         string    `json:"stop"`
	Elapsed      float64   `json:"elapsed"`
	IPS          float64   `json:"ips"`
	Error        string    `json:"error"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs(fmt.Sprintf("%s/api/v1/jobs", serverURL))
	}
	jobID := args[0]
	return getJobStatus(fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID), jobID)
}

func listJobs(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var jobs []jobStatus
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Printf("Job ID: %s\n", job.ID)
		fmt.Printf("  State: %s\n", job.State)
		fmt.Printf("  Problem: %s (dim %d)\n", job.Config.Problem, job.Config.Dim)
		fmt.Printf("  Method: %s\n", job.Config.Method)
		if job.Iterations > 0 {
			fmt.Printf("  Value: %.6g -> %.6g\n", job.InitialValue, job.BestValue)
		}
		fmt.Println()
	}

	return nil
}

func getJobStatus(url, jobID string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var status jobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Job: %s\n", status.ID)
	fmt.Printf("State: %s\n", status.State)
	fmt.Println()

	fmt.Println("Configuration:")
	fmt.Printf("  Problem: %s\n", status.Config.Problem)
	fmt.Printf("  Dimension: %d\n", status.Config.Dim)
	fmt.Printf("  Method: %s\n", status.Config.Method)
	fmt.Printf("  Iterations: %d\n", status.Config.Iters)
	fmt.Printf("  Seed: %d\n", status.Config.Seed)
	if status.Config.PopSize > 0 {
		fmt.Printf("  Population: %d\n", status.Config.PopSize)
	}
	fmt.Println()

	fmt.Println("Progress:")
	fmt.Printf("  Iterations: %d\n", status.Iterations)
	fmt.Printf("  Initial Value: %.6g\n", status.InitialValue)
	fmt.Printf("  Best Value: %.6g\n", status.BestValue)
	fmt.Printf("  Improvement: %.6g\n", status.BestValue-status.InitialValue)
	if status.LearningRate > 0 {
		fmt.Printf("  Step Size: %.4g\n", status.LearningRate)
	}
	if len(status.Point) > 0 {
		fmt.Printf("  Point: %s\n", formatPoint(status.Point))
	}

	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Printf("  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if status.IPS > 0 {
		fmt.Printf("  Throughput: %.0f iterations/sec\n", status.IPS)
	}
	if status.Stop != "" {
		fmt.Printf("  Stop: %s\n", status.Stop)
	}

	if status.Error != "" {
		fmt.Printf("\nError: %s\n", status.Error)
	}

	return nil
}
