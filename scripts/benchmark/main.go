// Load-tests a running pinbook server's read endpoints and prints a
// latency report. Point it at a seeded development instance.
package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	baseURL       string
	totalRequests int
	concurrency   int
)

var targets = []string{
	"/api/clusters",
	"/api/clusters?precision=city&min_lat=40&min_lon=-10&max_lat=60&max_lon=20",
	"/api/summary",
	"/api/centroid",
	"/api/photos?key=" + url.QueryEscape("country:FR"),
}

type stats struct {
	success   uint64
	failed    uint64
	mu        sync.Mutex
	latencies []time.Duration
}

func (s *stats) record(d time.Duration, ok bool) {
	if ok {
		atomic.AddUint64(&s.success, 1)
	} else {
		atomic.AddUint64(&s.failed, 1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

func (s *stats) percentile(p float64) time.Duration {
	if len(s.latencies) == 0 {
		return 0
	}
	idx := int(float64(len(s.latencies)-1) * p)
	return s.latencies[idx]
}

func main() {
	root := &cobra.Command{
		Use:   "benchmark",
		Short: "Hammer a pinbook server's read endpoints",
		RunE:  func(cmd *cobra.Command, args []string) error { return run() },
	}
	root.Flags().StringVar(&baseURL, "base-url", "http://localhost:9910", "server to benchmark")
	root.Flags().IntVar(&totalRequests, "requests", 2000, "total number of requests")
	root.Flags().IntVar(&concurrency, "workers", 10, "concurrent workers")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	pterm.DefaultHeader.WithFullWidth().
		WithBackgroundStyle(pterm.NewStyle(pterm.BgLightMagenta)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Println("PINBOOK API BENCHMARK")
	pterm.Println()
	pterm.Info.Printf("Target %s | %d requests | %d workers\n", baseURL, totalRequests, concurrency)

	client := &http.Client{Timeout: 10 * time.Second}
	jobs := make(chan string, concurrency)
	st := &stats{}

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for target := range jobs {
				begin := time.Now()
				ok := doRequest(client, baseURL+target)
				st.record(time.Since(begin), ok)
			}
		}()
	}

	start := time.Now()
	for i := 0; i < totalRequests; i++ {
		jobs <- targets[i%len(targets)]
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	sort.Slice(st.latencies, func(i, j int) bool { return st.latencies[i] < st.latencies[j] })

	rps := float64(totalRequests) / elapsed.Seconds()
	data := pterm.TableData{
		{"Metric", "Value"},
		{"Requests", fmt.Sprintf("%d", totalRequests)},
		{"Success", fmt.Sprintf("%d", st.success)},
		{"Failed", fmt.Sprintf("%d", st.failed)},
		{"Throughput", fmt.Sprintf("%.1f req/s", rps)},
		{"p50", st.percentile(0.50).Round(time.Microsecond).String()},
		{"p90", st.percentile(0.90).Round(time.Microsecond).String()},
		{"p99", st.percentile(0.99).Round(time.Microsecond).String()},
		{"Max", st.percentile(1.0).Round(time.Microsecond).String()},
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	if st.failed > 0 {
		pterm.Warning.Printf("%d requests failed\n", st.failed)
	} else {
		pterm.Success.Println("All requests succeeded")
	}
	return nil
}

func doRequest(client *http.Client, target string) bool {
	resp, err := client.Get(target)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < 400
}
