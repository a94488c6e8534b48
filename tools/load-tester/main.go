package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080/api/v1", "Base URL of the lease API")
	apiKey := flag.String("api-key", "", "API Key for authentication")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 200, "Requests per second limit")
	writeRatio := flag.Int("writes", 10, "Percentage of requests that create a lease")
	flag.Parse()

	log.Printf("Starting load test on %s", *baseURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d, Writes: %d%%", *concurrency, *duration, *rps, *writeRatio)

	var wg sync.WaitGroup
	var successCount, errorCount, created atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 50) // Allow bursts up to 50

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{
				Timeout: 5 * time.Second,
			}

			for n := 0; ; n++ {
				if err := limiter.Wait(ctx); err != nil {
					return // Deadline reached
				}

				var req *http.Request
				var err error
				want := http.StatusOK
				switch {
				case (n*7+workerID)%100 < *writeRatio:
					// Every lease gets its own unit so creates never collide.
					payload := fmt.Sprintf(`{"housingUnitId":"load-%s","leaseType":"MAIN_RESIDENCE_9Y","startDate":"%s","initialRent":"850","initialCharges":"60","baseIndexValue":"120.5","tenants":[{"personId":"%s"}]}`,
						uuid.NewString(), time.Now().AddDate(-1, 0, 0).Format("2006-01-02"), uuid.NewString())
					req, err = http.NewRequestWithContext(ctx, http.MethodPost, *baseURL+"/leases?activate=true", bytes.NewBufferString(payload))
					want = http.StatusCreated
				case n%2 == 0:
					req, err = http.NewRequestWithContext(ctx, http.MethodGet, *baseURL+"/leases/alerts", nil)
				default:
					req, err = http.NewRequestWithContext(ctx, http.MethodGet, *baseURL+"/leases?status=ACTIVE&sort=monthlyRent,desc&size=50", nil)
				}
				if err != nil {
					continue // Should not happen
				}
				req.Header.Set("Content-Type", "application/json")
				if *apiKey != "" {
					req.Header.Set("X-API-Key", *apiKey)
				}

				resp, err := client.Do(req)
				if err != nil {
					errorCount.Add(1)
					continue
				}

				if resp.StatusCode == want {
					successCount.Add(1)
					if want == http.StatusCreated {
						created.Add(1)
					}
				} else {
					errorCount.Add(1)
				}
				resp.Body.Close()
			}
		}(i)
	}

	wg.Wait()

	totalRequests := successCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Successful: %d (leases created: %d)", successCount.Load(), created.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)
}
