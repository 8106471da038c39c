package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fedecaccia/mongodb/pkg/client"
	"github.com/fedecaccia/mongodb/pkg/domain"
)

// User represents the structure of a user document to insert
type User struct {
	UserID int    `json:"user_id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Email  string `json:"email"`
}

// generateRandomName generates a random 6-letter name
func generateRandomName() string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	name := make([]byte, 6)
	for i := range name {
		name[i] = letters[rand.IntN(len(letters))]
	}
	// Capitalize first letter
	name[0] = name[0] - 32
	return string(name)
}

// generateRandomAge generates a random age between 18 and 99
func generateRandomAge() int {
	return rand.IntN(82) + 18
}

func main() {
	var (
		uri       = flag.String("uri", "docstore://localhost:27017", "Server URI")
		numUsers  = flag.Int("users", 1000, "Number of users to insert")
		batchSize = flag.Int("batch", 0, "Insert in batches of this size (0 inserts one document per request)")
		workers   = flag.Int("workers", 4, "Concurrent workers")
		unique    = flag.Bool("unique", true, "Create a unique index on user_id first")
	)
	flag.Parse()

	if *numUsers <= 0 || *workers <= 0 || *batchSize < 0 {
		fmt.Println("Error: -users and -workers must be greater than 0, -batch cannot be negative")
		os.Exit(1)
	}

	ctx := context.Background()
	c, err := client.Connect(ctx, client.WithURI(*uri), client.WithMaxConns(*workers))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer c.Close(ctx)

	users := c.Database("loadtest").Collection("users")
	if *unique {
		if _, err := users.CreateIndex(ctx, domain.IndexModel{
			Keys:   []domain.IndexKey{{Field: "user_id", Direction: domain.Ascending}},
			Unique: true,
		}); err != nil {
			fmt.Printf("Error creating index: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Starting load test: inserting %d users to %s with %d workers\n", *numUsers, *uri, *workers)

	startTime := time.Now()
	var successCount, errorCount atomic.Int64

	// Progress reporting
	reportInterval := int64(max(1, *numUsers/10))
	report := func() {
		done := successCount.Load() + errorCount.Load()
		if done%reportInterval != 0 && done != int64(*numUsers) {
			return
		}
		rate := float64(done) / time.Since(startTime).Seconds()
		fmt.Printf("Progress: %d/%d users (%.1f%%) - Rate: %.1f users/sec - Success: %d, Errors: %d\n",
			done, *numUsers, float64(done)/float64(*numUsers)*100, rate, successCount.Load(), errorCount.Load())
	}

	step := max(1, *batchSize)
	jobs := make(chan []User)
	var wg sync.WaitGroup
	for range *workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range jobs {
				insertBatch(ctx, users, batch, *batchSize > 0, &successCount, &errorCount)
				report()
			}
		}()
	}

	for start := 0; start < *numUsers; start += step {
		batch := make([]User, 0, step)
		for i := start; i < min(start+step, *numUsers); i++ {
			name := generateRandomName()
			batch = append(batch, User{
				UserID: i,
				Name:   name,
				Age:    generateRandomAge(),
				Email:  strings.ToLower(name) + "@example.com",
			})
		}
		jobs <- batch
	}
	close(jobs)
	wg.Wait()

	// Final statistics
	totalTime := time.Since(startTime)
	count, err := users.CountDocuments(ctx, nil)
	if err != nil {
		fmt.Printf("Error counting documents: %v\n", err)
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("LOAD TEST COMPLETE")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Total users attempted: %d\n", *numUsers)
	fmt.Printf("Successful inserts:    %d\n", successCount.Load())
	fmt.Printf("Failed inserts:        %d\n", errorCount.Load())
	fmt.Printf("Documents in store:    %d\n", count)
	fmt.Printf("Total time:            %v\n", totalTime)
	fmt.Printf("Average rate:          %.2f users/sec\n", float64(*numUsers)/totalTime.Seconds())

	if errorCount.Load() > 0 {
		fmt.Printf("\nWarning: %d errors occurred during the load test\n", errorCount.Load())
		os.Exit(1)
	}
	fmt.Println("\nLoad test completed successfully!")
}

func insertBatch(ctx context.Context, users *client.Collection, batch []User, asBatch bool, success, failed *atomic.Int64) {
	if !asBatch {
		for _, u := range batch {
			if _, err := users.InsertOne(ctx, u); err != nil {
				failed.Add(1)
				fmt.Printf("Error inserting user %d (%s): %v\n", u.UserID, u.Name, err)
				continue
			}
			success.Add(1)
		}
		return
	}

	res, err := users.InsertMany(ctx, batch, client.Ordered(false))
	var bulk *domain.BulkWriteError
	switch {
	case err == nil:
		success.Add(int64(len(res.InsertedIDs)))
	case errors.As(err, &bulk):
		success.Add(int64(len(bulk.InsertedIDs)))
		failed.Add(int64(len(bulk.WriteErrors)))
		fmt.Printf("Batch partially inserted: %v\n", err)
	default:
		failed.Add(int64(len(batch)))
		fmt.Printf("Error inserting batch: %v\n", err)
	}
}
