package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/mahaj/streamfeed/pkg/directory"
)

// Seeds the Redis directory hash with development users. In
// production the user-management service owns this data.
func main() {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	users := []directory.Entry{
		{UserID: "user1", DisplayName: "Asha Mehta", Handle: "asha"},
		{UserID: "user2", DisplayName: "Bram Koster", Handle: "bram"},
		{UserID: "user3", DisplayName: "Chen Wu", Handle: "chen"},
		{UserID: "helperbot", DisplayName: "Helper Bot", Handle: "helper", Automated: true},
	}

	ctx := context.Background()
	for _, u := range users {
		raw, _ := json.Marshal(u)
		if err := rdb.HSet(ctx, "directory:users", u.UserID, raw).Err(); err != nil {
			log.Fatal(err)
		}
		log.Printf("seeded %s (@%s)", u.UserID, u.Handle)
	}
}
