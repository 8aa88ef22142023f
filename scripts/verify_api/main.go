package main

import (
	"context"
	"fmt"
	"log"

	"github.com/mahaj/streamfeed/pkg/apiclient"
)

// Smoke-checks a running deployment: login, send, list, reply, delete
// twice (the second must come back 404 and be absorbed by the
// reconciler policy; here we just print it).
func main() {
	apiAddr := "http://localhost:8081"
	ctx := context.Background()

	token, err := apiclient.Login(apiAddr, "user1")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Token: %s...\n", token[:10])

	api := apiclient.New(apiAddr, token)

	msg, err := api.SendMessage(ctx, "verify", "hello from verify_api", 0)
	if err != nil {
		log.Fatal("send failed:", err)
	}
	log.Printf("sent message %d", msg.ID)

	reply, err := api.SendMessage(ctx, "verify", "a reply", msg.ID)
	if err != nil {
		log.Fatal("reply failed:", err)
	}
	log.Printf("reply %d references %q", reply.ID, reply.ReplyTo.TextPreview)

	msgs, err := api.ListMessages(ctx, "verify", 10, 0)
	if err != nil {
		log.Fatal("list failed:", err)
	}
	log.Printf("listed %d messages", len(msgs))

	if err := api.DeleteMessage(ctx, msg.ID); err != nil {
		log.Fatal("delete failed:", err)
	}
	log.Printf("deleted %d", msg.ID)

	err = api.DeleteMessage(ctx, msg.ID)
	log.Printf("second delete returned: %v", err)
}
