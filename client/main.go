package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/mahaj/streamfeed/pkg/apiclient"
	"github.com/mahaj/streamfeed/pkg/directory"
	"github.com/mahaj/streamfeed/pkg/model"
	"github.com/mahaj/streamfeed/pkg/reconciler"
)

func main() {
	gatewayAddr := flag.String("gateway", "ws://localhost:8080", "gateway service url")
	apiAddr := flag.String("api", "http://localhost:8081", "api service url")
	userID := flag.String("user", "user1", "user id")
	conversationID := flag.String("conversation", "general", "conversation id")
	watch := flag.String("watch", "", "comma-separated other conversations to watch for unread")
	flag.Parse()

	// 1. Login to get a token.
	log.Printf("Logging in as %s...", *userID)
	token, err := apiclient.Login(*apiAddr, *userID)
	if err != nil {
		log.Fatal("Login failed:", err)
	}

	api := apiclient.New(*apiAddr, token)
	deleter := apiclient.NewMultiRouteDeleter(api)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Reconciler + live stream with reconnect-and-resnapshot.
	rec := reconciler.New(*conversationID)
	rec.OnChange(func() { render(rec) })

	stream := &reconciler.Stream{
		GatewayURL:     *gatewayAddr,
		Token:          token,
		ConversationID: *conversationID,
		Snapshot: func(ctx context.Context) ([]*model.Message, error) {
			return api.ListMessages(ctx, *conversationID, 50, 0)
		},
		OnDegraded: func(err error) {
			fmt.Printf("\rlive updates unavailable (%v); falling back to manual refresh with /refresh\n> ", err)
		},
	}
	go stream.Run(ctx, rec)

	// 3. Unread poller for the watched conversations.
	if *watch != "" {
		watched := strings.Split(*watch, ",")
		poller := reconciler.NewPoller(15*time.Second, func(ctx context.Context) (map[string]bool, error) {
			return api.Unread(ctx, watched)
		}, func(result map[string]bool) {
			for id, unread := range result {
				if unread {
					fmt.Printf("\runread activity in %s\n> ", id)
				}
			}
		})
		go poller.Run(ctx)
	}

	// 4. Mention autocomplete for the compose line.
	suggester := reconciler.NewSuggester(api.SearchMentions, reconciler.DefaultDebounce,
		func(partial string, candidates []directory.Entry) {
			if len(candidates) == 0 {
				return
			}
			fmt.Printf("\rmentions for @%s:", partial)
			for _, c := range candidates {
				fmt.Printf(" @%s (%s)", c.Handle, c.DisplayName)
			}
			fmt.Print("\n> ")
		})
	defer suggester.Stop()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// 5. Read from stdin: plain text sends, /commands do the rest.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch {
			case line == "":
			case line == "/quit":
				close(interrupt)
				return
			case strings.HasPrefix(line, "/delete "):
				handleDelete(ctx, rec, deleter, strings.TrimPrefix(line, "/delete "))
			case strings.HasPrefix(line, "/reply "):
				handleReply(ctx, api, rec, *conversationID, strings.TrimPrefix(line, "/reply "))
			case line == "/read":
				if err := api.MarkRead(ctx, *conversationID, rec.Watermark()); err != nil {
					fmt.Printf("mark read failed: %v\n", err)
				}
			case line == "/refresh":
				if msgs, err := api.ListMessages(ctx, *conversationID, 50, 0); err == nil {
					rec.Seed(msgs)
				}
			case endsInMention(line):
				// A line ending mid-@token is still being composed;
				// suggest completions instead of sending it.
				suggester.Input(line)
			default:
				if msg, err := api.SendMessage(ctx, *conversationID, line, 0); err != nil {
					fmt.Printf("send failed: %v\n", err)
				} else {
					rec.ApplyLocal(msg)
				}
			}
			fmt.Print("> ")
		}
	}()

	<-interrupt
	log.Println("interrupt")
	cancel()
	time.Sleep(200 * time.Millisecond)
}

func endsInMention(line string) bool {
	_, _, ok := model.TrailingMention(line)
	return ok
}

func handleDelete(ctx context.Context, rec *reconciler.Reconciler, deleter reconciler.Deleter, arg string) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		fmt.Println("usage: /delete <message id>")
		return
	}
	if err := rec.Delete(ctx, deleter, id); err != nil {
		fmt.Printf("delete failed: %v\n", err)
	}
}

func handleReply(ctx context.Context, api *apiclient.Client, rec *reconciler.Reconciler, conversationID, arg string) {
	parts := strings.SplitN(strings.TrimSpace(arg), " ", 2)
	if len(parts) != 2 {
		fmt.Println("usage: /reply <message id> <text>")
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		fmt.Println("usage: /reply <message id> <text>")
		return
	}
	msg, err := api.SendMessage(ctx, conversationID, parts[1], id)
	if err != nil {
		fmt.Printf("reply failed: %v\n", err)
		return
	}
	rec.ApplyLocal(msg)
}

func render(rec *reconciler.Reconciler) {
	msgs := rec.Messages()
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	if last.ReplyTo != nil {
		fmt.Printf("\r%s [%d] (re %s: %s): %s\n> ",
			last.DisplayName, last.ID, last.ReplyTo.SenderName, last.ReplyTo.TextPreview, last.Text)
	} else {
		fmt.Printf("\r%s [%d]: %s\n> ", last.DisplayName, last.ID, last.Text)
	}
}
