// Command roomtail connects to a devsocial hub, joins rooms and prints every
// frame it receives, one JSON object per line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"devsocial/pkg/config"
	"devsocial/pkg/envelope"
	"devsocial/pkg/hub"
	"devsocial/pkg/logger"
)

func main() {
	url := flag.String("url", "ws://localhost:8082/ws", "hub websocket url")
	token := flag.String("token", os.Getenv("DEVSOCIAL_TOKEN"), "bearer token")
	chats := flag.String("chats", "", "comma separated chat ids to join")
	projects := flag.String("projects", "", "comma separated project ids to join")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "a token is required (-token or DEVSOCIAL_TOKEN)")
		os.Exit(2)
	}

	log := logger.Must(config.LogConfig{Level: "info", Development: true})
	defer log.Sync()

	client := hub.NewClient(*url, *token, log)
	client.OnMessage(func(env envelope.Envelope) {
		raw, err := env.Marshal()
		if err != nil {
			return
		}
		fmt.Println(string(raw))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, id := range split(*chats) {
		client.Join(hub.ActionJoinChat, id)
	}
	for _, id := range split(*projects) {
		client.Join(hub.ActionJoinProject, id)
	}

	client.Run(ctx)
}

func split(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
