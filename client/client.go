package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"group-chat/domain"
	"group-chat/domain/event"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `env:"CHAT_SERVER_URL,default=ws://localhost:8080/ws"`
	Token     string `env:"CHAT_TOKEN,required=true"`
	LogLevel  string `env:"LOG_LEVEL,default=INFO"`
}

const usage = `Commands:
  /create <name> [public]        create a group, private unless "public"
  /join <groupId>                join a group
  /send <groupId> <text>         send a message
  /invite <groupId> <userId>     invite a user
  /history <groupId> [cursor]    page through older messages
  /search <groupId> <terms>      search the group messages
  /broadcast <text>              message every connected user
  /quit`

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+config.Token)
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, header)
	if err != nil {
		if resp != nil {
			return exitRuntime, fmt.Errorf("could not connect to %s (HTTP %d): %w", config.ServerURL, resp.StatusCode, err)
		}
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerURL, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = ws.Close()
	}()

	fmt.Println(color.Green.Sprintf(">>> Connected to %s (Ctrl+C to quit)", config.ServerURL))
	fmt.Println(usage)

	received := make(chan error, 1)
	go func() { received <- receive(ws) }()

	lines := make(chan string)
	go scan(lines)

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case err := <-received:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("connection lost: %w", err)
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "/quit" {
				return exitOK, nil
			}
			request, err := parse(line)
			if err != nil {
				fmt.Println(color.Red.Sprint(err))
				continue
			}
			if err := ws.WriteJSON(request); err != nil {
				return exitRuntime, fmt.Errorf("send failed: %w", err)
			}
		}
	}
}

func scan(lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines <- line
		}
	}
}

// receive prints every frame until the connection fails.
func receive(ws *websocket.Conn) error {
	for {
		var frame struct {
			Event   event.Name      `json:"event"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := ws.ReadJSON(&frame); err != nil {
			return err
		}
		fmt.Println(render(frame.Event, frame.Payload))
	}
}

func render(name event.Name, payload json.RawMessage) string {
	switch name {
	case event.MessageType, event.LastMessageType:
		var m event.MessagePayload
		if json.Unmarshal(payload, &m) == nil {
			return formatMessage(m, name == event.LastMessageType)
		}
	case event.BroadCastType:
		var text string
		if json.Unmarshal(payload, &text) == nil {
			return color.Yellow.Sprintf("** %s", text)
		}
	case event.NewGroupType:
		var g event.NewGroupPayload
		if json.Unmarshal(payload, &g) == nil {
			return color.Cyan.Sprintf("Group %q created: %s (private=%t)", g.Name, g.GroupID, g.IsPrivate)
		}
	case event.HistoryType:
		var h event.HistoryPayload
		if json.Unmarshal(payload, &h) == nil {
			lines := []string{color.Cyan.Sprintf("History of %s (%d messages)", h.GroupID, len(h.Messages))}
			for _, m := range h.Messages {
				lines = append(lines, formatMessage(m, false))
			}
			if h.Cursor != nil {
				lines = append(lines, color.Gray.Sprintf("more: /history %s %s", h.GroupID, *h.Cursor))
			}
			return strings.Join(lines, "\n")
		}
	case event.SearchResultType:
		var r event.SearchResultPayload
		if json.Unmarshal(payload, &r) == nil {
			lines := []string{color.Cyan.Sprintf("%d result(s) for %q in %s", len(r.Messages), r.Terms, r.GroupID)}
			for _, m := range r.Messages {
				lines = append(lines, formatMessage(m, false))
			}
			return strings.Join(lines, "\n")
		}
	case event.ErrorType:
		var e event.ErrorPayload
		if json.Unmarshal(payload, &e) == nil {
			return color.Red.Sprintf("%s failed [%s]: %s", e.Method, e.Kind, e.Message)
		}
	}
	return fmt.Sprintf("%s %s", name, payload)
}

func formatMessage(m event.MessagePayload, catchUp bool) string {
	line := fmt.Sprintf("[%s] %s@%s: %s", m.SendAt.Local().Format(time.TimeOnly), m.Sender.Name, m.GroupID, m.Text)
	if catchUp {
		return color.Gray.Sprint(line)
	}
	return line
}

// parse turns a command line into a request; a line starting with "{" is sent as is.
func parse(line string) (domain.Request, error) {
	if strings.HasPrefix(line, "{") {
		var request domain.Request
		err := json.Unmarshal([]byte(line), &request)
		return request, err
	}

	command, rest, _ := strings.Cut(line, " ")
	args := strings.Fields(rest)
	var method domain.Method
	var params any

	switch command {
	case "/create":
		if len(args) == 0 {
			return domain.Request{}, errors.New("usage: /create <name> [public]")
		}
		private := !(len(args) > 1 && args[1] == "public")
		method, params = domain.CreateGroupMethod, domain.CreateGroupCommand{Name: args[0], IsPrivate: &private}
	case "/join":
		if len(args) != 1 {
			return domain.Request{}, errors.New("usage: /join <groupId>")
		}
		method, params = domain.JoinGroupMethod, domain.JoinGroupCommand{GroupID: domain.GroupID(args[0])}
	case "/send":
		groupID, text, _ := strings.Cut(strings.TrimSpace(rest), " ")
		if groupID == "" || strings.TrimSpace(text) == "" {
			return domain.Request{}, errors.New("usage: /send <groupId> <text>")
		}
		method, params = domain.SendMessageToGroupMethod, domain.SendMessageCommand{GroupID: domain.GroupID(groupID), Text: text}
	case "/invite":
		if len(args) != 2 {
			return domain.Request{}, errors.New("usage: /invite <groupId> <userId>")
		}
		method, params = domain.InviteToGroupMethod, domain.InviteCommand{GroupID: domain.GroupID(args[0]), UserID: domain.UserID(args[1])}
	case "/history":
		if len(args) == 0 || len(args) > 2 {
			return domain.Request{}, errors.New("usage: /history <groupId> [cursor]")
		}
		cmd := domain.HistoryCommand{GroupID: domain.GroupID(args[0])}
		if len(args) == 2 {
			cmd.Cursor = &args[1]
		}
		method, params = domain.HistoryMethod, cmd
	case "/search":
		groupID, terms, _ := strings.Cut(strings.TrimSpace(rest), " ")
		if groupID == "" || strings.TrimSpace(terms) == "" {
			return domain.Request{}, errors.New("usage: /search <groupId> <terms>")
		}
		method, params = domain.SearchMessagesMethod, domain.SearchCommand{GroupID: domain.GroupID(groupID), Terms: terms}
	case "/broadcast":
		if strings.TrimSpace(rest) == "" {
			return domain.Request{}, errors.New("usage: /broadcast <text>")
		}
		method, params = domain.BroadcastToAllMethod, domain.BroadcastCommand{Text: strings.TrimSpace(rest)}
	default:
		return domain.Request{}, fmt.Errorf("unknown command %q\n%s", command, usage)
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return domain.Request{}, err
	}
	return domain.Request{ID: uuid.NewString(), Method: method, Params: raw}, nil
}
