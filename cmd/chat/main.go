package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lazycook/chat-platform/internal/apperr"
	"github.com/lazycook/chat-platform/internal/chat"
	"github.com/lazycook/chat-platform/internal/client"
	"github.com/lazycook/chat-platform/internal/plan"
)

const help = `commands:
  /new               start a new chat
  /list              list chats
  /select <n|id>     switch chat
  /rename <title>    rename the current chat
  /delete            delete the current chat
  /model <name>      request gemini, grok or mixed
  /login             sign in again
  /quit              exit
anything else is sent to the current chat`

type app struct {
	api   *client.Client
	mgr   *chat.Manager
	in    *bufio.Scanner
	out   io.Writer
	email string
}

func main() {
	_ = godotenv.Load()

	apiURL := flag.String("api", envOr("LAZYCOOK_API", "http://localhost:8080"), "API base URL")
	email := flag.String("email", os.Getenv("LAZYCOOK_EMAIL"), "account email")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		api:   client.New(*apiURL),
		in:    bufio.NewScanner(os.Stdin),
		out:   os.Stdout,
		email: *email,
	}
	if err := a.login(ctx); err != nil {
		log.Fatalf("login: %v", err)
	}
	a.run(ctx)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func (a *app) prompt(label string) (string, bool) {
	fmt.Fprint(a.out, label)
	if !a.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(a.in.Text()), true
}

func (a *app) login(ctx context.Context) error {
	email := a.email
	if email == "" {
		v, ok := a.prompt("email: ")
		if !ok {
			return io.EOF
		}
		email = v
	}
	password := os.Getenv("LAZYCOOK_PASSWORD")
	if password == "" {
		v, ok := a.prompt("password: ")
		if !ok {
			return io.EOF
		}
		password = v
	}

	prof, err := a.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	a.email = email
	if a.mgr == nil {
		// chats live for this terminal session only
		a.mgr = chat.NewManager(strconv.FormatUint(prof.UserID, 10), prof.Plan, a.api, chat.NewMemoryStore(),
			chat.WithContextWindow(envInt("CHAT_CONTEXT_WINDOW_SIZE", chat.DefaultContextWindow)))
	} else {
		a.mgr.SetPlan(prof.Plan)
	}
	fmt.Fprintf(a.out, "signed in as %s, plan %s, model %s\n", prof.Email, prof.Plan, prof.Model)
	return nil
}

func (a *app) run(ctx context.Context) {
	fmt.Fprintln(a.out, help)
	for ctx.Err() == nil {
		line, ok := a.prompt("> ")
		if !ok {
			return
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := a.command(ctx, line); quit {
				return
			}
			continue
		}
		a.send(ctx, line)
	}
}

func (a *app) command(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(a.out, help)
	case "/new":
		a.mgr.CreateChat()
		fmt.Fprintln(a.out, "new chat")
	case "/list":
		a.list()
	case "/select":
		a.selectChat(arg)
	case "/rename":
		if err := a.mgr.RenameChat(ctx, a.mgr.ActiveChatID(), arg); err != nil {
			fmt.Fprintf(a.out, "rename: %v\n", err)
		}
	case "/delete":
		id := a.mgr.ActiveChatID()
		if id == "" {
			fmt.Fprintln(a.out, "no chat selected")
			break
		}
		if _, err := a.mgr.DeleteChat(ctx, id); err != nil {
			fmt.Fprintf(a.out, "delete: %v\n", err)
		}
	case "/model":
		m, err := plan.ParseModel(arg)
		if err != nil {
			fmt.Fprintf(a.out, "unknown model %q\n", arg)
			break
		}
		a.mgr.SetModel(m)
		if d := plan.Authorize(a.mgr.Plan(), m); !d.Allowed {
			fmt.Fprintf(a.out, "note: %s\n", d.Reason)
		}
	case "/login":
		if err := a.login(ctx); err != nil {
			fmt.Fprintf(a.out, "login: %v\n", err)
		}
	default:
		fmt.Fprintf(a.out, "unknown command %s\n", cmd)
	}
	return false
}

func (a *app) list() {
	active := a.mgr.ActiveChatID()
	for i, c := range a.mgr.Chats() {
		mark := " "
		if c.ID == active {
			mark = "*"
		}
		fmt.Fprintf(a.out, "%s %d. %s (%d messages)\n", mark, i+1, c.Title, len(c.Messages))
	}
}

func (a *app) selectChat(arg string) {
	chats := a.mgr.Chats()
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(chats) {
		arg = chats[n-1].ID
	}
	a.mgr.SelectChat(arg)
	if c, err := a.mgr.Chat(a.mgr.ActiveChatID()); err == nil {
		fmt.Fprintf(a.out, "chat: %s\n", c.Title)
		for _, m := range c.Messages {
			fmt.Fprintf(a.out, "[%s] %s\n", m.Role, m.Content)
		}
	}
}

func (a *app) send(ctx context.Context, text string) {
	res := a.mgr.SendMessage(ctx, a.mgr.ActiveChatID(), text)
	if res == nil {
		return
	}
	fmt.Fprintf(a.out, "[%s] %s\n", a.mgr.Model(), res.Assistant.Content)
	if apperr.Is(res.Err, apperr.KindAuth) {
		fmt.Fprintln(a.out, "use /login to sign in again")
	}
}
