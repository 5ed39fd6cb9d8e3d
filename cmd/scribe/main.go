package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/scribehub/api/pkg/scribe"
)

const usage = `Usage: scribe <command> [flags]

Commands:
  register   create an account
  login      log in and save the token
  upload     upload an MP3 and wait for its transcription
  list       list completed recordings
  get        show one recording
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "register":
		err = runRegister(ctx, args)
	case "login":
		err = runLogin(ctx, args)
	case "upload":
		err = runUpload(ctx, args)
	case "list":
		err = runList(ctx, args)
	case "get":
		err = runGet(ctx, args)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	server    string
	token     string
	tokenFile string
}

func newFlagSet(name string) (*flag.FlagSet, *globalFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	g := &globalFlags{}
	fs.StringVar(&g.server, "server", envOr("SCRIBE_SERVER", "http://localhost:5000"), "API base URL")
	fs.StringVar(&g.token, "token", os.Getenv("SCRIBE_TOKEN"), "bearer token (defaults to the saved token)")
	fs.StringVar(&g.tokenFile, "token-file", defaultTokenFile(), "where login saves the token")
	return fs, g
}

func (g *globalFlags) client() *scribe.Client {
	token := g.token
	if token == "" {
		if raw, err := os.ReadFile(g.tokenFile); err == nil {
			token = strings.TrimSpace(string(raw))
		}
	}
	return scribe.NewClient(g.server, scribe.WithToken(token))
}

func runRegister(ctx context.Context, args []string) error {
	fs, g := newFlagSet("register")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	confirm := fs.String("confirm", "", "repeat the password (defaults to --password)")
	fs.Parse(args)

	if *confirm == "" {
		*confirm = *password
	}
	msg, err := g.client().Register(ctx, *email, *password, *confirm)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func runLogin(ctx context.Context, args []string) error {
	fs, g := newFlagSet("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(args)

	token, err := g.client().Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(g.tokenFile), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(g.tokenFile, []byte(token+"\n"), 0o600); err != nil {
		return err
	}
	fmt.Printf("Logged in, token saved to %s\n", g.tokenFile)
	return nil
}

func runUpload(ctx context.Context, args []string) error {
	fs, g := newFlagSet("upload")
	interval := fs.Duration("interval", scribe.DefaultPollInterval, "status poll interval")
	contentType := fs.String("content-type", "", "override the file's content type")
	noWait := fs.Bool("no-wait", false, "return after the upload is accepted")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("upload needs exactly one file")
	}
	path := fs.Arg(0)
	if *contentType == "" {
		*contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	}
	if *contentType == "" && strings.EqualFold(filepath.Ext(path), ".mp3") {
		*contentType = "audio/mpeg"
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	session := scribe.NewSession(g.client())
	session.Interval = *interval
	session.OnStateChange = func(state scribe.State, rec *scribe.Recording) {
		if rec != nil {
			fmt.Fprintf(os.Stderr, "[%s] %s %s\n", time.Now().Format("15:04:05"), state, rec.ID)
			return
		}
		fmt.Fprintf(os.Stderr, "[%s] %s\n", time.Now().Format("15:04:05"), state)
	}
	session.OnPollError = func(err error) {
		fmt.Fprintf(os.Stderr, "poll failed, retrying: %v\n", err)
	}

	rec, err := session.Upload(ctx, filepath.Base(path), *contentType, f)
	if err != nil {
		return err
	}
	if *noWait {
		return printJSON(rec)
	}

	rec, err = session.Wait(ctx)
	if err != nil {
		return err
	}
	if err := printJSON(rec); err != nil {
		return err
	}
	if rec.Status == scribe.StatusFailed {
		return errors.New("transcription failed")
	}
	return nil
}

func runList(ctx context.Context, args []string) error {
	fs, g := newFlagSet("list")
	limit := fs.Int("limit", 0, "page size (server default when 0)")
	cursor := fs.String("cursor", "", "continue after this recording id")
	all := fs.Bool("all", false, "follow every page")
	fs.Parse(args)

	c := g.client()
	if *all {
		items, err := c.ListAll(ctx, *limit)
		if err != nil {
			return err
		}
		return printJSON(items)
	}

	page, err := c.List(ctx, *limit, *cursor)
	if err != nil {
		return err
	}
	return printJSON(page)
}

func runGet(ctx context.Context, args []string) error {
	fs, g := newFlagSet("get")
	statusOnly := fs.Bool("status", false, "only print the status")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("get needs a recording id")
	}

	c := g.client()
	if *statusOnly {
		status, err := c.Status(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		return printJSON(status)
	}

	rec, err := c.Recording(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scribe-token"
	}
	return filepath.Join(home, ".scribe", "token")
}
