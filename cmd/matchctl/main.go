package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/matchmate/matchmate-go/internal/apiclient"
	"github.com/matchmate/matchmate-go/internal/config"
	"github.com/matchmate/matchmate-go/internal/model"
	"github.com/matchmate/matchmate-go/internal/tokenstore"
)

const usage = `usage: matchctl [-config file] [-server url] <command> [flags]

commands:
  register -email E -password P
  login -email E -password P
  logout
  me
  profile [-id N]
  update-profile [-name] [-gender] [-dob YYYY-MM-DD] [-city] [-religion]
                 [-mother-tongue] [-education] [-profession] [-bio]
                 [-interests a,b] [-languages a,b]
  upload FILE...
  delete-photo -id PHOTO_ID
  discover [-limit N]
  swipe -id N -dir like|pass
  matches
  shortlist list | add -id N | remove -id N
  common -id N
`

var errUsage = errors.New("invalid usage")

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

// realMain runs matchctl and returns the process exit code, so deferred
// cleanup finishes before the process exits.
func realMain(argv []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("matchctl", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "config file (default $HOME/.config/matchctl/config.yaml)")
	server := flags.String("server", "", "override API base URL, e.g. http://localhost:8080/api/v1")
	flags.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := flags.Parse(argv); err != nil {
		return 2
	}

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "Error: loading config:", err)
		return 1
	}
	if *server != "" {
		cfg.BaseURL = *server
	}

	logger := newLogger(cfg.LogLevel)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		fmt.Fprintln(stderr, "Error: opening token store:", err)
		return 1
	}
	defer closeStore()

	client := apiclient.New(apiclient.Options{
		BaseURL: cfg.BaseURL,
		Store:   store,
		Timeout: cfg.Timeout,
		Logger:  logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ok, err := run(ctx, client, flags.Args(), stdout)
	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(stderr, usage)
			return 2
		}
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	if !ok {
		return 1
	}
	return 0
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func openStore(cfg config.ClientConfig) (tokenstore.Store, func(), error) {
	switch cfg.TokenStore {
	case "redis":
		s, err := tokenstore.NewRedisStore(tokenstore.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Session:  cfg.Session,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "memory":
		return tokenstore.NewMemoryStore(tokenstore.Credentials{}), func() {}, nil
	case "file", "":
		return tokenstore.NewFileStore(cfg.TokenFile), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown token_store %q", cfg.TokenStore)
	}
}

// run executes one command and prints the resulting envelope to out. It
// reports whether the envelope was a success.
func run(ctx context.Context, c *apiclient.Client, args []string, out io.Writer) (bool, error) {
	if len(args) == 0 {
		return false, errUsage
	}
	cmd, args := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	switch cmd {
	case "register", "login":
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password")
		if err := parse(fs, args); err != nil {
			return false, err
		}
		if cmd == "register" {
			return printEnvelope(out, c.Register(ctx, model.CreateUserRequest{Email: *email, Password: *password}))
		}
		return printEnvelope(out, c.Login(ctx, model.LoginRequest{Email: *email, Password: *password}))

	case "logout":
		return printEnvelope(out, c.Logout(ctx))

	case "me":
		return printEnvelope(out, c.Me(ctx))

	case "profile":
		id := fs.Int64("id", 0, "member id (default: own profile)")
		if err := parse(fs, args); err != nil {
			return false, err
		}
		if *id > 0 {
			return printEnvelope(out, c.Profile(ctx, *id))
		}
		return printEnvelope(out, c.MyProfile(ctx))

	case "update-profile":
		req, err := parseProfileUpdate(fs, args)
		if err != nil {
			return false, err
		}
		return printEnvelope(out, c.UpdateProfile(ctx, req))

	case "upload":
		if err := parse(fs, args); err != nil {
			return false, err
		}
		files, err := readPhotos(fs.Args())
		if err != nil {
			return false, err
		}
		if len(files) == 1 {
			return printEnvelope(out, c.UploadPhoto(ctx, files[0].Filename, files[0].Data))
		}
		return printEnvelope(out, c.UploadPhotos(ctx, files...))

	case "delete-photo":
		id := fs.String("id", "", "photo id")
		if err := parse(fs, args); err != nil {
			return false, err
		}
		if *id == "" {
			return false, errUsage
		}
		return printEnvelope(out, c.DeletePhoto(ctx, *id))

	case "discover":
		limit := fs.Int("limit", 0, "number of profiles (1-50)")
		if err := parse(fs, args); err != nil {
			return false, err
		}
		return printEnvelope(out, c.Discover(ctx, *limit))

	case "swipe":
		id := fs.Int64("id", 0, "member id")
		dir := fs.String("dir", model.SwipeLike, "like or pass")
		if err := parse(fs, args); err != nil {
			return false, err
		}
		return printEnvelope(out, c.Swipe(ctx, model.SwipeRequest{TargetID: *id, Direction: *dir}))

	case "matches":
		return printEnvelope(out, c.Matches(ctx))

	case "shortlist":
		return runShortlist(ctx, c, fs, args, out)

	case "common":
		id := fs.Int64("id", 0, "member id")
		if err := parse(fs, args); err != nil {
			return false, err
		}
		return printEnvelope(out, c.CommonInterests(ctx, *id))

	default:
		return false, errUsage
	}
}

func runShortlist(ctx context.Context, c *apiclient.Client, fs *flag.FlagSet, args []string, out io.Writer) (bool, error) {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	id := fs.Int64("id", 0, "member id")
	if err := parse(fs, args); err != nil {
		return false, err
	}

	switch sub {
	case "list":
		return printEnvelope(out, c.Shortlist(ctx))
	case "add":
		return printEnvelope(out, c.AddToShortlist(ctx, *id))
	case "remove":
		return printEnvelope(out, c.RemoveFromShortlist(ctx, *id))
	default:
		return false, errUsage
	}
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

// parseProfileUpdate builds a partial update from the flags actually given.
func parseProfileUpdate(fs *flag.FlagSet, args []string) (model.ProfileUpdateRequest, error) {
	strFlags := map[string]*string{
		"name":          fs.String("name", "", "display name"),
		"gender":        fs.String("gender", "", "male, female or other"),
		"dob":           fs.String("dob", "", "date of birth, YYYY-MM-DD"),
		"city":          fs.String("city", "", "city"),
		"religion":      fs.String("religion", "", "religion"),
		"mother-tongue": fs.String("mother-tongue", "", "mother tongue"),
		"education":     fs.String("education", "", "education"),
		"profession":    fs.String("profession", "", "profession"),
		"bio":           fs.String("bio", "", "bio"),
	}
	interests := fs.String("interests", "", "comma separated interests")
	languages := fs.String("languages", "", "comma separated languages")

	if err := parse(fs, args); err != nil {
		return model.ProfileUpdateRequest{}, err
	}

	var req model.ProfileUpdateRequest
	fields := map[string]**string{
		"name":          &req.DisplayName,
		"gender":        &req.Gender,
		"dob":           &req.DateOfBirth,
		"city":          &req.City,
		"religion":      &req.Religion,
		"mother-tongue": &req.MotherTongue,
		"education":     &req.Education,
		"profession":    &req.Profession,
		"bio":           &req.Bio,
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "interests":
			list := splitList(*interests)
			req.Interests = &list
		case "languages":
			list := splitList(*languages)
			req.Languages = &list
		default:
			*fields[f.Name] = strFlags[f.Name]
		}
	})

	return req, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func readPhotos(paths []string) ([]apiclient.FormFile, error) {
	if len(paths) == 0 {
		return nil, errUsage
	}
	files := make([]apiclient.FormFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, apiclient.FormFile{Filename: filepath.Base(p), Data: data})
	}
	return files, nil
}

func printEnvelope[T any](out io.Writer, resp model.APIResponse[T]) (bool, error) {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}
