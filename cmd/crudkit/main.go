package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-crudkit"
	"github.com/goliatone/go-crudkit/pkg/auth"
	"github.com/goliatone/go-crudkit/pkg/form"
	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/notify"
	"github.com/goliatone/go-crudkit/pkg/renderers/tui"
	"github.com/goliatone/go-crudkit/pkg/schema"
	"github.com/goliatone/go-crudkit/pkg/store"
)

const usage = `Usage: %s <command> [flags]

Commands:
  lint     check schema sources
  user     create an account in the configured store
  import   load a JSON array of records into a collection
  new      fill a record from the terminal and print or post it

Run "%s <command> -h" for the flags of a command.
`

func main() {
	name := filepath.Base(os.Args[0])
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, name, name)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "lint":
		err = lint(ctx, args)
	case "user":
		err = createUser(ctx, args)
	case "import":
		err = importRecords(ctx, args)
	case "new":
		err = newRecord(ctx, args)
	case "-h", "-help", "--help", "help":
		fmt.Fprintf(os.Stdout, usage, name, name)
		return
	default:
		fmt.Fprintf(os.Stderr, usage, name, name)
		os.Exit(2)
	}
	if errors.Is(err, tui.ErrAborted) {
		os.Exit(130)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s: %v\n", name, os.Args[1], err)
		os.Exit(1)
	}
}

// env is the configuration shared by the commands that touch the store.
type env struct {
	cfg    crudkit.Config
	logger *zap.SugaredLogger
	docs   store.Store
}

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", os.Getenv("CRUDKIT_CONFIG"), "configuration file (YAML)")
}

func openEnv(ctx context.Context, configPath string) (*env, error) {
	cfg, err := crudkit.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := crudkit.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	docs, err := crudkit.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Driver == "memory" {
		logger.Warnw("the memory store is discarded when the command exits")
	}
	return &env{cfg: cfg, logger: logger, docs: docs}, nil
}

func (e *env) close() {
	_ = e.docs.Close()
	_ = e.logger.Sync()
}

func (e *env) schema(ctx context.Context, name string) (model.Schema, error) {
	schemas, err := crudkit.LoadSchemas(ctx, e.cfg.Schemas)
	if err != nil {
		return model.Schema{}, err
	}
	return findSchema(schemas, name)
}

func findSchema(schemas []model.Schema, name string) (model.Schema, error) {
	names := make([]string, 0, len(schemas))
	for _, s := range schemas {
		if s.Name == name {
			return s, nil
		}
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return model.Schema{}, fmt.Errorf("unknown collection %q (have %s)", name, strings.Join(names, ", "))
}

func lint(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lint", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: lint [paths or URLs...]\n\nDecode schema sources and report invalid descriptors.\n")
	}
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("no sources given")
	}

	loader := schema.NewLoader(schema.WithHTTP(crudkit.SchemaFetchTimeout))
	failed := 0
	for _, ref := range fs.Args() {
		src, err := schema.Parse(ref)
		if err == nil {
			var schemas []model.Schema
			schemas, err = loader.Schemas(ctx, src)
			if err == nil {
				names := make([]string, len(schemas))
				for i, s := range schemas {
					names[i] = fmt.Sprintf("%s (%d fields)", s.Name, len(s.Fields))
				}
				fmt.Printf("%s: ok: %s\n", ref, strings.Join(names, ", "))
				continue
			}
		}
		failed++
		fmt.Fprintf(os.Stderr, "%s: %v\n", ref, err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, fs.NArg())
	}
	return nil
}

func createUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("user", flag.ExitOnError)
	configPath := configFlag(fs)
	email := fs.String("email", "", "account email (prompted when empty)")
	admin := fs.Bool("admin", false, "grant the admin role")
	_ = fs.Parse(args)

	e, err := openEnv(ctx, *configPath)
	if err != nil {
		return err
	}
	defer e.close()

	driver := tui.NewSurveyDriver(os.Stdout)
	if *email == "" {
		*email, err = driver.Input(ctx, tui.InputConfig{
			Message: "Email",
			Validator: func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("required")
				}
				return nil
			},
		})
		if err != nil {
			return err
		}
	}

	password, err := askPassword(ctx, driver)
	if err != nil {
		return err
	}

	_, user, err := auth.NewLocal(e.docs, auth.WithLogger(e.logger)).SignUp(ctx, *email, password)
	if err != nil {
		return err
	}
	if *admin {
		if err := e.docs.Update(ctx, auth.UserMetasCollection, user.UID, model.Record{"role": string(auth.RoleAdmin)}); err != nil {
			return fmt.Errorf("grant admin: %w", err)
		}
	}
	fmt.Printf("created %s (%s)\n", user.Email, user.UID)
	return nil
}

const generatedPasswordLength = 16

// askPassword offers a generated password before asking for one.
func askPassword(ctx context.Context, driver tui.PromptDriver) (string, error) {
	generate, err := driver.Confirm(ctx, tui.ConfirmConfig{Message: "Generate a password?", Default: true})
	if err != nil {
		return "", err
	}
	if generate {
		password, err := auth.GeneratePassword(generatedPasswordLength)
		if err != nil {
			return "", err
		}
		if err := driver.Info(ctx, "Password: "+password); err != nil {
			return "", err
		}
		return password, nil
	}
	return driver.Password(ctx, tui.InputConfig{
		Message: "Password",
		Validator: func(s string) error {
			var missing []string
			for _, req := range auth.Check(s) {
				if !req.Meets {
					missing = append(missing, strings.ToLower(req.Label))
				}
			}
			if len(s) < auth.MinPasswordLength {
				missing = append(missing, fmt.Sprintf("at least %d characters", auth.MinPasswordLength))
			}
			if len(missing) > 0 {
				return errors.New("password needs: " + strings.Join(missing, ", "))
			}
			return nil
		},
	})
}

func importRecords(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := configFlag(fs)
	collection := fs.String("collection", "", "target collection")
	_ = fs.Parse(args)
	if *collection == "" || fs.NArg() != 1 {
		return errors.New("usage: import -collection <name> <file.json>")
	}

	e, err := openEnv(ctx, *configPath)
	if err != nil {
		return err
	}
	defer e.close()

	s, err := e.schema(ctx, *collection)
	if err != nil {
		return err
	}
	records, err := readRecords(fs.Arg(0))
	if err != nil {
		return err
	}

	valid := make([]model.Record, 0, len(records))
	for i, rec := range records {
		delete(rec, s.IDKey())
		if errs := form.New(s.Fields, rec).Validate(); len(errs) > 0 {
			e.logger.Warnw("skipping invalid record", "index", i, "errors", errs)
			continue
		}
		valid = append(valid, rec)
	}

	docs := store.NewCollection(e.docs, s.Name, store.WithNotifier(notify.NewLogger(e.logger)), store.WithLogger(e.logger))
	ids, err := docs.AddMany(ctx, valid, fmt.Sprintf("imported %d records into %s", len(valid), s.Name))
	fmt.Printf("imported %d of %d records\n", len(ids), len(records))
	return err
}

func readRecords(path string) ([]model.Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []model.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%s: expected a JSON array of objects: %w", path, err)
	}
	return records, nil
}

func newRecord(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	configPath := configFlag(fs)
	collection := fs.String("collection", "", "collection whose form is filled")
	format := fs.String("format", string(tui.OutputFormatJSON), "output format: json, form or pretty")
	server := fs.String("server", "", "post the record to this crudkit server instead of printing it")
	token := fs.String("token", os.Getenv("CRUDKIT_TOKEN"), "session token for -server")
	_ = fs.Parse(args)
	if *collection == "" {
		return errors.New("usage: new -collection <name> [-server URL -token T]")
	}

	cfg, err := crudkit.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	schemas, err := crudkit.LoadSchemas(ctx, cfg.Schemas)
	if err != nil {
		return err
	}
	s, err := findSchema(schemas, *collection)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 15 * time.Second}
	opts := []tui.Option{tui.WithOutputFormat(tui.OutputFormat(*format))}
	if *server != "" {
		opts = append(opts, tui.WithRemoteOptions(client, *server, *token))
	}
	p := tui.New(opts...)

	record, err := p.Fill(ctx, form.New(s.Fields, nil))
	if err != nil {
		return err
	}
	if *server == "" {
		out, err := p.Encode(record)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stdout, string(out))
		return err
	}
	return post(ctx, client, strings.TrimRight(*server, "/")+"/api/collections/"+s.Name+"/items", *token, record)
}

func post(ctx context.Context, client *http.Client, target, token string, record model.Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("server answered %s: %s", resp.Status, strings.TrimSpace(string(reply)))
	}
	fmt.Println(strings.TrimSpace(string(reply)))
	return nil
}
