package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cms "github.com/waliasolutions/mindful-mindset-coaching-sub001"
	contentcmd "github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/commands/content"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/identity"
)

var moduleBuilder = func(cfg cms.Config) (*cms.Module, error) {
	return cms.New(cfg)
}

var configLoader = cms.ConfigFromEnv

const usage = `usage: sitecontent [serve|token|save|migrate-legacy] [flags]`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("sitecontent: %v", err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}
	switch command {
	case "serve":
		return runServe(ctx, args, out)
	case "token":
		return runToken(args, out)
	case "save":
		return runSave(ctx, args, out)
	case "migrate-legacy":
		return runMigrateLegacy(ctx, args, out)
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

func loadModule(envFile string) (cms.Config, *cms.Module, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := configLoader(files...)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	module, err := moduleBuilder(cfg)
	if err != nil {
		return cfg, nil, fmt.Errorf("bootstrap module: %w", err)
	}
	return cfg, module, nil
}

func runServe(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	envFile := fs.String("env", "", "Dotenv file to load (defaults to .env)")
	addr := fs.String("addr", "", "Listen address (overrides SITECONTENT_HTTP_ADDR)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, module, err := loadModule(*envFile)
	if err != nil {
		return err
	}
	defer module.Close()

	handler, err := module.Handler()
	if err != nil {
		return err
	}
	listen := cfg.HTTP.Addr
	if *addr != "" {
		listen = *addr
	}
	server := &http.Server{
		Addr:              listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	fmt.Fprintf(out, "sitecontent listening on %s (auth=%t)\n", listen, cfg.Features.Auth)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	envFile := fs.String("env", "", "Dotenv file to load (defaults to .env)")
	subject := fs.String("subject", "", "Editor subject, usually an email address")
	role := fs.String("role", "editor", "Role claim")
	ttl := fs.Duration("ttl", 0, "Token lifetime (defaults to SITECONTENT_JWT_TTL)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*subject) == "" {
		return fmt.Errorf("subject is required")
	}

	cfg, module, err := loadModule(*envFile)
	if err != nil {
		return err
	}
	defer module.Close()

	verifier := module.Container().Verifier()
	if verifier == nil {
		return fmt.Errorf("auth is disabled; set SITECONTENT_JWT_SECRET")
	}
	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.Auth.TokenTTL
	}
	token, err := verifier.Issue(*subject, *role, lifetime)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(out, token)
	return nil
}

func runSave(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("save", flag.ContinueOnError)
	envFile := fs.String("env", "", "Dotenv file to load (defaults to .env)")
	page := fs.String("page", "", "Page identifier")
	key := fs.String("key", "", "Content key")
	value := fs.String("value", "", "Field value")
	contentType := fs.String("type", "text", "Content type: text, rich_text or image")
	subject := fs.String("subject", "", "Editor subject recorded on the save")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*subject) == "" {
		return fmt.Errorf("subject is required")
	}

	_, module, err := loadModule(*envFile)
	if err != nil {
		return err
	}
	defer module.Close()

	cmd := contentcmd.SaveContentCommand{
		PageID:      *page,
		ContentKey:  *key,
		Value:       *value,
		ContentType: *contentType,
		ActorID:     identity.EditorUUID(*subject),
	}
	if err := module.Commands().Save.Execute(ctx, cmd); err != nil {
		return fmt.Errorf("save content: %w", err)
	}
	fmt.Fprintf(out, "saved %s/%s\n", cmd.PageID, cmd.ContentKey)
	return nil
}

func runMigrateLegacy(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate-legacy", flag.ContinueOnError)
	envFile := fs.String("env", "", "Dotenv file to load (defaults to .env)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, module, err := loadModule(*envFile)
	if err != nil {
		return err
	}
	defer module.Close()

	handler := module.Commands().MigrateLegacy
	if err := handler.Execute(ctx, contentcmd.MigrateLegacyCommand{}); err != nil {
		return fmt.Errorf("migrate legacy content: %w", err)
	}
	report := handler.Report()
	switch {
	case report.AlreadyCurrent:
		fmt.Fprintln(out, "legacy content already migrated")
	default:
		fmt.Fprintf(out, "migrated %d section(s), skipped %d\n", len(report.Migrated), len(report.Skipped))
	}
	return nil
}
