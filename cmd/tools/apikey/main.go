// Package main implements the apikey CLI for minting and revoking the bearer
// keys that authenticate calls to the campaign API.
//
// Usage:
//
//	go run ./cmd/tools/apikey create --company=comp_123 --name="Dashboard"
//	go run ./cmd/tools/apikey create --system --name="EventBridge cron" --ttl=2160h
//	go run ./cmd/tools/apikey revoke --id=<key id>
//
// The plaintext key is printed once on stdout and never stored; only its
// bcrypt hash reaches the api_keys table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"wacrm/internal/auth"
	"wacrm/internal/config"
	"wacrm/internal/db"
	"wacrm/internal/types"
)

type keyStore interface {
	Create(ctx context.Context, k *types.APIKey) error
	Revoke(ctx context.Context, id string, at time.Time) error
}

type createOptions struct {
	CompanyID string
	Name      string
	Source    string
	Env       string
	System    bool
	TTL       time.Duration
}

func parseCreate(args []string, stderr io.Writer) (createOptions, error) {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o createOptions
	fs.StringVar(&o.CompanyID, "company", "", "Company the key belongs to (required unless --system)")
	fs.StringVar(&o.Name, "name", "", "Human-readable key name")
	fs.StringVar(&o.Source, "source", "", "Request origin recorded on the actor (e.g. dashboard, cron)")
	fs.StringVar(&o.Env, "env", "live", "Key environment embedded in the token (live, test)")
	fs.BoolVar(&o.System, "system", false, "Mint a system key for internal callers")
	fs.DurationVar(&o.TTL, "ttl", 0, "Key lifetime; 0 never expires")

	if err := fs.Parse(args); err != nil {
		return createOptions{}, err
	}
	if o.Name == "" {
		return createOptions{}, errors.New("--name is required")
	}
	if !o.System && o.CompanyID == "" {
		return createOptions{}, errors.New("--company is required for tenant keys")
	}
	if o.TTL < 0 {
		return createOptions{}, errors.New("--ttl must not be negative")
	}
	return o, nil
}

// createKey mints and stores a key, returning the stored record and the
// plaintext token.
func createKey(ctx context.Context, store keyStore, hasher auth.KeyHasher, o createOptions, now time.Time) (*types.APIKey, string, error) {
	gen, err := auth.GenerateKey(hasher, o.Env)
	if err != nil {
		return nil, "", err
	}

	k := &types.APIKey{
		ID:        uuid.New().String(),
		CompanyID: o.CompanyID,
		KeyHash:   gen.Hash,
		KeyPrefix: gen.Prefix,
		Name:      o.Name,
		Source:    o.Source,
		IsSystem:  o.System,
		CreatedAt: now,
	}
	if o.TTL > 0 {
		exp := now.Add(o.TTL)
		k.ExpiresAt = &exp
	}

	if err := store.Create(ctx, k); err != nil {
		return nil, "", err
	}
	return k, gen.Plaintext, nil
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: apikey <create|revoke> [flags]\n")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "no .env file loaded: %v\n", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	var (
		create createOptions
		revoke string
		err    error
	)
	switch cmd {
	case "create":
		create, err = parseCreate(args, os.Stderr)
	case "revoke":
		fs := flag.NewFlagSet("revoke", flag.ContinueOnError)
		fs.StringVar(&revoke, "id", "", "Key id to revoke")
		err = fs.Parse(args)
		if err == nil && revoke == "" {
			err = errors.New("--id is required")
		}
	default:
		usage(os.Stderr)
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	store := db.NewAPIKeyRepository(pool)
	now := time.Now().UTC()

	if cmd == "revoke" {
		if err := store.Revoke(ctx, revoke, now); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "revoked %s\n", revoke)
		return nil
	}

	k, plaintext, err := createKey(ctx, store, auth.BcryptHasher(), create, now)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "created key %s (prefix %s); store it now, it is not shown again\n", k.ID, k.KeyPrefix)
	fmt.Fprintln(os.Stdout, plaintext)
	return nil
}
