package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/AlibekovAA/panel-auth/internal/auth/service"
	"github.com/AlibekovAA/panel-auth/internal/common/bootstrap"
	"github.com/AlibekovAA/panel-auth/internal/common/config"
	"github.com/AlibekovAA/panel-auth/internal/common/logger"
)

const usage = `usage: authctl <command> [flags]

commands:
  migrate [-status]                 apply schema migrations or print their status
  cleanup                           delete expired and revoked renewal tokens once
  create-user -email E -name N -role R [-org-unit U] [-regions a,b]
                                    create a user, prompting for the password
  revoke-all -subject ID            revoke every renewal token of a user
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	log, err := bootstrap.InitializeLogger("authctl")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	cfg, err := config.LoadAuthConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.SetLevel(cfg.LogLevel)

	if err := run(context.Background(), cfg, log, os.Args[1], os.Args[2:], os.Stdin, os.Stdout); err != nil {
		log.Errorf("authctl %s failed: %v", os.Args[1], err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.AuthConfig, log *logger.Logger, cmd string, args []string, in *os.File, out io.Writer) error {
	switch cmd {
	case "migrate":
		return runMigrate(ctx, cfg, log, args)
	case "cleanup":
		return runCleanup(ctx, cfg, log, out)
	case "create-user":
		return runCreateUser(ctx, cfg, log, args, in, out)
	case "revoke-all":
		return runRevokeAll(ctx, cfg, log, args, out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runMigrate(ctx context.Context, cfg config.AuthConfig, log *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	status := fs.Bool("status", false, "print migration status instead of applying")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if *status {
		return store.MigrationStatus(ctx, log)
	}
	return store.Migrate(ctx, log)
}

func runCleanup(ctx context.Context, cfg config.AuthConfig, log *logger.Logger, out io.Writer) error {
	app, err := bootstrap.NewAuthApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.Cleanup.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %d renewal tokens, purged %d revocations\n",
		result.RenewalTokensDeleted, result.RevocationsPurged)
	return nil
}

func runCreateUser(ctx context.Context, cfg config.AuthConfig, log *logger.Logger, args []string, in *os.File, out io.Writer) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	email := fs.String("email", "", "user email")
	name := fs.String("name", "", "display name")
	role := fs.String("role", "", "ADMIN, DIRETOR, ADJUNTO or GERENTE DE PROJETO")
	orgUnit := fs.String("org-unit", "", "organizational unit")
	regions := fs.String("regions", "", "comma separated regions")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password, err := readPassword(in, out)
	if err != nil {
		return err
	}

	app, err := bootstrap.NewAuthApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	user, err := app.Service.CreateUser(ctx, service.CreateUserInput{
		Email:    *email,
		Name:     *name,
		Password: password,
		Role:     *role,
		OrgUnit:  *orgUnit,
		Regions:  splitList(*regions),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created user %s (%s, %s)\n", user.ID, user.Email, user.Role)
	return nil
}

func runRevokeAll(ctx context.Context, cfg config.AuthConfig, log *logger.Logger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("revoke-all", flag.ContinueOnError)
	subject := fs.String("subject", "", "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return errors.New("-subject is required")
	}

	app, err := bootstrap.NewAuthApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	count, err := app.Renewal.RevokeAllForSubject(ctx, *subject)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "revoked %d renewal tokens for %s\n", count, *subject)
	return nil
}

// readPassword prompts twice on a terminal; piped input is read as a single
// line.
func readPassword(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(out, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Fprint(out, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
