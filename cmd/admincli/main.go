// Command admincli is an operator tool for a single tenant store: it can
// create an account, verify it with a code, and test a login. The password is
// read from the terminal without echo.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/term"

	"github.com/dmitrijs2005/tenantvault/internal/common"
	"github.com/dmitrijs2005/tenantvault/internal/logging"
	"github.com/dmitrijs2005/tenantvault/internal/server/accounts"
	"github.com/dmitrijs2005/tenantvault/internal/server/auth"
	"github.com/dmitrijs2005/tenantvault/internal/server/registry"
	"github.com/dmitrijs2005/tenantvault/internal/server/tenants"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func getPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

func main() {
	var (
		dsn       = flag.String("d", "", "tenant store DSN (required)")
		slug      = flag.String("tenant", "default", "tenant slug, used for logging only")
		op        = flag.String("op", "", "operation: create | verify | login")
		email     = flag.String("email", "", "account email")
		firstname = flag.String("firstname", "", "first name (create)")
		lastname  = flag.String("lastname", "", "last name (create)")
		role      = flag.String("role", "", "role (create), defaults to user")
		code      = flag.String("code", "", "verification code (verify)")
		secret    = flag.String("s", "secretKey", "JWT secret (login)")
	)
	flag.Parse()

	if *dsn == "" || *op == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*dsn, *slug, *op, *email, *firstname, *lastname, *role, *code, *secret); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(dsn, slug, op, email, firstname, lastname, role, code, secret string) error {
	ctx := context.Background()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	handle := tenants.NewHandle(tenants.Tenant{ID: uuid.New(), Slug: slug, StoreDSN: dsn}, db)

	cfg := accounts.DefaultSecurityConfig()
	st, err := accounts.Attach(ctx, registry.New(logger), handle, cfg, logger)
	if err != nil {
		return err
	}
	svc := accounts.NewService(st, accounts.RegisterRules(), auth.NewIssuer(secret, 24*time.Hour), cfg, logger)

	switch op {
	case "create":
		password, err := getPassword("Enter password: ")
		if err != nil {
			return err
		}
		a, verifyCode, err := svc.Register(ctx, accounts.RegisterInput{
			Email:     email,
			Password:  password,
			FirstName: firstname,
			LastName:  lastname,
			Role:      accounts.Role(role),
		})
		if err != nil {
			return err
		}
		fmt.Printf("created account %s (%s)\nverification code: %s\n", a.ID, a.Email, verifyCode)
		return nil

	case "verify":
		a, err := svc.FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		if a == nil {
			return common.ErrNotFound
		}
		if _, err := svc.VerifyAccount(ctx, a.ID, code); err != nil {
			return err
		}
		fmt.Printf("account %s verified\n", a.Email)
		return nil

	case "login":
		password, err := getPassword("Enter password: ")
		if err != nil {
			return err
		}
		token, a, err := svc.Login(ctx, email, password)
		if err != nil {
			return err
		}
		fmt.Printf("login ok for %s\ntoken: %s\n", a.Email, token)
		return nil

	default:
		return fmt.Errorf("%w: unknown operation %q", common.ErrInvalidInput, op)
	}
}
