// Command vaultctl administers the admin-vault credential store from the
// terminal: bootstrap the first admin, manage accounts, and inspect the
// audit log. It is a thin host around the service layer; all validation
// and invariants live there, vaultctl only formats the outcomes.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/arsen085/admin-vault/internal/audit"
	"github.com/arsen085/admin-vault/internal/config"
	"github.com/arsen085/admin-vault/internal/crypto"
	"github.com/arsen085/admin-vault/internal/limiter"
	"github.com/arsen085/admin-vault/internal/migrate"
	"github.com/arsen085/admin-vault/internal/model"
	"github.com/arsen085/admin-vault/internal/service"
	"github.com/arsen085/admin-vault/internal/storage"
	filestore "github.com/arsen085/admin-vault/internal/storage/file"
	"github.com/arsen085/admin-vault/internal/storage/memory"
	pgstore "github.com/arsen085/admin-vault/internal/storage/postgres"
)

var version = "dev"

func usage() {
	fmt.Fprintf(os.Stderr, `vaultctl %s — local admin credential vault

Usage: vaultctl <command> [flags]

Commands:
  init        create the first super_admin on an empty vault
  login       authenticate and persist a session
  logout      end the current session
  whoami      show the authenticated user
  list        list accounts (without hashes)
  add-user    create an account (requires the wildcard permission)
  del-user    delete an account by id
  set-role    change an account's role
  passwd      change your own password
  audit       print the audit log

Config file path comes from $VAULT_CONFIG; settings also read from
VAULT_* environment variables.
`, version)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg := config.MustLoad(os.Getenv("VAULT_CONFIG"))
	ctx := context.Background()

	kv, closeKV, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer closeKV()

	engine := crypto.New(cfg.Security.PBKDF2Iterations)
	store := service.NewUserStore(kv, engine, logger)
	store.Load(ctx)
	aud := audit.New(kv, logger, cfg.Security.AuditCap)
	lim := limiter.NewMemory(cfg.Security.LockoutMaxFailures, cfg.Security.LockoutCooldown)

	var signingKey []byte
	if cfg.Session.SigningKey != "" {
		signingKey = []byte(cfg.Session.SigningKey)
	}
	mgr := service.NewSessionManager(store, kv, engine, aud, lim, logger, service.SessionConfig{
		MaxAge:     cfg.Session.MaxAge,
		SigningKey: signingKey,
	})
	mgr.Restore(ctx)

	cmd, args := os.Args[1], os.Args[2:]
	if err := dispatch(ctx, cmd, args, mgr, aud); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, cmd string, args []string, mgr *service.SessionManager, aud *audit.Log) error {
	switch cmd {
	case "init":
		return cmdInit(ctx, args, mgr)
	case "login":
		return cmdLogin(ctx, args, mgr)
	case "logout":
		mgr.Logout(ctx)
		fmt.Println("logged out")
		return nil
	case "whoami":
		return cmdWhoami(mgr)
	case "list":
		return cmdList(mgr)
	case "add-user":
		return cmdAddUser(ctx, args, mgr)
	case "del-user":
		return cmdDelUser(ctx, args, mgr)
	case "set-role":
		return cmdSetRole(ctx, args, mgr)
	case "passwd":
		return cmdPasswd(ctx, mgr)
	case "audit":
		return cmdAudit(ctx, aud)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.KV, func(), error) {
	switch cfg.Storage.Backend {
	case "file", "":
		path := cfg.Storage.Path
		if path == "" {
			path = config.DefaultStorePath()
		}
		s, err := filestore.New(path)
		return s, func() {}, err
	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return nil, nil, errors.New("postgres backend needs VAULT_POSTGRES_DSN")
		}
		if err := migrate.Up(ctx, cfg.Storage.PostgresDSN); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		s, err := pgstore.New(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "memory":
		return memory.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func cmdInit(ctx context.Context, args []string, mgr *service.SessionManager) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	username := fs.String("username", "", "admin username")
	email := fs.String("email", "", "admin email")
	_ = fs.Parse(args)

	pw, err := promptNewPassword()
	if err != nil {
		return err
	}
	if !mgr.InitializeAdmin(ctx, *username, *email, pw) {
		return errors.New("init failed: vault not empty, blank username/email, or password under 8 characters")
	}
	fmt.Printf("created super_admin %q\n", strings.TrimSpace(*username))
	return nil
}

func cmdLogin(ctx context.Context, args []string, mgr *service.SessionManager) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("username", "", "username")
	_ = fs.Parse(args)

	pw, err := readSecret("Password: ")
	if err != nil {
		return err
	}
	if !mgr.Login(ctx, *username, pw) {
		return errors.New("login failed")
	}
	cur := mgr.Current()
	fmt.Printf("logged in as %s (%s)\n", cur.Username, cur.Role)
	return nil
}

func cmdWhoami(mgr *service.SessionManager) error {
	cur := mgr.Current()
	if cur == nil {
		fmt.Println("not authenticated")
		return nil
	}
	fmt.Printf("%s <%s> role=%s id=%s\n", cur.Username, cur.Email, cur.Role, cur.ID)
	return nil
}

func cmdList(mgr *service.SessionManager) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLE\tCREATED\tLAST ACTIVE")
	for _, u := range mgr.GetAllUsers() {
		last := "-"
		if !u.LastActive.IsZero() {
			last = u.LastActive.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			u.ID, u.Username, u.Email, u.Role, u.CreatedAt.Format("2006-01-02"), last)
	}
	return w.Flush()
}

func cmdAddUser(ctx context.Context, args []string, mgr *service.SessionManager) error {
	fs := flag.NewFlagSet("add-user", flag.ExitOnError)
	username := fs.String("username", "", "username")
	email := fs.String("email", "", "email")
	roleStr := fs.String("role", "viewer", "role: super_admin|editor|smm|viewer")
	_ = fs.Parse(args)

	if err := requireWildcard(mgr); err != nil {
		return err
	}
	role, err := parseRoleArg(*roleStr)
	if err != nil {
		return err
	}
	pw, err := promptNewPassword()
	if err != nil {
		return err
	}
	if !mgr.AddUser(ctx, *username, *email, pw, role) {
		return errors.New("add-user failed: duplicate username/email or password under 8 characters")
	}
	fmt.Printf("created %s %q\n", role, strings.TrimSpace(*username))
	return nil
}

func cmdDelUser(ctx context.Context, args []string, mgr *service.SessionManager) error {
	fs := flag.NewFlagSet("del-user", flag.ExitOnError)
	id := fs.String("id", "", "user id")
	_ = fs.Parse(args)

	if err := requireWildcard(mgr); err != nil {
		return err
	}
	// Destructive: reauthenticate before proceeding.
	pw, err := readSecret("Confirm your password: ")
	if err != nil {
		return err
	}
	if !mgr.VerifyCurrentPassword(ctx, pw) {
		return errors.New("password verification failed")
	}
	if !mgr.DeleteUser(ctx, *id) {
		return errors.New("del-user failed: unknown id, your own account, or the last super_admin")
	}
	fmt.Printf("deleted %s\n", *id)
	return nil
}

func cmdSetRole(ctx context.Context, args []string, mgr *service.SessionManager) error {
	fs := flag.NewFlagSet("set-role", flag.ExitOnError)
	id := fs.String("id", "", "user id")
	roleStr := fs.String("role", "", "role: super_admin|editor|smm|viewer")
	_ = fs.Parse(args)

	if err := requireWildcard(mgr); err != nil {
		return err
	}
	role, err := parseRoleArg(*roleStr)
	if err != nil {
		return err
	}
	if !mgr.UpdateUserRole(ctx, *id, role) {
		return errors.New("set-role failed: unknown id or demoting the last super_admin")
	}
	fmt.Printf("set role of %s to %s\n", *id, role)
	return nil
}

func cmdPasswd(ctx context.Context, mgr *service.SessionManager) error {
	cur := mgr.Current()
	if cur == nil {
		return errors.New("not authenticated")
	}
	old, err := readSecret("Current password: ")
	if err != nil {
		return err
	}
	pw, err := promptNewPassword()
	if err != nil {
		return err
	}
	if !mgr.ChangePassword(ctx, cur.ID, old, pw) {
		return errors.New("passwd failed: wrong current password or new password under 8 characters")
	}
	fmt.Println("password changed")
	return nil
}

func cmdAudit(ctx context.Context, aud *audit.Log) error {
	entries := aud.Entries(ctx)
	if len(entries) == 0 {
		fmt.Println("audit log is empty")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tUSER\tACTION\tTARGET")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Username, e.Action, e.Target)
	}
	return w.Flush()
}

func requireWildcard(mgr *service.SessionManager) error {
	if mgr.Current() == nil {
		return errors.New("not authenticated (run: vaultctl login)")
	}
	if !mgr.HasPermission(model.PermAll) {
		return errors.New("permission denied: requires super_admin")
	}
	return nil
}

func parseRoleArg(s string) (model.Role, error) {
	switch model.Role(strings.TrimSpace(s)) {
	case model.RoleSuperAdmin, model.RoleEditor, model.RoleSMM, model.RoleViewer:
		return model.Role(strings.TrimSpace(s)), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// promptNewPassword asks for a password twice and insists they match.
func promptNewPassword() (string, error) {
	pw, err := readSecret("New password: ")
	if err != nil {
		return "", err
	}
	again, err := readSecret("Repeat password: ")
	if err != nil {
		return "", err
	}
	if pw != again {
		return "", errors.New("passwords do not match")
	}
	return pw, nil
}

// readSecret reads without echo on a terminal, and falls back to a plain
// line read when stdin is a pipe (scripts, tests).
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	r := bufio.NewReader(os.Stdin)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
