package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bennydictor/visualmath/internal/app"
	"github.com/bennydictor/visualmath/internal/auth"
	"github.com/bennydictor/visualmath/internal/config"
	"github.com/bennydictor/visualmath/internal/platform/logger"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "visualmath ") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestInitDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "init.db")
	t.Setenv(config.EnvPrefix+"DATABASE_PATH", dbPath)

	if _, err := execute(t, "init-db", "--email", "root@example.com", "--password", "s3cret"); err != nil {
		t.Fatalf("init-db failed: %v", err)
	}

	cfg := config.LoadFromEnv()
	db, err := app.OpenDatabase(cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("failed to reopen database: %v", err)
	}
	user, err := db.GetUserByEmail(context.Background(), "root@example.com")
	_ = db.Close()
	if err != nil {
		t.Fatalf("admin not created: %v", err)
	}
	if !user.Admin {
		t.Error("created user is not an admin")
	}
	if !auth.CheckPassword(user.Password, "s3cret") {
		t.Error("stored password does not match")
	}

	if _, err := execute(t, "init-db", "--email", "root@example.com", "--password", "s3cret"); err == nil {
		t.Error("init-db must refuse an existing admin without --reset")
	}
	if _, err := execute(t, "init-db", "--email", "root@example.com", "--password", "other", "--reset"); err != nil {
		t.Fatalf("init-db --reset failed: %v", err)
	}
}

func TestInitDB_RequiresFlags(t *testing.T) {
	t.Setenv(config.EnvPrefix+"DATABASE_PATH", filepath.Join(t.TempDir(), "flags.db"))
	if _, err := execute(t, "init-db", "--email", "root@example.com"); err == nil {
		t.Error("init-db without --password must fail")
	}
}

func TestServe_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"http": {"read_timeout": "soon"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "serve", "--config", path); err == nil {
		t.Error("serve must fail on an invalid config file")
	}
}

func TestApplication_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HTTP.Port = -1

	application, err := app.NewApplication(cfg, logger.NewNop())
	if err == nil {
		t.Error("constructor should reject invalid configuration")
	}
	if application != nil {
		t.Error("constructor should not return an application for an invalid config")
	}
}
