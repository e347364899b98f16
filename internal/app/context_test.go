package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"obralink/internal/config"
	"obralink/internal/domain"
	"obralink/internal/engine"
)

func TestOpenUsesWorkspaceConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(config.Path(dir), []byte("payments:\n  approvals_required: 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	env, err := Open(context.Background(), Options{Workspace: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer env.Close()
	if env.Config.Payments.ApprovalsRequired != 2 {
		t.Fatalf("expected approvals_required 2, got %d", env.Config.Payments.ApprovalsRequired)
	}
	if env.Engine.Notifier == nil {
		t.Fatalf("expected notifier to be wired")
	}
	if _, err := os.Stat(filepath.Join(dir, ".obralink", "obralink.db")); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
}

func TestProjectIDAndSession(t *testing.T) {
	ctx := context.Background()
	env, err := Open(ctx, Options{Workspace: t.TempDir(), Quiet: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer env.Close()

	if _, err := env.ProjectID(ctx, ""); err == nil {
		t.Fatalf("expected error without projects")
	}
	if _, err := env.Engine.CreateProject(ctx, engine.CreateProjectOptions{
		ID: "obra-1", ContractorOrgID: "constructora", MandanteOrgID: "inmobiliaria", ActorID: "admin",
	}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	id, err := env.ProjectID(ctx, "")
	if err != nil || id != "obra-1" {
		t.Fatalf("expected obra-1, got %q (%v)", id, err)
	}
	if id, _ := env.ProjectID(ctx, "otra"); id != "otra" {
		t.Fatalf("override ignored, got %q", id)
	}

	if err := env.Engine.AddMember(ctx, "obra-1", domain.RoleMandante, "mauro", "admin"); err != nil {
		t.Fatalf("add member: %v", err)
	}
	g, err := env.Session(ctx, "obra-1", "mauro", "")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if g.ActorRole != domain.RoleMandante {
		t.Fatalf("expected mandante, got %s", g.ActorRole)
	}
	if _, err := env.Session(ctx, "obra-1", "", ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized without account, got %v", err)
	}
	if _, err := env.Session(ctx, "obra-1", "nadie", ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for non-member, got %v", err)
	}
}
