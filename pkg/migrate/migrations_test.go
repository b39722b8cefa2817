package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/peerlink-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestInvitationMigrationEnforcesSinglePendingPair(t *testing.T) {
	content := readMigration(t, "*_create_invitations.sql")

	checks := []string{
		"CREATE TYPE invitation_status AS ENUM ('PENDING', 'ACCEPTED', 'REJECTED', 'TIMEOUT', 'CANCELLED')",
		"CREATE UNIQUE INDEX IF NOT EXISTS uniq_invitations_pending_pair",
		"WHERE status = 'PENDING'",
		"CHECK (sender_id <> receiver_id)",
		"DROP TABLE IF EXISTS invitations",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestRoomMigrationAllowsOneRoomPerInvitation(t *testing.T) {
	content := readMigration(t, "*_create_rooms.sql")
	if !strings.Contains(content, "CONSTRAINT uniq_rooms_invitation UNIQUE (invitation_id)") {
		t.Fatalf("rooms migration must keep invitation_id unique")
	}
}

func TestCreateSQLMigrationWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Room Topic")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_room_topic.sql") {
		t.Fatalf("unexpected file name %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "add room topic"); err == nil {
		t.Fatalf("expected duplicate migration name to be rejected")
	}
	if _, err := migrate.CreateSQLMigration(dir, "  !!  "); err == nil {
		t.Fatalf("expected empty sanitized name to be rejected")
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestValidateDirRejectsMisorderedSections(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Down\nDROP TABLE x;\n-- +goose Up\nCREATE TABLE x (id int);\n"
	if err := os.WriteFile(filepath.Join(dir, "20261015000000_bad.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected misordered sections to fail validation")
	}
}
