package config

import (
	"os"
	"path/filepath"
	"testing"
)

const baseConfig = `
port: "8080"
logLevel: "info"
adminEmail: "admin@example.com"
databaseURL: "postgres://dc:dc@localhost:5432/dc?sslmode=disable"
jwtSecret: "local-dev-secret"
minioEndpoint: "localhost:9000"
minioBucket: "student-photos"
redisAddr: "localhost:6379"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestLoadDefaultsMaxPhotoBytes(t *testing.T) {
	cfg, err := Load(writeConfig(t, baseConfig))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MaxPhotoBytes != 2<<20 {
		t.Fatalf("maxPhotoBytes = %d, want 2 MiB default", cfg.MaxPhotoBytes)
	}
	if cfg.AdminEmail != "admin@example.com" {
		t.Fatalf("adminEmail = %q", cfg.AdminEmail)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATACOLLECTION_ADMIN_EMAIL", "root@example.com")
	t.Setenv("DATACOLLECTION_MAX_PHOTO_BYTES", "1048576")
	t.Setenv("MINIO_BUCKET", "photos-prod")
	t.Setenv("DATACOLLECTION_TRUSTED_PROXY_CIDRS", "10.0.0.0/8, 192.168.0.1")

	cfg, err := Load(writeConfig(t, baseConfig))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.AdminEmail != "root@example.com" {
		t.Fatalf("adminEmail = %q, want env override", cfg.AdminEmail)
	}
	if cfg.MaxPhotoBytes != 1048576 {
		t.Fatalf("maxPhotoBytes = %d, want 1048576", cfg.MaxPhotoBytes)
	}
	if cfg.MinioBucket != "photos-prod" {
		t.Fatalf("minioBucket = %q, want photos-prod", cfg.MinioBucket)
	}
	if len(cfg.TrustedProxyCIDRs) != 2 || cfg.TrustedProxyCIDRs[1] != "192.168.0.1" {
		t.Fatalf("trustedProxyCidrs = %v", cfg.TrustedProxyCIDRs)
	}
}

func TestValidateConfigRejectsMissingAdminEmail(t *testing.T) {
	content := `
port: "8080"
databaseURL: "postgres://dc:dc@localhost:5432/dc?sslmode=disable"
jwtSecret: "local-dev-secret"
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Fatalf("expected error for missing adminEmail")
	}
}

func TestValidateConfigRejectsMissingDatabaseURL(t *testing.T) {
	content := `
port: "8080"
adminEmail: "admin@example.com"
jwtSecret: "local-dev-secret"
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Fatalf("expected error for missing databaseURL")
	}
}
