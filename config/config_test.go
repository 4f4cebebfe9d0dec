package config

import "testing"

func TestPostgresDSNPrefersURL(t *testing.T) {
	p := PostgresConfig{URL: "postgres://u:p@db:5432/postwise?sslmode=require", Host: "ignored"}
	dsn, err := p.DSN()
	if err != nil {
		t.Fatalf("DSN: %v", err)
	}
	if dsn != p.URL {
		t.Fatalf("expected explicit URL, got %q", dsn)
	}
}

func TestPostgresDSNFromParts(t *testing.T) {
	p := PostgresConfig{Host: "db", User: "pw", Password: "secret", DBName: "postwise"}
	dsn, err := p.DSN()
	if err != nil {
		t.Fatalf("DSN: %v", err)
	}
	want := "postgres://pw:secret@db:5432/postwise?sslmode=disable"
	if dsn != want {
		t.Fatalf("got %q, want %q", dsn, want)
	}
}

func TestPostgresDSNUnconfigured(t *testing.T) {
	if _, err := (PostgresConfig{}).DSN(); err == nil {
		t.Fatalf("expected error for unconfigured postgres")
	}
}

func TestChainConfigValidate(t *testing.T) {
	if err := (ChainConfig{ElaborationBatchSize: 3}).Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if err := (ChainConfig{ElaborationBatchSize: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}
