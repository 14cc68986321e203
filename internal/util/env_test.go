package util

import (
	"testing"
	"time"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("GRAPHLOOM_TEST_STRING", "sqlite")
	t.Setenv("GRAPHLOOM_TEST_EMPTY", "")
	t.Setenv("GRAPHLOOM_TEST_NUMBER", "12")
	t.Setenv("GRAPHLOOM_TEST_BAD_NUMBER", "twelve")
	t.Setenv("GRAPHLOOM_TEST_BOOL", "false")
	t.Setenv("GRAPHLOOM_TEST_BAD_BOOL", "no")
	t.Setenv("GRAPHLOOM_TEST_DURATION", "250ms")
	t.Setenv("GRAPHLOOM_TEST_BAD_DURATION", "-1s")

	if got := GetEnvString("GRAPHLOOM_TEST_STRING", "postgres"); got != "sqlite" {
		t.Fatalf("expected sqlite, got %q", got)
	}
	if got := GetEnvString("GRAPHLOOM_TEST_EMPTY", "postgres"); got != "postgres" {
		t.Fatalf("expected default for empty value, got %q", got)
	}
	if got := GetEnvString("GRAPHLOOM_TEST_UNSET", "postgres"); got != "postgres" {
		t.Fatalf("expected default for unset value, got %q", got)
	}
	if got := GetEnvNumeric("GRAPHLOOM_TEST_NUMBER", 8); got != 12 {
		t.Fatalf("expected 12, got %v", got)
	}
	if got := GetEnvNumeric("GRAPHLOOM_TEST_BAD_NUMBER", 8); got != 8 {
		t.Fatalf("expected 8, got %v", got)
	}
	if got := GetEnvBool("GRAPHLOOM_TEST_BOOL", true); got {
		t.Fatal("expected false")
	}
	if got := GetEnvBool("GRAPHLOOM_TEST_BAD_BOOL", true); !got {
		t.Fatal("expected default true")
	}
	if got := GetEnvDuration("GRAPHLOOM_TEST_DURATION", time.Second); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", got)
	}
	if got := GetEnvDuration("GRAPHLOOM_TEST_BAD_DURATION", time.Second); got != time.Second {
		t.Fatalf("expected 1s, got %v", got)
	}
}
