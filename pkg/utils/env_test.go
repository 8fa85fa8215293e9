package utils

import "testing"

func TestEnvOrDefaultFallback(t *testing.T) {
	t.Setenv("MINECRAB_TEST_UNSET_VAR", "")
	if got := EnvOrDefault("MINECRAB_TEST_UNSET_VAR", "fallback"); got != "fallback" {
		t.Fatalf("EnvOrDefault = %q, want %q", got, "fallback")
	}
}

func TestEnvOrDefaultIntParsesOrFallsBack(t *testing.T) {
	t.Setenv("MINECRAB_TEST_INT_VAR", "42")
	if got := EnvOrDefaultInt("MINECRAB_TEST_INT_VAR", -1); got != 42 {
		t.Fatalf("EnvOrDefaultInt = %d, want 42", got)
	}
	t.Setenv("MINECRAB_TEST_INT_VAR", "not-a-number")
	if got := EnvOrDefaultInt("MINECRAB_TEST_INT_VAR", -1); got != -1 {
		t.Fatalf("EnvOrDefaultInt with bad value = %d, want fallback -1", got)
	}
}
