package utils

import "testing"

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("SCREENER_TEST_STR", "  ")
	t.Setenv("SCREENER_TEST_INT", "12")
	t.Setenv("SCREENER_TEST_BAD", "twelve")

	if got := GetEnv("SCREENER_TEST_STR", "fallback"); got != "fallback" {
		t.Fatalf("blank value should fall back, got %q", got)
	}
	if got := GetEnvInt("SCREENER_TEST_INT", 3); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
	if got := GetEnvInt("SCREENER_TEST_BAD", 3); got != 3 {
		t.Fatalf("unparsable value should fall back, got %d", got)
	}
	if got := GetEnvFloat("SCREENER_TEST_MISSING", 0.2); got != 0.2 {
		t.Fatalf("expected fallback 0.2, got %f", got)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"debug":   "DEBUG",
		"WARNING": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"verbose": "INFO",
	}
	for input, want := range cases {
		if got := parseLevel(input).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", input, got, want)
		}
	}
}
