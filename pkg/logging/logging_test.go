package logging

import "testing"

func TestRenderIncludesSortedFields(t *testing.T) {
	got := render(LevelInfo, "applied step", map[string]any{"b": 2, "a": 1})
	want := "INFO applied step a=1 b=2"
	if got != want {
		t.Fatalf("render() = %q, want %q", got, want)
	}
}

func TestRenderWithoutFields(t *testing.T) {
	got := render(LevelError, "boom", nil)
	if got != "ERROR boom" {
		t.Fatalf("render() = %q, want %q", got, "ERROR boom")
	}
}

func TestSetLevelGatesLowerSeverity(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)

	SetLevel(LevelError)
	if GetLevel() != LevelError {
		t.Fatalf("GetLevel() = %v, want %v", GetLevel(), LevelError)
	}
}

func TestLevelString(t *testing.T) {
	cases := map[Level]string{
		LevelDebug: "DEBUG",
		LevelInfo:  "INFO",
		LevelWarn:  "WARN",
		LevelError: "ERROR",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Fatalf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}
