// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"strings"
	"testing"
)

func withPlain(t *testing.T, v bool) {
	t.Helper()
	prev := Plain()
	SetPlain(v)
	t.Cleanup(func() { SetPlain(prev) })
}

func TestIconRenderPlain(t *testing.T) {
	withPlain(t, true)

	tests := []struct {
		icon Icon
		want string
	}{
		{IconSuccess, "[ok]"},
		{IconWarning, "[warn]"},
		{IconError, "[fail]"},
		{IconPending, "[..]"},
		{IconSkipped, "[skip]"},
		{IconArrow, "→"},
	}
	for _, tt := range tests {
		if got := tt.icon.Render(); got != tt.want {
			t.Errorf("Icon(%q).Render() = %q, want %q", string(tt.icon), got, tt.want)
		}
	}
}

func TestIconRenderStyledKeepsGlyph(t *testing.T) {
	withPlain(t, false)
	if got := IconSuccess.Render(); !strings.Contains(got, "✓") {
		t.Errorf("styled render lost the glyph: %q", got)
	}
}

func TestProgressBarPlain(t *testing.T) {
	withPlain(t, true)
	if got := ProgressBar(42, 20); got != "42%" {
		t.Errorf("ProgressBar(42) = %q", got)
	}
	if got := ProgressBar(-5, 20); got != "0%" {
		t.Errorf("ProgressBar(-5) = %q", got)
	}
	if got := ProgressBar(150, 20); got != "100%" {
		t.Errorf("ProgressBar(150) = %q", got)
	}
}

func TestProgressBarStyledWidth(t *testing.T) {
	withPlain(t, false)
	got := ProgressBar(50, 10)
	if !strings.Contains(got, "50%") {
		t.Errorf("styled bar missing percent: %q", got)
	}
	if strings.Count(got, "█") != 5 || strings.Count(got, "░") != 5 {
		t.Errorf("styled bar fill mismatch: %q", got)
	}
}

func TestSetPlainRoundTrip(t *testing.T) {
	withPlain(t, false)
	if Plain() {
		t.Fatal("expected styled mode")
	}
	SetPlain(true)
	if !Plain() {
		t.Fatal("expected plain mode")
	}
}
