// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"errors"
	"testing"
)

func TestSpinnerPlainModeLifecycle(t *testing.T) {
	withPlain(t, true)

	s := NewSpinner("probing mirrors")
	s.Start()
	s.Start() // second Start is a no-op
	s.UpdateMessage("still probing")
	s.Stop()
	s.Stop() // second Stop is a no-op
}

func TestWithSpinnerPropagatesError(t *testing.T) {
	withPlain(t, true)

	sentinel := errors.New("no route to host")
	err := WithSpinner("probing mirrors", func() error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Errorf("WithSpinner error = %v, want %v", err, sentinel)
	}

	if err := WithSpinner("probing mirrors", func() error { return nil }); err != nil {
		t.Errorf("WithSpinner = %v, want nil", err)
	}
}
