// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package experts

import (
	"testing"
)

func TestRegistry_RegisterValidation(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("go", nil); err == nil {
		t.Fatal("expected error for nil detector")
	}
	if err := r.Register("", &stubDetector{name: "x"}); err == nil {
		t.Fatal("expected error for empty language")
	}
	if err := r.Register("go", &stubDetector{name: "go.a"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("go", &stubDetector{name: "go.a"}); err == nil {
		t.Fatal("expected error for duplicate detector name")
	}

	// Same name under a different language is fine.
	if err := r.Register("python", &stubDetector{name: "go.a"}); err != nil {
		t.Fatalf("Register under other language: %v", err)
	}
}

func TestRegistry_CaseInsensitiveLanguage(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, "Go", &stubDetector{name: "go.a"})

	if got := r.ForLanguage("go"); len(got) != 1 {
		t.Fatalf("ForLanguage(go) = %d detectors, want 1", len(got))
	}
	if got := r.ForLanguage("GO"); len(got) != 1 {
		t.Fatalf("ForLanguage(GO) = %d detectors, want 1", len(got))
	}
}

func TestRegistry_ForLanguagePreservesOrder(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, "go", &stubDetector{name: "go.first"})
	mustRegister(t, r, "go", &stubDetector{name: "go.second"})
	mustRegister(t, r, "go", &stubDetector{name: "go.third"})

	got := r.ForLanguage("go")
	want := []string{"go.first", "go.second", "go.third"}
	if len(got) != len(want) {
		t.Fatalf("got %d detectors, want %d", len(got), len(want))
	}
	for i, d := range got {
		if d.Name() != want[i] {
			t.Fatalf("position %d = %s, want %s", i, d.Name(), want[i])
		}
	}
}

func TestRegistry_ForLanguageReturnsCopy(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, "go", &stubDetector{name: "go.a"})

	got := r.ForLanguage("go")
	got[0] = &stubDetector{name: "go.tampered"}

	if again := r.ForLanguage("go"); again[0].Name() != "go.a" {
		t.Fatalf("registry state leaked through returned slice: %s", again[0].Name())
	}
}

func TestRegistry_UnknownLanguage(t *testing.T) {
	r := NewRegistry()
	if got := r.ForLanguage("haskell"); got != nil {
		t.Fatalf("ForLanguage(haskell) = %v, want nil", got)
	}
}

func TestRegistry_LanguagesSorted(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, "python", &stubDetector{name: "p"})
	mustRegister(t, r, "go", &stubDetector{name: "g"})
	mustRegister(t, r, "javascript", &stubDetector{name: "j"})

	got := r.Languages()
	want := []string{"go", "javascript", "python"}
	if len(got) != len(want) {
		t.Fatalf("Languages() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Languages() = %v, want %v", got, want)
		}
	}
}

func TestNewDefaultRegistry_CoversParserLanguages(t *testing.T) {
	r := NewDefaultRegistry()

	for _, lang := range []string{"go", "python", "javascript", "typescript"} {
		ds := r.ForLanguage(lang)
		if len(ds) != 1 {
			t.Fatalf("%s: got %d detectors, want 1", lang, len(ds))
		}
		if want := lang + ".heuristics"; ds[0].Name() != want {
			t.Fatalf("%s: detector named %s, want %s", lang, ds[0].Name(), want)
		}
	}
}
