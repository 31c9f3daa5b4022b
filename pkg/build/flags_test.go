// SPDX-License-Identifier: MIT
package build

import (
	"strings"
	"testing"
)

func restore(t *testing.T) {
	t.Helper()
	name, tm, commit, version, info := buildName, buildTime, buildCommit, buildVersion, buildInfo
	t.Cleanup(func() {
		buildName, buildTime, buildCommit, buildVersion, buildInfo = name, tm, commit, version, info
	})
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name                        string
		bName, bTime, bCommit, bVer string
		wantErrs                    []string
	}{
		{"Missing BuildName", "", "2025-04-13", "abcdef123", "v1.0.0", []string{"BuildName is required"}},
		{"Missing BuildTime", "imr", "", "abcdef123", "v1.0.0", []string{"BuildTime is required"}},
		{"Missing BuildCommit", "imr", "2025-04-13", "", "v1.0.0", []string{"BuildCommit is required"}},
		{"Missing BuildVersion", "imr", "2025-04-13", "abcdef123", "", []string{"BuildVersion is required"}},
		{"Missing Several", "imr", "", "", "v1.0.0", []string{"BuildTime is required", "BuildCommit is required"}},
		{"Success Case", "imr", "2025-04-13", "abcdef123", "v1.0.0", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restore(t)
			buildName, buildTime, buildCommit, buildVersion = tt.bName, tt.bTime, tt.bCommit, tt.bVer

			err := Initialize()
			if len(tt.wantErrs) > 0 {
				if err == nil {
					t.Fatal("Initialize() expected error, got nil")
				}
				for _, want := range tt.wantErrs {
					if !strings.Contains(err.Error(), want) {
						t.Errorf("Initialize() error = %q, want it to mention %q", err, want)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}
			want := Info{Name: tt.bName, Time: tt.bTime, Commit: tt.bCommit, Version: tt.bVer}
			if got := Get(); got != want {
				t.Errorf("Get() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestInfoString(t *testing.T) {
	restore(t)
	buildInfo = Info{Name: "imr", Time: "2025-04-13", Commit: "abc", Version: "v0.3.0"}
	if got, want := Get().String(), "imr v0.3.0 (commit abc, built 2025-04-13)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
