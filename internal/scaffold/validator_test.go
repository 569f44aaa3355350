package scaffold

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckExisting(t *testing.T) {
	tests := []struct {
		name      string
		setupFunc func(string)
		wantErr   bool
		errMsg    string
	}{
		{
			name:      "no existing files",
			setupFunc: func(dir string) {},
			wantErr:   false,
		},
		{
			name: "existing retinue.yml only",
			setupFunc: func(dir string) {
				os.WriteFile(filepath.Join(dir, ConfigFile), []byte("version: '1.0'"), 0644)
			},
			wantErr: true,
			errMsg:  "Found existing: retinue.yml",
		},
		{
			name: "existing content/ directory only",
			setupFunc: func(dir string) {
				os.MkdirAll(filepath.Join(dir, ContentDir), 0755)
			},
			wantErr: true,
			errMsg:  "Found existing: content/",
		},
		{
			name: "both exist",
			setupFunc: func(dir string) {
				os.WriteFile(filepath.Join(dir, ConfigFile), []byte("version: '1.0'"), 0644)
				os.MkdirAll(filepath.Join(dir, ContentDir), 0755)
			},
			wantErr: true,
			errMsg:  "  - content/",
		},
		{
			name: "content is a file, not a directory",
			setupFunc: func(dir string) {
				os.WriteFile(filepath.Join(dir, ContentDir), []byte("x"), 0644)
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			tt.setupFunc(tmpDir)

			err := CheckExisting(tmpDir)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckExisting() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errMsg)
				}
				if !strings.Contains(err.Error(), "retinue init --force") {
					t.Errorf("error should suggest --force")
				}
			}
		})
	}
}
