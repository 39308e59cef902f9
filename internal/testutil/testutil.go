// Package testutil provides shared test helpers for setting up trees and databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/doorlink/internal/index"
	"github.com/starford/doorlink/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "doorlink-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestTree creates a temporary project directory containing files and
// returns it with a storage.Provider rooted there.
func TestTree(t *testing.T, files map[string]string) (string, storage.Provider) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(root, ".git")
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// SampleFiles is a three-level tree: REQ <- SYS <- TST. TST001 also links
// REQ002 directly, which skips a level.
func SampleFiles() map[string]string {
	return map[string]string{
		"reqs/.doorstop.yml": "settings:\n  digits: 3\n  prefix: REQ\n  sep: ''\n",
		"reqs/REQ001.yml":    "active: true\nheader: Login\nlinks: []\nnormative: true\ntext: |\n  The user can log in.\n",
		"reqs/REQ002.yml":    "active: true\nheader: ''\nlinks: []\nnormative: true\ntext: |\n  Every action is audited.\n",
		"reqs/REQ003.yml":    "active: true\nheader: Overview\nlinks: []\nnormative: false\ntext: ''\n",
		"sys/.doorstop.yml":  "settings:\n  digits: 3\n  parent: REQ\n  prefix: SYS\n  sep: ''\n",
		"sys/SYS001.yml": "active: true\nheader: ''\nlinks:\n- REQ001: null\nnormative: true\n" +
			"references:\n- path: src/login.c\n  type: file\n  keyword: login\n" +
			"text: |\n  Login form.\n",
		"sys/SYS002.yml": "active: true\nheader: ''\nlinks:\n- REQ001\n- REQ002\nnormative: true\ntext: |\n  Audit log writer.\n",
		"tst/.doorstop.yml": "settings:\n  digits: 3\n  parent: SYS\n  prefix: TST\n  sep: ''\n",
		"tst/TST001.yml":    "active: true\nheader: ''\nlinks:\n- SYS001: 5f3a\n- REQ002: null\nnormative: true\ntext: |\n  Log in twice.\n",
		"src/login.c":       "#include <stdio.h>\nvoid login(void) {}\n",
	}
}

// SampleTree writes SampleFiles into a temporary directory.
func SampleTree(t *testing.T) (string, storage.Provider) {
	t.Helper()
	return TestTree(t, SampleFiles())
}
