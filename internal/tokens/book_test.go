package tokens

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestBookPersistsByTarget(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	book, err := LoadBook(path)
	if err != nil {
		t.Fatalf("LoadBook() error = %v", err)
	}
	if len(book.All()) != 0 {
		t.Fatal("new book is not empty")
	}

	book.Add("C1", "alerts", "token_a")
	book.Add("C1", "deploys", "token_b")
	book.Add("USER", "me", "token_c")
	if err = book.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reloaded, err := LoadBook(path)
	if err != nil {
		t.Fatalf("LoadBook() error = %v", err)
	}
	if got := reloaded.Tokens("C1"); !reflect.DeepEqual(got, []string{"token_a", "token_b"}) {
		t.Fatalf("Tokens(C1) = %v", got)
	}
	if got := reloaded.Targets(); !reflect.DeepEqual(got, []string{"C1", "USER"}) {
		t.Fatalf("Targets() = %v", got)
	}

	if !reloaded.Remove("token_c") || reloaded.Remove("token_c") {
		t.Fatal("Remove() did not report the single removal")
	}
	if got := reloaded.All(); !reflect.DeepEqual(got, []string{"token_a", "token_b"}) {
		t.Fatalf("All() = %v", got)
	}
}

func TestLoadBookCorruptFileStartsEmpty(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	book, err := LoadBook(path)
	if err != nil {
		t.Fatalf("LoadBook() error = %v", err)
	}
	if len(book.All()) != 0 {
		t.Fatal("corrupt book is not empty")
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.ErrorLevel {
		t.Fatalf("expected an error log, got %+v", entry)
	}
}

func TestLoadBookNullEntries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "null document", content: "null"},
		{name: "null target", content: `{"USER": null}`},
		{name: "empty target", content: `{"USER": {}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "tokens.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			book, err := LoadBook(path)
			if err != nil {
				t.Fatalf("LoadBook() error = %v", err)
			}
			if got := book.Targets(); len(got) != 0 {
				t.Fatalf("Targets() = %v, want none", got)
			}
			book.Add("USER", "me", "token_a")
			if got := book.Tokens("USER"); !reflect.DeepEqual(got, []string{"token_a"}) {
				t.Fatalf("Tokens(USER) = %v", got)
			}
			if err = book.Save(); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
		})
	}
}
