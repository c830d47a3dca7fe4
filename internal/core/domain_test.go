package core

import (
	"errors"
	"testing"
	"time"
)

func TestNewBookTrimsFields(t *testing.T) {
	b, err := NewBook("  Dune ", " Frank Herbert ", " SF-001 ", "  ", 3)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if b.Title != "Dune" || b.Code != "SF-001" || b.Author != "Frank Herbert" {
		t.Fatalf("fields not trimmed: %+v", b)
	}
	if b.Category != DefaultCategory {
		t.Fatalf("expected default category, got %q", b.Category)
	}
	if b.ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestNewBookValidate(t *testing.T) {
	cases := []struct {
		name   string
		title  string
		code   string
		copies int
		want   error
	}{
		{"blank title", "   ", "C1", 1, ErrEmptyTitle},
		{"blank code", "T", "", 1, ErrEmptyCode},
		{"negative copies", "T", "C1", -1, ErrNegativeCopies},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBook(tc.title, "a", tc.code, "c", tc.copies)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !IsValidation(err) {
				t.Fatalf("expected validation error, got %T", err)
			}
		})
	}
}

func TestBookSetCopiesRejectsNegative(t *testing.T) {
	b, err := NewBook("T", "A", "C", "Fiction", 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.SetCopies(-5); !errors.Is(err, ErrNegativeCopies) {
		t.Fatalf("expected ErrNegativeCopies, got %v", err)
	}
	if b.Copies != 2 {
		t.Fatalf("copies changed on rejected update: %d", b.Copies)
	}
	if err := b.SetCopies(0); err != nil || b.Copies != 0 {
		t.Fatalf("expected zero copies to be accepted, got %v (%d)", err, b.Copies)
	}
}

func TestBookCatalogLine(t *testing.T) {
	b := Book{Title: "Dune", Author: "Herbert", Code: "X1"}
	if got := b.CatalogLine(); got != "Dune — Herbert [X1]" {
		t.Fatalf("unexpected catalog line %q", got)
	}
}

func TestNewUser(t *testing.T) {
	u, err := NewUser("  Ada ", " ada@example.com ")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if u.Name != "Ada" || u.Email != "ada@example.com" || !u.IsActive {
		t.Fatalf("unexpected user %+v", u)
	}

	bads := []struct {
		name, email string
		want        error
	}{
		{"", "a@b.io", ErrEmptyName},
		{"Ada", "", ErrEmptyEmail},
		{"Ada", "no-at-sign", ErrInvalidEmail},
		{"Ada", "a@b", ErrInvalidEmail},
	}
	for i, tc := range bads {
		if _, err := NewUser(tc.name, tc.email); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestUserDecodeDefaultsActive(t *testing.T) {
	cases := []struct {
		doc  string
		want bool
	}{
		{`{"id":"u1","name":"Ada","email":"ada@example.com"}`, true},
		{`{"id":"u1","name":"Ada","email":"ada@example.com","isActive":null}`, true},
		{`{"id":"u1","name":"Ada","email":"ada@example.com","isActive":false}`, false},
		{`{"id":"u1","name":"Ada","email":"ada@example.com","isActive":true}`, true},
	}
	for _, tc := range cases {
		var u User
		if err := json.Unmarshal([]byte(tc.doc), &u); err != nil {
			t.Fatalf("decode %s: %v", tc.doc, err)
		}
		if u.IsActive != tc.want {
			t.Fatalf("%s: expected IsActive=%v, got %v", tc.doc, tc.want, u.IsActive)
		}
		if u.ID != "u1" || u.Name != "Ada" || u.Email != "ada@example.com" {
			t.Fatalf("other fields lost: %+v", u)
		}
	}

	var list []User
	if err := json.Unmarshal([]byte(`[{"id":"a","name":"A","email":"a@a.io"},{"id":"b","name":"B","email":"b@b.io","isActive":false}]`), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 || !list[0].IsActive || list[1].IsActive {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestNormalizeKeepsNegativeCopies(t *testing.T) {
	b := Book{Title: " Dune ", Code: " D1 ", Author: " Frank ", Copies: -3}
	b.Normalize()
	if b.Title != "Dune" || b.Code != "D1" || b.Author != "Frank" || b.Category != DefaultCategory {
		t.Fatalf("not normalized: %+v", b)
	}
	if err := b.Validate(); !errors.Is(err, ErrNegativeCopies) {
		t.Fatalf("expected negative copies to fail validation, got %v", err)
	}
}

func TestLoanMarkReturnedOnce(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	l := NewLoan("u", "b", start)
	if l.IsReturned() {
		t.Fatal("new loan should not be returned")
	}
	first := start.Add(time.Hour)
	if !l.MarkReturned(first) {
		t.Fatal("first return should succeed")
	}
	if l.MarkReturned(first.Add(time.Hour)) {
		t.Fatal("second return should be a no-op")
	}
	if !l.ReturnDate.Equal(first) {
		t.Fatalf("return date changed: %v", l.ReturnDate)
	}
}

func TestErrorKinds(t *testing.T) {
	err := Violation("create_loan", ErrNoCopies)
	if !IsDomain(err) || IsValidation(err) {
		t.Fatalf("unexpected classification for %v", err)
	}
	if err.Error() != "no copies available" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !IsNotFound(Violation("return_loan", ErrLoanNotFound)) {
		t.Fatal("expected not found")
	}
}

func TestMatrixAt(t *testing.T) {
	m := NewMatrix(2024, []string{"A", "B"})
	m.Cells[2][1] = 4
	if m.At(3, 1) != 4 || m.At(13, 0) != 0 || m.At(1, 5) != 0 {
		t.Fatalf("unexpected lookups: %+v", m)
	}
	if m.Total() != 4 {
		t.Fatalf("unexpected total %d", m.Total())
	}
}
