package core

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultCategory is used for books whose category is blank.
const DefaultCategory = "General"

// emailPattern is the shape accepted for user emails.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type (
	// Entity is anything stored in a repository: it has a stable id.
	Entity interface {
		EntityID() string
	}

	Book struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Category string `json:"category"`
		Author   string `json:"author"`
		Code     string `json:"code"`
		Copies   int    `json:"copies"`
	}

	User struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		IsActive bool   `json:"isActive"`
	}

	Loan struct {
		ID         string     `json:"id"`
		UserID     string     `json:"userId"`
		BookID     string     `json:"bookId"`
		LoanDate   time.Time  `json:"loanDate"`
		ReturnDate *time.Time `json:"returnDate,omitempty"`
	}
)

// NewID returns a fresh opaque identifier.
func NewID() string {
	return uuid.NewString()
}

// NewBook builds a validated book with a generated id.
// A blank category becomes DefaultCategory.
func NewBook(title, author, code, category string, copies int) (*Book, error) {
	b := &Book{ID: NewID(), Author: strings.TrimSpace(author), Category: DefaultCategory}
	if err := b.SetTitle(title); err != nil {
		return nil, err
	}
	if err := b.SetCode(code); err != nil {
		return nil, err
	}
	if err := b.SetCopies(copies); err != nil {
		return nil, err
	}
	b.SetCategory(category)
	return b, nil
}

func (b Book) EntityID() string { return b.ID }

// SetTitle trims and stores the title; blank titles are rejected.
func (b *Book) SetTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return invalid("title", ErrEmptyTitle)
	}
	b.Title = title
	return nil
}

// SetCode trims and stores the catalog code; blank codes are rejected.
func (b *Book) SetCode(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return invalid("code", ErrEmptyCode)
	}
	b.Code = code
	return nil
}

// SetCopies rejects negative counts.
func (b *Book) SetCopies(copies int) error {
	if copies < 0 {
		return invalid("copies", ErrNegativeCopies)
	}
	b.Copies = copies
	return nil
}

func (b *Book) SetCategory(category string) {
	b.Category = NormalizeCategory(category)
}

// Validate checks the invariants of a book that was built without the setters
// (decoded from JSON or assembled by a caller).
func (b Book) Validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return invalid("title", ErrEmptyTitle)
	}
	if strings.TrimSpace(b.Code) == "" {
		return invalid("code", ErrEmptyCode)
	}
	if b.Copies < 0 {
		return invalid("copies", ErrNegativeCopies)
	}
	return nil
}

// Normalize trims the text fields and fills in a blank category. Copies are
// left alone so Validate still sees a negative count.
func (b *Book) Normalize() {
	b.Title = strings.TrimSpace(b.Title)
	b.Code = strings.TrimSpace(b.Code)
	b.Author = strings.TrimSpace(b.Author)
	b.Category = NormalizeCategory(b.Category)
}

// CatalogLine renders the book the way the catalog lists it.
func (b Book) CatalogLine() string {
	return b.Title + " — " + b.Author + " [" + b.Code + "]"
}

// NormalizeCategory trims the label and falls back to DefaultCategory.
func NormalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return DefaultCategory
	}
	return category
}

// NewUser builds an active, validated user with a generated id.
func NewUser(name, email string) (*User, error) {
	u := &User{ID: NewID(), IsActive: true}
	if err := u.SetName(name); err != nil {
		return nil, err
	}
	if err := u.SetEmail(email); err != nil {
		return nil, err
	}
	return u, nil
}

func (u User) EntityID() string { return u.ID }

func (u User) String() string { return u.Name }

func (u *User) SetName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("name", ErrEmptyName)
	}
	u.Name = name
	return nil
}

// SetEmail trims and stores the email after checking its shape.
func (u *User) SetEmail(email string) error {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return err
	}
	u.Email = email
	return nil
}

// UnmarshalJSON decodes a user, treating a missing or null isActive as true.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var flags struct {
		IsActive *bool `json:"isActive"`
	}
	if err := json.Unmarshal(data, &flags); err != nil {
		return err
	}
	p.IsActive = flags.IsActive == nil || *flags.IsActive
	*u = User(p)
	return nil
}

func (u *User) Normalize() {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	return ValidateEmail(strings.TrimSpace(u.Email))
}

// ValidateEmail requires a non-empty address of the form local@domain.tld.
func ValidateEmail(email string) error {
	if email == "" {
		return invalid("email", ErrEmptyEmail)
	}
	if !strings.Contains(email, "@") || !emailPattern.MatchString(email) {
		return invalid("email", ErrInvalidEmail)
	}
	return nil
}

// NewLoan opens a loan at the given instant.
func NewLoan(userID, bookID string, at time.Time) Loan {
	return Loan{
		ID:       NewID(),
		UserID:   userID,
		BookID:   bookID,
		LoanDate: at,
	}
}

func (l Loan) EntityID() string { return l.ID }

func (l Loan) IsReturned() bool { return l.ReturnDate != nil }

// MarkReturned stamps the return date once; it reports false when the loan
// was already returned and leaves it unchanged.
func (l *Loan) MarkReturned(at time.Time) bool {
	if l.IsReturned() {
		return false
	}
	l.ReturnDate = &at
	return true
}
