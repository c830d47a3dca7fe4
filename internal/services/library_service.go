package services

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"biblioteca/internal/core"
	"biblioteca/internal/log"
	"biblioteca/internal/metrics"
	"biblioteca/internal/repository"
)

// Collection names double as the persisted file names (<name>.json).
const (
	CollectionBooks = "books"
	CollectionUsers = "users"
	CollectionLoans = "loans"
)

// LoanEventPublisher delivers loan events to whoever is listening.
type LoanEventPublisher interface {
	PublishLoanEvent(ctx context.Context, event core.LoanEvent) error
}

// Snapshot is the whole library state at one instant.
type Snapshot struct {
	Books []core.Book `json:"books"`
	Users []core.User `json:"users"`
	Loans []core.Loan `json:"loans"`
}

// LibraryService owns the book, user and loan collections and applies the
// lending rules. Every mutation runs under mu, so the check-then-act steps of
// CreateLoan and ReturnLoan are atomic with respect to each other.
type LibraryService struct {
	mu    sync.Mutex
	books *repository.Repository[core.Book]
	users *repository.Repository[core.User]
	loans *repository.Repository[core.Loan]

	revision  atomic.Uint64
	now       func() time.Time
	publisher LoanEventPublisher
	logger    *log.Logger
	metrics   *metrics.Metrics
}

type Option func(*LibraryService)

// WithClock overrides the time source used for loan and return dates.
func WithClock(now func() time.Time) Option {
	return func(s *LibraryService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithPublisher(p LoanEventPublisher) Option {
	return func(s *LibraryService) { s.publisher = p }
}

func WithLogger(l *log.Logger) Option {
	return func(s *LibraryService) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentLibrary)
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *LibraryService) { s.metrics = m }
}

func NewLibraryService(opts ...Option) *LibraryService {
	s := &LibraryService{
		books:  repository.New[core.Book](CollectionBooks),
		users:  repository.New[core.User](CollectionUsers),
		loans:  repository.New[core.Loan](CollectionLoans),
		now:    time.Now,
		logger: log.Default().WithComponent(log.ComponentLibrary),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Revision increases on every successful mutation.
func (s *LibraryService) Revision() uint64 {
	return s.revision.Load()
}

func (s *LibraryService) touch() {
	s.revision.Add(1)
}

// AddBook stores book, filling in a blank category and clamping negative
// copies to zero. The normalized book (with its id) is written back. A
// caller-supplied id that is already stored is rejected.
func (s *LibraryService) AddBook(book *core.Book) error {
	if book == nil {
		return core.Invalid("book", core.ErrNilEntity)
	}
	b := normalizeBook(*book)
	if b.ID == "" {
		b.ID = core.NewID()
	}
	if err := b.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.books.Add(b) {
		s.mu.Unlock()
		return core.Invalid("id", core.ErrDuplicateID)
	}
	s.touch()
	s.mu.Unlock()

	*book = b
	s.logger.Debug("Book added", log.FieldBookID, b.ID, log.FieldCopies, b.Copies)
	return nil
}

// UpdateBook replaces a stored book. Unlike AddBook, negative copies are an
// error here.
func (s *LibraryService) UpdateBook(book *core.Book) error {
	if book == nil {
		return core.Invalid("book", core.ErrNilEntity)
	}
	if book.Copies < 0 {
		return core.Invalid("copies", core.ErrNegativeCopies)
	}
	b := normalizeBook(*book)
	if err := b.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.books.Update(b) {
		return core.Violation(log.OpUpdate, core.ErrBookNotFound)
	}
	s.touch()
	*book = b
	return nil
}

// DeleteBook removes the book. Loans that point at it are kept.
func (s *LibraryService) DeleteBook(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.books.Delete(id) {
		return core.Violation(log.OpDelete, core.ErrBookNotFound)
	}
	s.touch()
	return nil
}

func normalizeBook(b core.Book) core.Book {
	b.Normalize()
	if b.Copies < 0 {
		b.Copies = 0
	}
	return b
}

// AddUser stores user after checking its name, its email shape and that no
// other user already has the same email (case-insensitive).
func (s *LibraryService) AddUser(user *core.User) error {
	if user == nil {
		return core.Invalid("user", core.ErrNilEntity)
	}
	u := normalizeUser(*user)
	if u.ID == "" {
		u.ID = core.NewID()
	}
	if err := u.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users.GetByID(u.ID); ok {
		return core.Invalid("id", core.ErrDuplicateID)
	}
	if s.emailTaken(u.Email, u.ID) {
		return core.Invalid("email", core.ErrDuplicateEmail)
	}
	s.users.Add(u)
	s.touch()
	*user = u
	return nil
}

func (s *LibraryService) UpdateUser(user *core.User) error {
	if user == nil {
		return core.Invalid("user", core.ErrNilEntity)
	}
	u := normalizeUser(*user)
	if err := u.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users.GetByID(u.ID); !ok {
		return core.Violation(log.OpUpdate, core.ErrUserNotFound)
	}
	if s.emailTaken(u.Email, u.ID) {
		return core.Invalid("email", core.ErrDuplicateEmail)
	}
	s.users.Update(u)
	s.touch()
	*user = u
	return nil
}

// DeleteUser removes the user. Loans that point at it are kept.
func (s *LibraryService) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.users.Delete(id) {
		return core.Violation(log.OpDelete, core.ErrUserNotFound)
	}
	s.touch()
	return nil
}

func normalizeUser(u core.User) core.User {
	u.Normalize()
	return u
}

// emailTaken must be called with mu held.
func (s *LibraryService) emailTaken(email, exceptID string) bool {
	return len(s.users.Filter(func(u core.User) bool {
		return u.ID != exceptID && strings.EqualFold(u.Email, email)
	})) > 0
}

// CreateLoan lends one copy of bookID to userID. The user must exist and be
// active, and the book must have a copy left.
func (s *LibraryService) CreateLoan(ctx context.Context, userID, bookID string) (core.Loan, error) {
	s.mu.Lock()
	user, ok := s.users.GetByID(userID)
	if !ok || !user.IsActive {
		s.mu.Unlock()
		s.metrics.LoanRejected("inactive_user")
		return core.Loan{}, core.Violation(log.OpLoan, core.ErrInactiveUser)
	}
	book, ok := s.books.GetByID(bookID)
	if !ok {
		s.mu.Unlock()
		s.metrics.LoanRejected("book_not_found")
		return core.Loan{}, core.Violation(log.OpLoan, core.ErrBookNotFound)
	}
	if book.Copies <= 0 {
		s.mu.Unlock()
		s.metrics.LoanRejected("no_copies")
		return core.Loan{}, core.Violation(log.OpLoan, core.ErrNoCopies)
	}

	book.Copies--
	s.books.Update(book)
	loan := core.NewLoan(userID, bookID, s.now())
	s.loans.Add(loan)
	s.touch()
	s.mu.Unlock()

	s.metrics.LoanCreated()
	s.logger.InfoContext(ctx, "Loan created",
		log.NewFields().WithOperation(log.OpLoan).WithLoan(loan.ID, userID, bookID).ToSlice()...)
	s.publish(ctx, core.NewLoanEvent(core.LoanCreated, loan, loan.LoanDate))
	return loan, nil
}

// ReturnLoan closes the loan and gives the copy back. Returning an already
// returned loan changes nothing. A book deleted meanwhile is skipped.
func (s *LibraryService) ReturnLoan(ctx context.Context, loanID string) (core.Loan, error) {
	s.mu.Lock()
	loan, ok := s.loans.GetByID(loanID)
	if !ok {
		s.mu.Unlock()
		return core.Loan{}, core.Violation(log.OpReturn, core.ErrLoanNotFound)
	}
	at := s.now()
	if !loan.MarkReturned(at) {
		s.mu.Unlock()
		return loan, nil
	}
	if book, ok := s.books.GetByID(loan.BookID); ok {
		book.Copies++
		s.books.Update(book)
	} else {
		s.logger.DebugContext(ctx, "Returned loan references a missing book",
			log.FieldLoanID, loan.ID, log.FieldBookID, loan.BookID)
	}
	s.loans.Update(loan)
	s.touch()
	s.mu.Unlock()

	s.metrics.LoanReturned()
	s.logger.InfoContext(ctx, "Loan returned",
		log.NewFields().WithOperation(log.OpReturn).WithLoan(loan.ID, loan.UserID, loan.BookID).ToSlice()...)
	s.publish(ctx, core.NewLoanEvent(core.LoanReturned, loan, at))
	return loan, nil
}

func (s *LibraryService) publish(ctx context.Context, event core.LoanEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLoanEvent(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish loan event",
			log.FieldOperation, log.OpPublish,
			log.FieldLoanID, event.LoanID,
			log.FieldError, err)
		// The loan is already stored; delivery is best effort.
	}
}

// Books returns every book ordered by title.
func (s *LibraryService) Books() []core.Book {
	books := s.books.GetAll()
	sort.SliceStable(books, func(i, j int) bool {
		return lessFold(books[i].Title, books[j].Title)
	})
	return books
}

// Users returns every user ordered by name.
func (s *LibraryService) Users() []core.User {
	users := s.users.GetAll()
	sort.SliceStable(users, func(i, j int) bool {
		return lessFold(users[i].Name, users[j].Name)
	})
	return users
}

// Loans returns every loan, newest first.
func (s *LibraryService) Loans() []core.Loan {
	loans := s.loans.GetAll()
	sortLoans(loans)
	return loans
}

// ActiveLoans returns the loans not yet returned, newest first.
func (s *LibraryService) ActiveLoans() []core.Loan {
	loans := s.loans.Filter(func(l core.Loan) bool { return !l.IsReturned() })
	sortLoans(loans)
	return loans
}

func (s *LibraryService) Book(id string) (core.Book, bool) { return s.books.GetByID(id) }

func (s *LibraryService) User(id string) (core.User, bool) { return s.users.GetByID(id) }

func (s *LibraryService) Loan(id string) (core.Loan, bool) { return s.loans.GetByID(id) }

func sortLoans(loans []core.Loan) {
	sort.SliceStable(loans, func(i, j int) bool {
		return loans[i].LoanDate.After(loans[j].LoanDate)
	})
}

func lessFold(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

// Snapshot copies the current state of all three collections.
func (s *LibraryService) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Books: s.books.GetAll(),
		Users: s.users.GetAll(),
		Loans: s.loans.GetAll(),
	}
}

// Restore replaces the whole state with snap.
func (s *LibraryService) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books.ReplaceAll(snap.Books)
	s.users.ReplaceAll(snap.Users)
	s.loans.ReplaceAll(snap.Loans)
	s.touch()
}

type persistable interface {
	Name() string
	LoadFromFile(path string) error
	SaveToFile(path string) error
}

func (s *LibraryService) collections() []persistable {
	return []persistable{s.users, s.books, s.loans}
}

// SaveAll writes users.json, books.json and loans.json into folder. Each file
// is written independently; failures are logged and never returned.
func (s *LibraryService) SaveAll(folder string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(folder, 0o755); err != nil {
		s.logger.Warn("Failed to create data folder", log.FieldFile, folder, log.FieldError, err)
	}
	s.eachCollection(folder, log.OpSave, func(c persistable, path string) error {
		return c.SaveToFile(path)
	})
}

// LoadAll reads the three collection files from folder. A missing file leaves
// its collection as it was. An unreadable file, or one holding an invalid
// record, is logged and skipped.
func (s *LibraryService) LoadAll(folder string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.eachCollection(folder, log.OpLoad, func(c persistable, path string) error {
		return c.LoadFromFile(path)
	})
	s.touch()
}

func (s *LibraryService) eachCollection(folder, op string, fn func(persistable, string) error) {
	var g errgroup.Group
	for _, c := range s.collections() {
		g.Go(func() error {
			path := filepath.Join(folder, c.Name()+".json")
			if err := fn(c, path); err != nil {
				s.metrics.PersistenceFailed(c.Name(), op)
				s.logger.Warn("Persistence step failed",
					log.NewFields().WithOperation(op).WithFile(c.Name(), path).WithError(err).ToSlice()...)
			}
			return nil
		})
	}
	_ = g.Wait()
}
