package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/readify/api/internal/domain"
	pfirestore "github.com/readify/api/internal/platform/firestore"
	"github.com/readify/api/internal/repositories"
)

const booksCollection = "books"

// BookRepository reads catalog entries from the books collection.
type BookRepository struct {
	books *pfirestore.Collection[bookDocument]
}

var _ repositories.BookRepository = (*BookRepository)(nil)

// NewBookRepository constructs a Firestore-backed catalog reader.
func NewBookRepository(provider *pfirestore.Provider) (*BookRepository, error) {
	if provider == nil {
		return nil, errors.New("book repository requires firestore provider")
	}
	return &BookRepository{books: pfirestore.NewCollection[bookDocument](provider, booksCollection)}, nil
}

// Get loads a single book, soft-deleted ones included.
func (r *BookRepository) Get(ctx context.Context, bookID string) (domain.Book, error) {
	doc, err := r.books.Get(ctx, strings.TrimSpace(bookID))
	if err != nil {
		return domain.Book{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// GetMany loads the given books in one round trip, deduplicating ids.
func (r *BookRepository) GetMany(ctx context.Context, bookIDs []string) (map[string]domain.Book, error) {
	seen := make(map[string]struct{}, len(bookIDs))
	ids := make([]string, 0, len(bookIDs))
	for _, id := range bookIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	docs, err := r.books.GetAll(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Book, len(docs))
	for _, doc := range docs {
		out[doc.ID] = doc.Data.toDomain(doc.ID)
	}
	return out, nil
}

type bookDocument struct {
	SellerID    string     `firestore:"sellerId"`
	Title       string     `firestore:"title"`
	Author      string     `firestore:"author"`
	Genre       string     `firestore:"genre"`
	Language    string     `firestore:"language"`
	Category    string     `firestore:"category"`
	Description string     `firestore:"description"`
	Excerpt     string     `firestore:"excerpt,omitempty"`
	PageCount   int        `firestore:"pageCount"`
	Price       int64      `firestore:"price"`
	Images      []string   `firestore:"images"`
	PublishedAt *time.Time `firestore:"publishedAt,omitempty"`
	Deleted     bool       `firestore:"deleted"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt"`
}

func (d bookDocument) toDomain(id string) domain.Book {
	return domain.Book{
		ID:          id,
		SellerID:    d.SellerID,
		Title:       d.Title,
		Author:      d.Author,
		Genre:       d.Genre,
		Language:    d.Language,
		Category:    d.Category,
		Description: d.Description,
		Excerpt:     d.Excerpt,
		PageCount:   d.PageCount,
		Price:       d.Price,
		Images:      append([]string(nil), d.Images...),
		PublishedAt: d.PublishedAt,
		Deleted:     d.Deleted,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
