package services

import (
	"context"
	"errors"
	"strings"

	domain "github.com/readify/api/internal/domain"
	"github.com/readify/api/internal/platform/textutil"
	"github.com/readify/api/internal/repositories"
)

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	Books  repositories.BookRepository
	Covers CoverURLResolver
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	books  repositories.BookRepository
	covers CoverURLResolver
	logger func(context.Context, string, map[string]any)
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService constructs the read-only catalog service.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Books == nil {
		return nil, errors.New("catalog service: book repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &catalogService{books: deps.Books, covers: deps.Covers, logger: logger}, nil
}

func (s *catalogService) Summaries(ctx context.Context, bookIDs []string) (map[string]BookSummary, error) {
	ids := make([]string, 0, len(bookIDs))
	for _, id := range bookIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return map[string]BookSummary{}, nil
	}

	books, err := s.books.GetMany(ctx, ids)
	if err != nil {
		return nil, mapRepositoryError("book", err)
	}
	out := make(map[string]BookSummary, len(books))
	for id, book := range books {
		if book.Deleted {
			continue
		}
		out[id] = s.summarize(ctx, id, book)
	}
	return out, nil
}

func (s *catalogService) summarize(ctx context.Context, id string, book domain.Book) BookSummary {
	summary := BookSummary{
		ID:          id,
		SellerID:    book.SellerID,
		Title:       book.Title,
		Author:      book.Author,
		Genre:       book.Genre,
		Language:    book.Language,
		Category:    book.Category,
		Description: textutil.StripMarkup(book.Description),
		Excerpt:     textutil.StripMarkup(book.Excerpt),
		PageCount:   book.PageCount,
		Price:       book.Price,
		Images:      make([]string, 0, len(book.Images)),
	}
	if book.PublishedAt != nil {
		published := *book.PublishedAt
		summary.PublishedAt = &published
	}
	for _, image := range book.Images {
		if strings.TrimSpace(image) == "" {
			continue
		}
		if s.covers == nil {
			summary.Images = append(summary.Images, image)
			continue
		}
		resolved, err := s.covers.CoverURL(ctx, image)
		if err != nil {
			s.logger(ctx, "catalog.cover.resolve.failed", map[string]any{
				"bookId": id,
				"image":  image,
				"error":  err.Error(),
			})
			continue
		}
		summary.Images = append(summary.Images, resolved)
	}
	return summary
}
