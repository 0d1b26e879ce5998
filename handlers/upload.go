package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/smartbook/backend/logging"
	"github.com/smartbook/backend/metrics"
	"github.com/smartbook/backend/models"
	"github.com/smartbook/backend/service"
	"github.com/smartbook/backend/utils"
)

const (
	contentTypePDF = "application/pdf"
	// summarySourceChars bounds how much extracted text is sent to the summarizer.
	summarySourceChars = 12000
	multipartMemory    = 32 << 20
)

// MetadataFetcher looks up catalog metadata by ISBN.
type MetadataFetcher interface {
	FetchByISBN(ctx context.Context, isbn string) (*service.BookMetadata, error)
}

type UploadHandler struct {
	Library    *service.Library
	Storage    service.FileStorage
	Metadata   MetadataFetcher    // optional
	Summarizer service.Summarizer // optional
	MaxBytes   int64
}

type uploadedFile struct {
	name        string
	contentType string
	data        []byte
}

// readPart reads an optional multipart file. It returns nil when the field is absent.
func readPart(r *http.Request, field string) (*uploadedFile, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &uploadedFile{name: header.Filename, contentType: partContentType(header), data: data}, nil
}

func partContentType(h *multipart.FileHeader) string {
	return strings.ToLower(strings.TrimSpace(h.Header.Get("Content-Type")))
}

func isPDF(f *uploadedFile) bool {
	return strings.EqualFold(filepath.Ext(f.name), ".pdf") || strings.HasPrefix(f.contentType, contentTypePDF)
}

// imageContentType returns the stored content type for a jpg or png upload, or "".
func imageContentType(f *uploadedFile) string {
	switch ext := strings.ToLower(filepath.Ext(f.name)); {
	case ext == ".png" || strings.HasPrefix(f.contentType, "image/png"):
		return "image/png"
	case ext == ".jpg" || ext == ".jpeg" || strings.HasPrefix(f.contentType, "image/jpeg"):
		return "image/jpeg"
	}
	return ""
}

// Upload stores a PDF and optional cover, enriches the record from the ISBN and the
// document text, and creates the book owned by the caller.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	if h.Storage == nil {
		writeError(w, http.StatusServiceUnavailable, "upload not configured (missing S3)")
		return
	}
	if h.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	pdf, err := readPart(r, "pdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read pdf")
		return
	}
	if pdf == nil {
		writeError(w, http.StatusBadRequest, "missing pdf file")
		return
	}
	if !isPDF(pdf) {
		writeError(w, http.StatusBadRequest, "only pdf files are allowed")
		return
	}
	cover, err := readPart(r, "cover")
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read cover")
		return
	}
	var coverType string
	if cover != nil {
		if coverType = imageContentType(cover); coverType == "" {
			writeError(w, http.StatusBadRequest, "cover must be a jpg or png image")
			return
		}
	}

	book := &models.Book{
		Title:        strings.TrimSpace(r.FormValue("title")),
		Author:       strings.TrimSpace(r.FormValue("author")),
		Description:  strings.TrimSpace(r.FormValue("description")),
		Genre:        strings.TrimSpace(r.FormValue("genre")),
		Tags:         splitList(r.FormValue("tags")),
		ISBN:         service.NormalizeISBN(r.FormValue("isbn")),
		CoverURL:     strings.TrimSpace(r.FormValue("coverImageUrl")),
		OriginalName: pdf.name,
	}
	if s := r.FormValue("isPublic"); s != "" {
		if book.IsPublic, err = strconv.ParseBool(s); err != nil {
			writeError(w, http.StatusBadRequest, "isPublic must be true or false")
			return
		}
	}

	ctx := r.Context()
	var (
		wg               sync.WaitGroup
		pdfKey, coverKey string
		pdfErr, coverErr error
		meta             *service.BookMetadata
		summary          string
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		pdfKey, pdfErr = h.Storage.Upload(ctx, "books/", pdf.name, bytes.NewReader(pdf.data), contentTypePDF)
	}()

	if cover != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			coverKey, coverErr = h.Storage.Upload(ctx, "books/covers/", cover.name, bytes.NewReader(cover.data), coverType)
		}()
	}

	// Text extraction overlaps with the storage uploads above.
	var text string
	if h.Summarizer != nil || (h.Metadata != nil && book.ISBN == "") {
		var err error
		text, err = utils.ExtractPDFText(pdf.data, summarySourceChars)
		metrics.EnrichmentResults.WithLabelValues("text", metrics.Outcome(err)).Inc()
		if err != nil {
			logging.Warn().Err(err).Str("file", pdf.name).Msg("upload: text extraction failed")
		}
	}
	if book.ISBN == "" {
		book.ISBN = utils.FindISBN(text)
	}

	if h.Metadata != nil && book.ISBN != "" {
		wg.Add(1)
		go func(isbn string) {
			defer wg.Done()
			m, err := h.Metadata.FetchByISBN(ctx, isbn)
			metrics.EnrichmentResults.WithLabelValues("metadata", metrics.Outcome(err)).Inc()
			if err != nil {
				logging.Warn().Err(err).Str("isbn", isbn).Msg("upload: metadata lookup failed")
				return
			}
			meta = m
		}(book.ISBN)
	}

	if h.Summarizer != nil && text != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := h.Summarizer.Summarize(ctx, text)
			metrics.EnrichmentResults.WithLabelValues("summary", metrics.Outcome(err)).Inc()
			if err != nil {
				logging.Warn().Err(err).Str("file", pdf.name).Msg("upload: summary failed")
				return
			}
			summary = s
		}()
	}

	wg.Wait()

	book.S3Key, book.CoverS3Key = pdfKey, coverKey
	if pdfErr != nil || coverErr != nil {
		removeBookFiles(r, h.Storage, book)
		writeServiceError(w, r, fmt.Errorf("%w: store upload: %v", models.ErrUpstream, errors.Join(pdfErr, coverErr)))
		return
	}

	if meta != nil {
		meta.FillMissing(&book.Title, &book.Author, &book.Description, &book.Genre, &book.CoverURL)
	}
	if book.Title == "" {
		book.Title = strings.TrimSuffix(pdf.name, filepath.Ext(pdf.name))
	}
	book.Summary = summary

	created, err := h.Library.CreateBook(ctx, userID, book)
	if err != nil {
		removeBookFiles(r, h.Storage, book)
		writeServiceError(w, r, err)
		return
	}
	metrics.BooksUploaded.Inc()
	logging.Info().Str("book", created.ID.Hex()).Str("user", userID.Hex()).Msg("book uploaded")
	writeJSON(w, http.StatusCreated, created)
}
