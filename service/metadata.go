package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const googleBooksBase = "https://www.googleapis.com/books/v1/volumes"

// googleBooksVolumesResp is the response from GET /volumes?q=isbn:...
type googleBooksVolumesResp struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title               string   `json:"title"`
			Subtitle            string   `json:"subtitle"`
			Authors             []string `json:"authors"`
			Description         string   `json:"description"`
			Categories          []string `json:"categories"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// BookMetadata is what an ISBN lookup can contribute to an upload.
type BookMetadata struct {
	Title       string
	Author      string
	Description string
	Genre       string
	ISBN        string
	CoverURL    string
}

// MetadataClient looks books up on the Google Books API.
type MetadataClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewMetadataClient has a short timeout so slow responses don't block uploads.
func NewMetadataClient() *MetadataClient {
	return &MetadataClient{BaseURL: googleBooksBase, HTTP: &http.Client{Timeout: 15 * time.Second}}
}

// FetchByISBN returns metadata for the first volume matching isbn.
func (c *MetadataClient) FetchByISBN(ctx context.Context, isbn string) (*BookMetadata, error) {
	isbn = NormalizeISBN(isbn)
	if isbn == "" {
		return nil, fmt.Errorf("isbn is required")
	}
	q := url.Values{}
	q.Set("q", "isbn:"+isbn)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google books returned %d", resp.StatusCode)
	}
	var data googleBooksVolumesResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	if data.TotalItems == 0 || len(data.Items) == 0 {
		return nil, fmt.Errorf("no volume found for isbn %s", isbn)
	}
	vi := data.Items[0].VolumeInfo
	meta := &BookMetadata{
		Title:       vi.Title,
		Author:      strings.Join(vi.Authors, ", "),
		Description: strings.TrimSpace(vi.Description),
		ISBN:        isbn,
	}
	if vi.Subtitle != "" {
		meta.Title = meta.Title + ": " + vi.Subtitle
	}
	for _, id := range vi.IndustryIdentifiers {
		if id.Type == "ISBN_13" || id.Type == "ISBN_10" {
			meta.ISBN = id.Identifier
			break
		}
	}
	if len(vi.Categories) > 0 {
		meta.Genre = vi.Categories[0]
	}
	// Open Library serves covers by ISBN without the captcha Google image links often need.
	meta.CoverURL = openLibraryCoverURL(meta.ISBN, "L")
	return meta, nil
}

// NormalizeISBN strips spaces and hyphens.
func NormalizeISBN(isbn string) string {
	return strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(isbn), "-", ""), " ", "")
}

// openLibraryCoverURL returns a direct cover image URL by ISBN. Size: S, M or L.
func openLibraryCoverURL(isbn, size string) string {
	clean := NormalizeISBN(isbn)
	if clean == "" {
		return ""
	}
	return "https://covers.openlibrary.org/b/isbn/" + url.PathEscape(clean) + "-" + size + ".jpg"
}

// FillMissing copies metadata into the empty fields of b's descriptive attributes.
func (m *BookMetadata) FillMissing(title, author, description, genre, coverURL *string) {
	fill := func(dst *string, v string) {
		if strings.TrimSpace(*dst) == "" && v != "" {
			*dst = v
		}
	}
	fill(title, m.Title)
	fill(author, m.Author)
	fill(description, m.Description)
	fill(genre, m.Genre)
	fill(coverURL, m.CoverURL)
}
