package pipeline

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor extracts the plain text of all pages of a PDF in page order.
// Pages whose text can't be decoded are skipped and logged if a logger is given.
func PDFExtractor(logger *slog.Logger) ExtractFunc {
	return func(content []byte) (text string, err error) {
		if len(content) == 0 {
			return "", fmt.Errorf("document is empty")
		}

		// The pdf reader panics on some malformed inputs
		defer func() {
			if r := recover(); r != nil {
				text = ""
				err = fmt.Errorf("failed to read PDF: %v", r)
			}
		}()

		reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
		if err != nil {
			return "", fmt.Errorf("failed to create PDF reader: %w", err)
		}

		var textBuilder strings.Builder
		pageCount := reader.NumPage()
		for i := 1; i <= pageCount; i++ {
			page := reader.Page(i)
			if page.V.IsNull() {
				continue
			}

			pageText, err := page.GetPlainText(nil)
			if err != nil {
				if logger != nil {
					logger.Warn("Failed to extract text from page", slog.Int("page", i), slog.String("error", err.Error()))
				}
				continue
			}

			textBuilder.WriteString(pageText)
			textBuilder.WriteString("\n")
		}

		text = strings.TrimSpace(textBuilder.String())
		if logger != nil {
			logger.Debug("Extracted text from PDF", slog.Int("pages", pageCount), slog.Int("characters", utf8.RuneCountInString(text)))
		}
		return text, nil
	}
}

// PlainTextExtractor treats the document content as UTF-8 text.
func PlainTextExtractor() ExtractFunc {
	return func(content []byte) (string, error) {
		if !utf8.Valid(content) {
			return "", fmt.Errorf("document is not valid UTF-8")
		}
		return strings.TrimSpace(string(content)), nil
	}
}
