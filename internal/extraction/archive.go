package extraction

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/claritymed/regassist/internal/models"
)

// ExpandArchive unpacks an uploaded ZIP and extracts text from every member.
// Members that fail to parse become error pseudo-entries; an unreadable
// archive yields a single error entry. The returned slice is never empty for
// a non-empty archive and never carries an error return.
func ExpandArchive(zipContent []byte) []models.UploadedFile {
	if len(zipContent) < 4 || !bytes.HasPrefix(zipContent, []byte("PK")) {
		return []models.UploadedFile{{
			Name:    "zip_format_error.txt",
			Content: fmt.Sprintf("Invalid ZIP file format: file does not appear to be a ZIP archive (magic bytes %x)", head(zipContent, 4)),
			Type:    models.FileTypeError,
		}}
	}

	reader, err := zip.NewReader(bytes.NewReader(zipContent), int64(len(zipContent)))
	if err != nil {
		return []models.UploadedFile{{
			Name:    "zip_format_error.txt",
			Content: fmt.Sprintf("Invalid ZIP file format: %v", err),
			Type:    models.FileTypeError,
		}}
	}

	var files []models.UploadedFile
	for _, member := range reader.File {
		if member.FileInfo().IsDir() {
			continue
		}
		data, err := readMember(member)
		if err != nil {
			files = append(files, models.UploadedFile{
				Name:    member.Name,
				Content: fmt.Sprintf("[Error processing file: %v]", err),
				Type:    models.FileTypeError,
			})
			continue
		}

		result := ExtractText(data, member.Name)
		entry := models.UploadedFile{
			Name:    member.Name,
			Content: result.Text,
			Type:    strings.ToLower(filepath.Ext(member.Name)),
			Size:    int64(member.UncompressedSize64),
		}
		if !result.Success {
			entry.Type = models.FileTypeError
			entry.Size = 0
		}
		files = append(files, entry)
	}
	return files
}

func readMember(member *zip.File) ([]byte, error) {
	rc, err := member.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func head(b []byte, n int) []byte {
	if len(b) < n {
		return b
	}
	return b[:n]
}
