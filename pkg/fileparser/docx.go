package fileparser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBody = "word/document.xml"

func extractDOCX(data []byte, limit uint64) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var total uint64
	var body *zip.File
	for _, f := range archive.File {
		total += f.UncompressedSize64
		if limit > 0 && total > limit {
			return "", fmt.Errorf("archive uncompressed size too large")
		}
		if f.Name == docxBody {
			body = f
		}
	}
	if body == nil {
		return "", fmt.Errorf("%s not found", docxBody)
	}

	handle, err := body.Open()
	if err != nil {
		return "", err
	}
	defer handle.Close()

	return readWordXML(handle)
}

// readWordXML collects run text, emitting a newline per paragraph.
func readWordXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var builder strings.Builder
	inText := false

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch el := token.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				builder.WriteByte('\t')
			case "br", "cr":
				builder.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				builder.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				builder.Write(el)
			}
		}
	}
	return builder.String(), nil
}
