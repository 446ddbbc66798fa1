package pdftext

import (
	"bytes"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func extractPageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return textFromStream(data)
}

// textFromStream walks content stream lines and keeps the operands of the
// Tj, TJ and ' operators. Td, TD and T* become separators.
func textFromStream(data []byte) string {
	var sb strings.Builder

	// A backslash at the end of a line continues the literal string.
	data = bytes.ReplaceAll(data, []byte("\\\r\n"), nil)
	data = bytes.ReplaceAll(data, []byte("\\\n"), nil)

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			writeStrings(&sb, line, false)
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			writeStrings(&sb, line, true)
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}

	return strings.TrimSpace(sb.String())
}

func writeStrings(sb *strings.Builder, line []byte, newline bool) {
	for _, raw := range literalStrings(line) {
		text := decodePDFString(raw)
		if text == "" {
			continue
		}
		if newline {
			sb.WriteByte('\n')
		}
		sb.WriteString(text)
	}
}

// literalStrings returns the raw contents of the literal strings on one
// content stream line. Balanced parentheses inside a string are part of it;
// escaped ones do not count. An unterminated string is dropped.
func literalStrings(line []byte) [][]byte {
	var out [][]byte
	depth, start := 0, 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if depth > 0 {
				i++
			}
		case '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ')':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				out = append(out, line[start:i])
			}
		}
	}
	return out
}

// decodePDFString resolves the escape sequences of a literal string,
// including up to three octal digits. A backslash before an end of line
// continues the string.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch c := raw[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case '\r':
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
		case '\n':
		case '\\', '(', ')':
			sb.WriteByte(c)
		default:
			if c < '0' || c > '7' {
				sb.WriteByte(c)
				continue
			}
			val := int(c - '0')
			for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}
