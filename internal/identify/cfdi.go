package identify

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// CFDI holds the receiver identity read from a CFDI invoice.
type CFDI struct {
	RFC            string
	Name           string
	EmployeeNumber string
}

var utf8BOM = []byte("\xef\xbb\xbf")

// ParseCFDI reads Comprobante/Receptor and the optional nómina complement.
// Element and attribute names match on local name, so cfdi:/nomina12: prefixes are irrelevant.
func ParseCFDI(r io.Reader) (CFDI, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return CFDI{}, err
	}
	dec := xml.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	dec.CharsetReader = charset.NewReaderLabel

	var (
		out         CFDI
		stack       []string
		sawRoot     bool
		sawReceptor bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return CFDI{}, fmt.Errorf("malformed XML: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			local := t.Name.Local
			if len(stack) == 0 {
				if local != "Comprobante" {
					return CFDI{}, ErrNotCFDI
				}
				sawRoot = true
			}
			parent := ""
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			switch {
			case local == "Receptor" && parent == "Comprobante" && len(stack) == 1:
				sawReceptor = true
				out.RFC = attr(t, "Rfc", "rfc")
				out.Name = attr(t, "Nombre", "nombre")
			case local == "Receptor" && parent == "Nomina":
				out.EmployeeNumber = attr(t, "NumEmpleado", "numEmpleado")
			}
			stack = append(stack, local)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	switch {
	case !sawRoot:
		return CFDI{}, ErrNotCFDI
	case !sawReceptor:
		return CFDI{}, ErrNoReceptor
	}
	out.RFC = strings.ToUpper(strings.TrimSpace(out.RFC))
	out.Name = strings.TrimSpace(out.Name)
	out.EmployeeNumber = strings.TrimSpace(out.EmployeeNumber)
	if out.RFC == "" {
		return CFDI{}, ErrNoRFC
	}
	return out, nil
}

func attr(el xml.StartElement, names ...string) string {
	for _, n := range names {
		for _, a := range el.Attr {
			if a.Name.Local == n {
				return a.Value
			}
		}
	}
	return ""
}
